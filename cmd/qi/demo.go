package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/creachadair/command"
	"github.com/danderson/qi"
	"github.com/danderson/qi/transport"
	"github.com/kr/pretty"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type intOps struct{}

func (intOps) Add(a, b int32) int32 { return a + b }

type floatOps struct{}

func (floatOps) Add(a, b float64) float64 { return a + b }

func (floatOps) Div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

var demoMethods = []struct {
	sig  string
	impl any
}{
	{"add::i(ii)", intOps{}},
	{"add::d(dd)", floatOps{}},
	{"div::d(dd)", floatOps{}},
}

type demoResults struct {
	IntSum   int32
	FloatSum float64
	Generic  any
	Total    int64
	DivError string
	Overflow []any
}

func runDemo(env *command.Env) error {
	cfg, err := loadConfig(globalArgs.Config)
	if err != nil {
		return err
	}
	log, err := cfg.logger(globalArgs.Verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	bus := transport.NewLoopback()
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error("closing transport", zap.Error(err))
		}
	}()

	b := qi.NewObjectBuilder("calculator")
	for _, m := range demoMethods {
		if err := b.AdvertiseMethod(m.sig, m.impl); err != nil {
			return err
		}
	}
	if err := b.AdvertiseSignal("overflow::(ls)"); err != nil {
		return err
	}
	if err := b.AdvertiseProperty("total", int64(0)); err != nil {
		return err
	}
	obj := b.Object(bus,
		qi.WithLogger(log),
		qi.WithErrorHandler(func(err error) {
			log.Error("listener failed", zap.Error(err))
		}))
	defer obj.Close()

	ctx, cancel := context.WithTimeout(env.Context(), cfg.timeout)
	defer cancel()

	var res demoResults
	overflow := make(chan []any, 1)
	slots := qi.NewSlotSet()
	if err := slots.Add("overflow", func(total int64, reason string) {
		overflow <- []any{total, reason}
	}); err != nil {
		return err
	}
	sub, err := obj.ConnectSlot(ctx, "overflow::(ls)", slots, "overflow")
	if err != nil {
		return err
	}
	if _, err := sub.ID().Wait(ctx); err != nil {
		return fmt.Errorf("connecting to overflow: %w", err)
	}
	log.Debug("subscribed", zap.String("signal", sub.Signal()), zap.Stringer("state", sub.State()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		res.IntSum, err = qi.CallAs[int32](gctx, obj, "add", int32(2), int32(3)).Wait(gctx)
		return err
	})
	g.Go(func() (err error) {
		res.FloatSum, err = qi.CallAs[float64](gctx, obj, "add", 1.5, 2.25).Wait(gctx)
		return err
	})
	g.Go(func() (err error) {
		res.Generic, err = obj.Call(gctx, "add", int32(40), int32(2)).Wait(gctx)
		return err
	})
	g.Go(func() error {
		total := qi.Compose(obj.SetProperty(gctx, "total", int64(math.MaxInt32)+1), func(struct{}) *qi.Future[int64] {
			return qi.GetProperty[int64](gctx, obj, "total")
		})
		v, err := total.Wait(gctx)
		if err != nil {
			return err
		}
		res.Total = v
		if v > math.MaxInt32 {
			obj.Post("overflow", v, "total exceeds int32")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := qi.CallAs[float64](ctx, obj, "div", 1.0, 0.0).Wait(ctx); err != nil {
		res.DivError = err.Error()
	}

	select {
	case res.Overflow = <-overflow:
	case <-ctx.Done():
		return fmt.Errorf("waiting for overflow signal: %w", ctx.Err())
	}
	if _, err := sub.Disconnect(ctx).Wait(ctx); err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}

	fmt.Printf("%# v\n", pretty.Formatter(res))
	return nil
}
