package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/qi"
	"github.com/danderson/qi/internal/qigen"
	"github.com/kr/pretty"
)

var globalArgs struct {
	Config  string `flag:"config,Path to a YAML or TOML config file"`
	Verbose bool   `flag:"v,Log at debug level"`
}

func main() {
	root := &command.C{
		Name:     "qi",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "parse",
				Usage: "parse signature...",
				Help: `Parse type and method signatures.

Signatures in the compact form, like "add::i(ii)", are parsed as
methods. Signatures starting with "(", like "(II)I", are parsed as
unnamed methods. Anything else is parsed as a single type, like
"[Ljava/lang/String;".`,
				Run: runParse,
			},
			{
				Name:  "distance",
				Usage: "distance query candidate...",
				Help: `Rank candidate methods against a query.

All signatures use the compact form, like "add::i(ii)". Candidates are
listed from closest to furthest, followed by the one that overload
resolution picks.`,
				Run: runDistance,
			},
			{
				Name:  "demo",
				Usage: "demo",
				Help:  "Serve a calculator on an in-process transport, and exercise it.",
				Run:   command.Adapt(runDemo),
			},
			{
				Name: "generate",
				Usage: `generate
generate service signature...`,
				Help: `Generate a typed client for a service.

With no arguments, the service is read from the --config file.
Otherwise the first argument names the service, and the remaining
arguments are its compact method and signal signatures.`,
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      runGenerate,
			},
			{
				Name:  "json",
				Usage: "json document",
				Help:  "Decode a JSON document to generic values, and encode it back.",
				Run:   command.Adapt(runJSON),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

type parsedMethod struct {
	Name      string
	Return    string
	Params    []string
	Signature string
}

func describeMethod(m *qi.MethodDescriptor) parsedMethod {
	ret := parsedMethod{
		Name:      m.Name(),
		Return:    m.Return().String(),
		Signature: m.Signature(),
	}
	for _, p := range m.Params() {
		ret.Params = append(ret.Params, p.String())
	}
	return ret
}

func runParse(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("parse requires at least one signature.")
	}
	for _, sig := range env.Args {
		var (
			out any
			err error
		)
		switch {
		case strings.Contains(sig, "::"):
			var m *qi.MethodDescriptor
			if m, err = qi.ParseQiSignature(sig); err == nil {
				out = describeMethod(m)
			}
		case strings.HasPrefix(sig, "("):
			var m *qi.MethodDescriptor
			if m, err = qi.ParseMethod("", sig); err == nil {
				out = describeMethod(m)
			}
		default:
			var t qi.Type
			if t, err = qi.ParseType(sig); err == nil {
				out = struct {
					Type string
					Kind string
				}{t.String(), t.Kind().String()}
			}
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s:\n  %# v\n", sig, pretty.Formatter(out))
	}
	return nil
}

func runDistance(env *command.Env) error {
	if len(env.Args) < 2 {
		return env.Usagef("distance requires a query and at least one candidate.")
	}
	query, err := qi.ParseQiSignature(env.Args[0])
	if err != nil {
		return err
	}
	var cands []*qi.MethodDescriptor
	for _, sig := range env.Args[1:] {
		m, err := qi.ParseQiSignature(sig)
		if err != nil {
			return err
		}
		cands = append(cands, m)
	}

	for _, r := range qi.Rank(query, cands) {
		fmt.Printf("%12s  %s\n", r.Distance, env.Args[r.Index+1])
	}
	idx, err := qi.Resolve(query, cands)
	if err != nil {
		fmt.Printf("no choice: %v\n", err)
		return nil
	}
	fmt.Printf("chosen: %s\n", env.Args[idx+1])
	return nil
}

var generateArgs struct {
	PackageName string `flag:"package,default=client,Package name to output"`
	OutFile     string `flag:"out,default=gen.go,Output file path"`
}

func runGenerate(env *command.Env) error {
	cfg, err := loadConfig(globalArgs.Config)
	if err != nil {
		return err
	}
	svc := &cfg.Service
	if len(env.Args) > 0 {
		svc = &qigen.Service{Name: env.Args[0]}
		for _, sig := range env.Args[1:] {
			m, err := qi.ParseQiSignature(sig)
			if err != nil {
				return err
			}
			if isSignal(sig, m) {
				svc.Signals = append(svc.Signals, sig)
			} else {
				svc.Methods = append(svc.Methods, sig)
			}
		}
	}
	if svc.Name == "" {
		return env.Usagef("generate needs a service, from arguments or --config.")
	}

	code, err := qigen.Client(generateArgs.PackageName, svc)
	if err != nil {
		return fmt.Errorf("generating client for %s: %w", svc.Name, err)
	}
	if err := os.WriteFile(generateArgs.OutFile, []byte(code), 0644); err != nil {
		return fmt.Errorf("writing generated code: %w", err)
	}
	fmt.Printf("Wrote generated package to %s\n", generateArgs.OutFile)
	return nil
}

// isSignal reports whether sig is written in the signal form, with no
// return type.
func isSignal(sig string, m *qi.MethodDescriptor) bool {
	return m.Return().Equal(qi.VoidType) && strings.HasPrefix(sig, m.Name()+"::(")
}

func runJSON(env *command.Env, doc string) error {
	v, err := qi.DecodeJSON(doc)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	fmt.Printf("%# v\n", pretty.Formatter(v))
	if err := qi.ValidateArgs([]any{v}); err != nil {
		fmt.Printf("not callable: %v\n", err)
	}
	out, err := qi.EncodeJSON(v)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	fmt.Println(out)
	return nil
}
