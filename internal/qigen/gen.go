// Package qigen generates typed Go clients for qi services.
package qigen

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"go/format"
	"slices"
	"strings"
	"unicode"

	"github.com/danderson/qi"
)

// Service describes the members of a remote service.
type Service struct {
	// Name is the service name. It becomes the name of the client
	// type.
	Name string `yaml:"name" toml:"name"`
	// Methods are compact method signatures, such as "add::i(ii)".
	Methods []string `yaml:"methods" toml:"methods"`
	// Signals are compact signal signatures, such as "moved::(ii)".
	Signals []string `yaml:"signals" toml:"signals"`
	// Properties are the service's properties.
	Properties []Property `yaml:"properties" toml:"properties"`
}

// Property describes one property of a Service.
type Property struct {
	Name string `yaml:"name" toml:"name"`
	// Type is the compact type code of the property, such as "l".
	Type     string `yaml:"type" toml:"type"`
	Writable bool   `yaml:"writable" toml:"writable"`
}

type generator struct {
	out   bytes.Buffer
	svc   *Service
	typ   string
	names map[string]int
}

// Client returns gofmt'd Go source for package pkg, containing a
// typed client for svc.
func Client(pkg string, svc *Service) (string, error) {
	if svc == nil {
		return "", errors.New("no service provided")
	}
	if svc.Name == "" {
		return "", errors.New("service has no name")
	}
	g := generator{
		svc:   svc,
		typ:   publicIdentifier(svc.Name),
		names: map[string]int{"Object": 1},
	}
	if err := g.File(pkg); err != nil {
		return "", err
	}

	ret, err := format.Source(g.out.Bytes())
	if err != nil {
		return g.out.String(), err
	}

	return string(ret), nil
}

func (g *generator) s(s string) {
	g.out.WriteString(s)
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

func (g *generator) File(pkg string) error {
	var (
		methods = make([]*qi.MethodDescriptor, 0, len(g.svc.Methods))
		signals = make([]*qi.MethodDescriptor, 0, len(g.svc.Signals))
		sigs    = map[*qi.MethodDescriptor]string{}
	)
	for _, s := range g.svc.Methods {
		m, err := qi.ParseQiSignature(s)
		if err != nil {
			return err
		}
		methods = append(methods, m)
		sigs[m] = s
	}
	for _, s := range g.svc.Signals {
		m, err := qi.ParseQiSignature(s)
		if err != nil {
			return err
		}
		signals = append(signals, m)
		sigs[m] = s
	}
	props := slices.Clone(g.svc.Properties)
	byName := func(a, b *qi.MethodDescriptor) int {
		return cmp.Or(cmp.Compare(a.Name(), b.Name()), cmp.Compare(a.Signature(), b.Signature()))
	}
	slices.SortStableFunc(methods, byName)
	slices.SortStableFunc(signals, byName)
	slices.SortStableFunc(props, func(a, b Property) int {
		return cmp.Compare(a.Name, b.Name)
	})

	g.f("// Code generated by qigen. DO NOT EDIT.\n\npackage %s\n\n", pkg)
	if len(methods)+len(signals)+len(props) > 0 {
		g.s("import (\n\"context\"\n\n\"github.com/danderson/qi\"\n)\n")
	} else {
		g.s("import \"github.com/danderson/qi\"\n")
	}
	g.f(`
// %[1]s is a typed client for the %[2]s service.
type %[1]s struct { obj *qi.Object }

// New%[1]s returns a %[1]s that calls obj.
func New%[1]s(obj *qi.Object) %[1]s {
  return %[1]s{obj}
}

// Object returns the object called by c.
func (c %[1]s) Object() *qi.Object { return c.obj }

`, g.typ, g.svc.Name)

	for _, m := range methods {
		g.Method(m, sigs[m])
	}
	for _, p := range props {
		if err := g.Property(p); err != nil {
			return err
		}
	}
	for _, s := range signals {
		g.Signal(s, sigs[s])
	}
	return nil
}

// goName returns an unused Go method name for a member called name.
func (g *generator) goName(prefix, name string) string {
	ret := prefix + publicIdentifier(name)
	g.names[ret]++
	if n := g.names[ret]; n > 1 {
		ret = fmt.Sprintf("%s%d", ret, n)
	}
	return ret
}

func (g *generator) Method(m *qi.MethodDescriptor, sig string) {
	name, ret := g.goName("", m.Name()), GoType(m.Return())
	g.f("// %s calls the remote method %s.\n", name, sig)
	g.f("func (c %s) %s(ctx context.Context", g.typ, name)
	params := m.Params()
	for i, p := range params {
		g.f(", arg%d %s", i, GoType(p))
	}
	g.f(") *qi.Future[%s] {\n", ret)
	g.f("return qi.CallAs[%s](ctx, c.obj, %q", ret, m.Name())
	for i := range params {
		g.f(", arg%d", i)
	}
	g.s(")\n}\n\n")
}

func (g *generator) Property(p Property) error {
	t, err := qi.ParseQiType(p.Type)
	if err != nil {
		return fmt.Errorf("property %s: %w", p.Name, err)
	}
	name := g.goName("", p.Name)
	g.f(`
// %[2]s returns the value of the property %[4]q.
func (c %[1]s) %[2]s(ctx context.Context) *qi.Future[%[3]s] {
  return qi.GetProperty[%[3]s](ctx, c.obj, %[4]q)
}

`, g.typ, name, GoType(t), p.Name)

	if !p.Writable {
		return nil
	}
	g.f(`
// Set%[2]s sets the value of the property %[4]q to val.
func (c %[1]s) Set%[2]s(ctx context.Context, val %[3]s) *qi.Future[struct{}] {
  return c.obj.SetProperty(ctx, %[4]q, val)
}

`, g.typ, name, GoType(t), p.Name)
	return nil
}

func (g *generator) Signal(s *qi.MethodDescriptor, sig string) {
	name := g.goName("On", s.Name())
	g.f("// %s connects fn to the signal %s.\n", name, sig)
	g.f("func (c %s) %s(ctx context.Context, fn func(", g.typ, name)
	for i, p := range s.Params() {
		if i > 0 {
			g.s(", ")
		}
		g.f("arg%d %s", i, GoType(p))
	}
	g.f(`)) (*qi.Subscription, error) {
  slots := qi.NewSlotSet()
  if err := slots.Add(%[1]q, fn); err != nil {
    return nil, err
  }
  return c.obj.ConnectSlot(ctx, %[2]q, slots, %[1]q)
}

`, s.Name(), sig)
}

// GoType returns the Go type expression used for values of type t
// in generated code.
func GoType(t qi.Type) string {
	switch t.Kind() {
	case qi.KindVoid:
		return "struct{}"
	case qi.KindBoolean:
		return "bool"
	case qi.KindByte:
		return "uint8"
	case qi.KindChar:
		return "uint16"
	case qi.KindShort:
		return "int16"
	case qi.KindInt32:
		return "int32"
	case qi.KindInt64:
		return "int64"
	case qi.KindFloat32:
		return "float32"
	case qi.KindFloat64:
		return "float64"
	case qi.KindArray:
		elem, _ := t.Elem()
		return "[]" + GoType(elem)
	case qi.KindFuture:
		if elem, ok := t.Elem(); ok {
			return GoType(elem)
		}
		return "any"
	}
	switch {
	case t.Equal(qi.StringType):
		return "string"
	case t.Equal(qi.ObjectType):
		return "*qi.Object"
	case t.Equal(qi.TupleType):
		return "qi.Tuple"
	case t.Equal(qi.ListType):
		return "[]any"
	case t.Equal(qi.MapType):
		return "map[any]any"
	default:
		return "any"
	}
}

func identifier(s string) string {
	if i := strings.LastIndexAny(s, ".:"); i >= 0 {
		s = s[i+1:]
	}
	fs := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	for i := range fs {
		switch {
		case i == 0:
			fs[i] = lowerFirst(fs[i])
		case fs[i] == "id":
			fs[i] = "ID"
		default:
			fs[i] = upperFirst(fs[i])
		}
	}
	return strings.Join(fs, "")
}

func publicIdentifier(s string) string {
	return upperFirst(identifier(s))
}

func upperFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

func lowerFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToLower(r)) + s[i+len(string(r)):]
	}
	return s
}
