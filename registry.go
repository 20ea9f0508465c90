package qi

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/creachadair/mds/mapset"
)

// registry maps between named Types and the Go types that hold them.
type registry struct {
	mu      sync.RWMutex
	byName  map[string]reflect.Type
	byType  map[reflect.Type]string
	structs mapset.Set[string]
}

var types = newRegistry()

func newRegistry() *registry {
	r := &registry{
		byName:  map[string]reflect.Type{},
		byType:  map[reflect.Type]string{},
		structs: mapset.New[string](),
	}
	for name, t := range map[string]reflect.Type{
		stringName:          reflect.TypeFor[string](),
		valueName:           reflect.TypeFor[any](),
		objectName:          reflect.TypeFor[*Object](),
		tupleName:           reflect.TypeFor[Tuple](),
		listName:            reflect.TypeFor[[]any](),
		mapName:             reflect.TypeFor[map[any]any](),
		boxedNames[KindVoid]: reflect.TypeFor[struct{}](),
	} {
		if err := r.add(name, t); err != nil {
			panic(err)
		}
	}
	for k, t := range kindToGo {
		if err := r.add(boxedNames[k], reflect.PointerTo(t)); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *registry) add(name string, t reflect.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(name, t)
}

func (r *registry) addLocked(name string, t reflect.Type) error {
	if name == "" {
		return fmt.Errorf("cannot register %s with an empty type name", t)
	}
	if prev, ok := r.byName[name]; ok && prev != t {
		return fmt.Errorf("duplicate type registration for %s, already in use by %s", name, prev)
	}
	if prev, ok := r.byType[t]; ok && prev != name {
		return fmt.Errorf("duplicate type registration for %s, already registered as %s", t, prev)
	}
	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// typeOf returns the Go type registered for name.
func (r *registry) typeOf(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// nameOf returns the registered name of t.
func (r *registry) nameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byType[t]
	return n, ok
}

// isStruct reports whether name was registered with RegisterStruct.
func (r *registry) isStruct(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.structs.Has(name)
}

// autoName returns the registered name of t, registering t under a
// name derived from its Go type if needed.
func (r *registry) autoName(t reflect.Type) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.byType[t]; ok {
		return n
	}
	name := t.String()
	if _, taken := r.byName[name]; taken && t.PkgPath() != "" {
		name = t.PkgPath() + "." + t.Name()
	}
	for i := 2; ; i++ {
		if _, taken := r.byName[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s#%d", t.String(), i)
	}
	r.byName[name] = t
	r.byType[t] = name
	return name
}

// RegisterType registers T as the Go type holding values of the named
// type name.
//
// Go types that are not registered are named after their Go type
// when first described. RegisterType panics if name or T is already
// registered with a different counterpart.
func RegisterType[T any](name string) {
	t := reflect.TypeFor[T]()
	if err := types.add(name, t); err != nil {
		panic(err)
	}
}

// RegisterStruct registers the struct T as the named type name, and
// marks it as the structured counterpart of [Tuple]: signatures that
// take a Tuple match methods that take a T, and the default
// [Serializer] converts between the two.
//
// RegisterStruct panics if T is not a struct, or if name or T is
// already registered with a different counterpart.
func RegisterStruct[T any](name string) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Errorf("cannot register %s (%s) as a struct type, it is not a struct", t, t.Kind()))
	}
	types.mu.Lock()
	defer types.mu.Unlock()
	if err := types.addLocked(name, t); err != nil {
		panic(err)
	}
	types.structs.Add(name)
}
