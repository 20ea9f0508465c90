package qi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	strToType   cache[string, Type]
	strToMethod cache[methodKey, *MethodDescriptor]
	strToQiSig  cache[string, *MethodDescriptor]
)

type methodKey struct {
	name, sig string
}

// ParseType parses a single type in descriptor grammar:
//
//	type := 'V' | 'Z' | 'B' | 'C' | 'S' | 'I' | 'J' | 'F' | 'D'
//	      | '[' type
//	      | 'L' qualified/name ';'
//
// Slashes in qualified names become dots.
func ParseType(sig string) (Type, error) {
	if ret, err := strToType.Get(sig); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return Type{}, err
	}

	ret, next, err := parseOne(sig, 0)
	if err == nil && next != len(sig) {
		err = fmt.Errorf("unexpected %q after type at offset %d", sig[next:], next)
	}
	if err != nil {
		err = MalformedSignatureError{sig, err}
		strToType.SetErr(sig, err)
		return Type{}, err
	}
	strToType.Set(sig, ret)
	return ret, nil
}

// ParseMethod parses a method signature in descriptor grammar, and
// returns a MethodDescriptor for the method name with that shape.
//
//	sig := '(' type* ')' type
//
// Descriptors are cached, repeated parses of the same name and
// signature return the same MethodDescriptor.
func ParseMethod(name, sig string) (*MethodDescriptor, error) {
	k := methodKey{name, sig}
	if ret, err := strToMethod.Get(k); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}

	ret, err := parseMethod(name, sig)
	if err != nil {
		err = MalformedSignatureError{sig, err}
		strToMethod.SetErr(k, err)
		return nil, err
	}
	strToMethod.Set(k, ret)
	return ret, nil
}

func mustParseMethod(name, sig string) *MethodDescriptor {
	ret, err := ParseMethod(name, sig)
	if err != nil {
		panic(err)
	}
	return ret
}

func parseMethod(name, sig string) (*MethodDescriptor, error) {
	if sig == "" || sig[0] != '(' {
		return nil, errors.New("method signature must start with (")
	}
	var (
		params []Type
		param  Type
		off    = 1
		err    error
	)
	for {
		if off >= len(sig) {
			return nil, errors.New("missing closing ) in parameter list")
		}
		if sig[off] == ')' {
			off++
			break
		}
		param, off, err = parseOne(sig, off)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	if off == len(sig) {
		return nil, errors.New("missing return type")
	}
	ret, off, err := parseOne(sig, off)
	if err != nil {
		return nil, err
	}
	if off != len(sig) {
		return nil, fmt.Errorf("more than one return type, found %q after return type", sig[off:])
	}
	return &MethodDescriptor{name, ret, params}, nil
}

// parseOne consumes the type starting at sig[off], and returns it
// along with the offset of the first unconsumed byte.
func parseOne(sig string, off int) (t Type, next int, err error) {
	if off >= len(sig) {
		return Type{}, 0, errors.New("unexpected end of signature")
	}
	if k, ok := codeToKind[sig[off]]; ok {
		return Type{kind: k}, off + 1, nil
	}

	switch sig[off] {
	case '[':
		depth := 0
		for off < len(sig) && sig[off] == '[' {
			depth++
			off++
		}
		elem, next, err := parseOne(sig, off)
		if err != nil {
			return Type{}, 0, err
		}
		for range depth {
			elem = ArrayOf(elem)
		}
		return elem, next, nil
	case 'L':
		end := strings.IndexByte(sig[off:], ';')
		if end < 0 {
			return Type{}, 0, fmt.Errorf("unterminated named type at offset %d", off)
		}
		name := sig[off+1 : off+end]
		if name == "" {
			return Type{}, 0, fmt.Errorf("empty type name at offset %d", off)
		}
		return NamedType(strings.ReplaceAll(name, "/", ".")), off + end + 1, nil
	default:
		return Type{}, 0, fmt.Errorf("unknown type code %q at offset %d", sig[off], off)
	}
}

// ParseQiSignature parses a name-qualified signature in compact
// format, such as "add::i(iii)" for a method add taking three int32
// and returning an int32.
//
//	sig  := name '::' type '(' type* ')'
//	type := 'v' | 'b' | 'c' | 'C' | 'w' | 'W' | 'i' | 'I' | 'l' | 'L'
//	      | 'f' | 'd' | 's' | 'm' | 'o' | 'X'
//	      | '[' type ']'
//	      | '{' type type '}'
//	      | '(' type* ')'
//
// Signals have no return value, and are written without one: in
// "moved::(ii)", the parenthesized group is the parameter list and
// the return type is Void.
func ParseQiSignature(sig string) (*MethodDescriptor, error) {
	if ret, err := strToQiSig.Get(sig); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}

	ret, err := parseQiSignature(sig)
	if err != nil {
		err = MalformedSignatureError{sig, err}
		strToQiSig.SetErr(sig, err)
		return nil, err
	}
	strToQiSig.Set(sig, ret)
	return ret, nil
}

// ParseQiType parses a single type in the compact format of
// [ParseQiSignature], such as "[i]" or "{sm}".
func ParseQiType(sig string) (Type, error) {
	t, next, err := parseQiOne(sig, 0)
	if err == nil && next != len(sig) {
		err = fmt.Errorf("unexpected %q after type", sig[next:])
	}
	if err != nil {
		return Type{}, MalformedSignatureError{sig, err}
	}
	return t, nil
}

func mustParseQiSignature(sig string) *MethodDescriptor {
	ret, err := ParseQiSignature(sig)
	if err != nil {
		panic(err)
	}
	return ret
}

func parseQiSignature(sig string) (*MethodDescriptor, error) {
	name, rest, ok := strings.Cut(sig, "::")
	if !ok {
		return nil, errors.New("missing :: between name and signature")
	}
	if name == "" {
		return nil, errors.New("empty method name")
	}
	base := len(name) + 2

	if rest != "" && rest[0] == '(' {
		// Signal form, or a method returning a tuple.
		params, next, err := parseQiGroup(sig, base+1, ')')
		if err != nil {
			return nil, err
		}
		if next == len(sig) {
			return &MethodDescriptor{name, VoidType, params}, nil
		}
	}

	ret, off, err := parseQiOne(sig, base)
	if err != nil {
		return nil, err
	}
	if off >= len(sig) || sig[off] != '(' {
		return nil, fmt.Errorf("missing ( after return type at offset %d", off)
	}
	params, off, err := parseQiGroup(sig, off+1, ')')
	if err != nil {
		return nil, err
	}
	if off != len(sig) {
		return nil, fmt.Errorf("unexpected %q after parameter list", sig[off:])
	}
	return &MethodDescriptor{name, ret, params}, nil
}

// parseQiGroup consumes compact types up to and including the closing
// byte, starting at sig[off].
func parseQiGroup(sig string, off int, closing byte) (ts []Type, next int, err error) {
	var t Type
	for {
		if off >= len(sig) {
			return nil, 0, fmt.Errorf("missing closing %c", closing)
		}
		if sig[off] == closing {
			return ts, off + 1, nil
		}
		t, off, err = parseQiOne(sig, off)
		if err != nil {
			return nil, 0, err
		}
		ts = append(ts, t)
	}
}

// parseQiOne is the compact format counterpart of parseOne.
func parseQiOne(sig string, off int) (t Type, next int, err error) {
	if off >= len(sig) {
		return Type{}, 0, errors.New("unexpected end of signature")
	}
	if ret, ok := compactCodes[sig[off]]; ok {
		return ret, off + 1, nil
	}

	switch sig[off] {
	case '[':
		elems, next, err := parseQiGroup(sig, off+1, ']')
		if err != nil {
			return Type{}, 0, err
		}
		if len(elems) != 1 {
			return Type{}, 0, fmt.Errorf("list at offset %d has %d element types, want 1", off, len(elems))
		}
		return ArrayOf(elems[0]), next, nil
	case '{':
		kv, next, err := parseQiGroup(sig, off+1, '}')
		if err != nil {
			return Type{}, 0, err
		}
		if len(kv) != 2 {
			return Type{}, 0, fmt.Errorf("map at offset %d has %d types, want key and value", off, len(kv))
		}
		return MapType, next, nil
	case '(':
		_, next, err := parseQiGroup(sig, off+1, ')')
		if err != nil {
			return Type{}, 0, err
		}
		return TupleType, next, nil
	default:
		return Type{}, 0, fmt.Errorf("unknown type code %q at offset %d", sig[off], off)
	}
}
