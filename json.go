package qi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/segmentio/encoding/json"
)

// EncodeJSON returns the JSON encoding of a wire value.
//
// Tuples encode as arrays, and mappings as objects whose keys are
// the keys' printed form. Objects encode as their description.
func EncodeJSON(v any) (string, error) {
	bs, err := json.Marshal(jsonable(v))
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// DecodeJSON decodes a JSON document into a wire value: arrays become
// []any, objects map[any]any with string keys, integral numbers
// int64 and other numbers float64.
func DecodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return fromJSON(v), nil
}

// jsonable rewrites wire values that encoding/json cannot handle.
func jsonable(v any) any {
	switch x := v.(type) {
	case map[any]any:
		ret := make(map[string]any, len(x))
		for k, v := range x {
			ret[fmt.Sprint(k)] = jsonable(v)
		}
		return ret
	case []any:
		ret := make([]any, len(x))
		for i, v := range x {
			ret[i] = jsonable(v)
		}
		return ret
	case *Object:
		if x == nil {
			return nil
		}
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Sprint(x)
		}
	}
	return v
}

func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromJSON(x[i])
		}
		return x
	case map[string]any:
		ret := make(map[any]any, len(x))
		for k, v := range x {
			ret[k] = fromJSON(v)
		}
		return ret
	}
	return v
}
