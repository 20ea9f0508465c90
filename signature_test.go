package qi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"V", VoidType},
		{"Z", BooleanType},
		{"B", ByteType},
		{"C", CharType},
		{"S", ShortType},
		{"I", Int32Type},
		{"J", Int64Type},
		{"F", Float32Type},
		{"D", Float64Type},
		{"Ljava/lang/String;", NamedType("java.lang.String")},
		{"Lqi/Object;", ObjectType},
		{"Lqi/Future;", UnknownFuture},
		{"[I", ArrayOf(Int32Type)},
		{"[[[I", ArrayOf(ArrayOf(ArrayOf(Int32Type)))},
		{"[Lcom/example/Point;", ArrayOf(NamedType("com.example.Point"))},
	}

	for _, tc := range tests {
		got, err := ParseType(tc.in)
		if err != nil {
			t.Errorf("ParseType(%q) got err: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseType(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Errorf("ParseType(%q).String() = %q, want round trip", tc.in, got.String())
		}
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"Q",
		"Ljava/lang/String",
		"L;",
		"[",
		"II",
		"[[",
	} {
		_, err := ParseType(in)
		var mse MalformedSignatureError
		if !errors.As(err, &mse) {
			t.Errorf("ParseType(%q) err = %v, want MalformedSignatureError", in, err)
			continue
		}
		if mse.Signature != in {
			t.Errorf("ParseType(%q) error names signature %q", in, mse.Signature)
		}
		// Errors are cached along with successes.
		if _, err2 := ParseType(in); err2 == nil || err2.Error() != err.Error() {
			t.Errorf("second ParseType(%q) err = %v, want %v", in, err2, err)
		}
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		ret     Type
		params  []Type
		wantErr bool
	}{
		{in: "()V", ret: VoidType},
		{in: "(I)I", ret: Int32Type, params: []Type{Int32Type}},
		{in: "(IJ[Ljava/lang/String;)Z", ret: BooleanType, params: []Type{Int32Type, Int64Type, ArrayOf(NamedType("java.lang.String"))}},
		{in: "([[DLqi/Tuple;)[B", ret: ArrayOf(ByteType), params: []Type{ArrayOf(ArrayOf(Float64Type)), TupleType}},

		{in: "I)V", wantErr: true},
		{in: "", wantErr: true},
		{in: "(I", wantErr: true},
		{in: "(I)", wantErr: true},
		{in: "(I)II", wantErr: true},
		{in: "(Ljava/lang/String)V", wantErr: true},
		{in: "(Q)V", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseMethod("m", tc.in)
		if tc.wantErr {
			var mse MalformedSignatureError
			if !errors.As(err, &mse) {
				t.Errorf("ParseMethod(%q) err = %v, want MalformedSignatureError", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMethod(%q) got err: %v", tc.in, err)
			continue
		}
		if got.Name() != "m" {
			t.Errorf("ParseMethod(%q) name = %q, want m", tc.in, got.Name())
		}
		if !got.Return().Equal(tc.ret) {
			t.Errorf("ParseMethod(%q) return = %v, want %v", tc.in, got.Return(), tc.ret)
		}
		if diff := cmp.Diff(typeStrings(got.Params()), typeStrings(tc.params)); diff != "" {
			t.Errorf("ParseMethod(%q) wrong params (-got+want):\n%s", tc.in, diff)
		}
		if got.Signature() != tc.in {
			t.Errorf("ParseMethod(%q).Signature() = %q, want round trip", tc.in, got.Signature())
		}
	}
}

func TestParseMethodCached(t *testing.T) {
	a := mustParseMethod("m", "(II)I")
	b := mustParseMethod("m", "(II)I")
	if a != b {
		t.Error("repeated ParseMethod returned different descriptors")
	}
	if c := mustParseMethod("n", "(II)I"); c == a {
		t.Error("ParseMethod returned the same descriptor for a different name")
	}
}

func TestParseQiSignature(t *testing.T) {
	tests := []struct {
		in   string
		name string
		sig  string
	}{
		{"add::i(iii)", "add", "(III)I"},
		{"reset::v()", "reset", "()V"},
		{"moved::(ii)", "moved", "(II)V"},
		{"pair::(ii)(s)", "pair", "(Lqi/String;)Lqi/Tuple;"},
		{"names::[s]([[l]])", "names", "([[J)[Lqi/String;"},
		{"lookup::m({sm}o)", "lookup", "(Lqi/Map;Lqi/Object;)Lqi/Value;"},
		{"u::L(CWIX)", "u", "(BCILqi/Value;)J"},
		{"f::d(fbw)", "f", "(FZS)D"},
	}
	for _, tc := range tests {
		got, err := ParseQiSignature(tc.in)
		if err != nil {
			t.Errorf("ParseQiSignature(%q) got err: %v", tc.in, err)
			continue
		}
		if got.Name() != tc.name || got.Signature() != tc.sig {
			t.Errorf("ParseQiSignature(%q) = %s%s, want %s%s", tc.in, got.Name(), got.Signature(), tc.name, tc.sig)
		}
	}

	for _, in := range []string{
		"add",
		"::i(i)",
		"add::i",
		"add::i(i",
		"add::q(i)",
		"add::i(i)x",
		"add::[ii]()",
		"add::{s}()",
	} {
		_, err := ParseQiSignature(in)
		var mse MalformedSignatureError
		if !errors.As(err, &mse) {
			t.Errorf("ParseQiSignature(%q) err = %v, want MalformedSignatureError", in, err)
		}
	}
}

func TestParseQiType(t *testing.T) {
	got, err := ParseQiType("[[w]]")
	if err != nil {
		t.Fatalf("ParseQiType got err: %v", err)
	}
	if want := ArrayOf(ArrayOf(ShortType)); !got.Equal(want) {
		t.Errorf("ParseQiType = %v, want %v", got, want)
	}
	for _, in := range []string{"", "ii", "[i", "z"} {
		if _, err := ParseQiType(in); err == nil {
			t.Errorf("ParseQiType(%q) succeeded, want error", in)
		}
	}
}

func typeStrings(ts []Type) []string {
	var ret []string
	for _, t := range ts {
		ret = append(ret, t.String())
	}
	return ret
}
