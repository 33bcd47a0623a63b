package plugin

import (
	"encoding/json"
	"testing"

	"mainstage/internal/ir"
)

func TestValueJSONRoundTrip(t *testing.T) {
	obj := ir.NewObject()
	obj.Set("a", ir.Int(1))
	obj.Set("b", ir.Str("two"))
	cases := []ir.Value{
		ir.Null(),
		ir.Int(42),
		ir.Float(3.5),
		ir.Bool(true),
		ir.Str("hi"),
		ir.Array([]ir.Value{ir.Int(1), ir.Int(2)}),
		ir.ObjectVal(obj),
	}
	for _, v := range cases {
		j, err := valueToJSON(v)
		if err != nil {
			t.Fatalf("valueToJSON(%v): %v", v, err)
		}
		// round-trip through the same JSON decode path decodeResult uses
		data, err := encodeCall("f", []ir.Value{v})
		if err != nil {
			t.Fatalf("encodeCall: %v", err)
		}
		if len(data) == 0 {
			t.Fatalf("encodeCall(%v): empty payload", v)
		}
		raw, err := json.Marshal(j)
		if err != nil {
			t.Fatalf("json.Marshal(%v): %v", v, err)
		}
		got, err := decodeResult(raw)
		if err != nil {
			t.Fatalf("decodeResult(%s): %v", raw, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip of %v gave %v", v, got)
		}
	}
}

func TestEncodeDecodeResultRoundTrip(t *testing.T) {
	data, err := encodeCall("square", []ir.Value{ir.Int(7)})
	if err != nil {
		t.Fatalf("encodeCall: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty request payload")
	}

	got, err := decodeResult([]byte(`49`))
	if err != nil {
		t.Fatalf("decodeResult: %v", err)
	}
	if got.Kind != ir.KindInt || got.I != 49 {
		t.Fatalf("expected int 49, got %v", got)
	}
}

func TestDecodeResultArrayAndObject(t *testing.T) {
	got, err := decodeResult([]byte(`{"x":1,"y":[true,null,"z"]}`))
	if err != nil {
		t.Fatalf("decodeResult: %v", err)
	}
	if got.Kind != ir.KindObject {
		t.Fatalf("expected object, got %v", got)
	}
	x, ok := got.O.Get("x")
	if !ok || x.Kind != ir.KindInt || x.I != 1 {
		t.Fatalf("expected x=1, got %v", x)
	}
	y, ok := got.O.Get("y")
	if !ok || y.Kind != ir.KindArray || len(y.A) != 3 {
		t.Fatalf("expected y to be a 3-element array, got %v", y)
	}
	if y.A[0].Kind != ir.KindBool || !y.A[0].B {
		t.Fatalf("expected y[0]=true, got %v", y.A[0])
	}
	if y.A[1].Kind != ir.KindNull {
		t.Fatalf("expected y[1]=null, got %v", y.A[1])
	}
	if y.A[2].Kind != ir.KindStr || y.A[2].S != "z" {
		t.Fatalf("expected y[2]=\"z\", got %v", y.A[2])
	}
}

func TestDecodeResultFloat(t *testing.T) {
	got, err := decodeResult([]byte(`3.25`))
	if err != nil {
		t.Fatalf("decodeResult: %v", err)
	}
	if got.Kind != ir.KindFloat || got.F != 3.25 {
		t.Fatalf("expected float 3.25, got %v", got)
	}
}
