// Package ir defines the in-memory intermediate representation the
// lowerer produces and the optimizer mutates in place: a flat sequence
// of three-address ops over a virtual register file, plus the constant
// Value variant embedded in LConst and nested container constants.
//
// Value is a plain closed tagged struct rather than a NaN-boxed word:
// one Kind enum and the payload fields it implies. Interpreter speed
// isn't the point; a value any caller can inspect and compare is.
package ir

import "fmt"

type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStr
	KindSymbol
	KindArray
	KindObject
)

// Value is the runtime and constant-pool tagged union.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	B    bool
	S    string // Str or Symbol payload
	A    []Value
	O    *Object
}

// Object is an insertion-ordered string->Value mapping. Insertion order
// is not semantically required (§3), but is kept so host/debug printing
// is stable for a given construction; the MSBC emitter re-sorts keys
// independently for byte-determinism (internal/msbc).
type Object struct {
	Keys   []string
	Values map[string]Value
}

func NewObject() *Object {
	return &Object{Values: make(map[string]Value)}
}

func (o *Object) Set(key string, v Value) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.Values[key]
	return v, ok
}

func Null() Value               { return Value{Kind: KindNull} }
func Int(i int64) Value         { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, F: f} }
func Bool(b bool) Value         { return Value{Kind: KindBool, B: b} }
func Str(s string) Value        { return Value{Kind: KindStr, S: s} }
func Symbol(s string) Value     { return Value{Kind: KindSymbol, S: s} }
func Array(vs []Value) Value    { return Value{Kind: KindArray, A: vs} }
func ObjectVal(o *Object) Value { return Value{Kind: KindObject, O: o} }

// IsNumeric reports whether v is Int or Float.
func (v Value) IsNumeric() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// AsFloat returns v's numeric value widened to float64. Caller must
// have checked IsNumeric.
func (v Value) AsFloat() float64 {
	if v.Kind == KindFloat {
		return v.F
	}
	return float64(v.I)
}

// AsBool coerces v to a boolean for use in conditions and logical ops.
func (v Value) AsBool() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindStr:
		return len(v.S) > 0
	case KindArray:
		return len(v.A) > 0
	case KindObject:
		return v.O != nil && len(v.O.Keys) > 0
	case KindSymbol:
		return true
	default:
		return false
	}
}

// Equal implements the VM's Eq semantics: same-kind structural
// equality; cross-kind numeric comparison for Int/Float; false for any
// other kind mismatch.
func (a Value) Equal(b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		if a.Kind == KindInt && b.Kind == KindInt {
			return a.I == b.I
		}
		return a.AsFloat() == b.AsFloat()
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.B == b.B
	case KindStr, KindSymbol:
		return a.S == b.S
	case KindArray:
		if len(a.A) != len(b.A) {
			return false
		}
		for i := range a.A {
			if !a.A[i].Equal(b.A[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.O == nil || b.O == nil {
			return a.O == b.O
		}
		if len(a.O.Keys) != len(b.O.Keys) {
			return false
		}
		for _, k := range a.O.Keys {
			av, _ := a.O.Get(k)
			bv, ok := b.O.Get(k)
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug form, used by the `say` host builtin for
// complex values and by test failure output.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindStr:
		return v.S
	case KindSymbol:
		return v.S
	case KindArray:
		return fmt.Sprintf("%v", v.A)
	case KindObject:
		return fmt.Sprintf("%v", v.O)
	default:
		return "<invalid>"
	}
}

// Clone deep-copies v. The VM clones Array/Object arguments on their
// way into Call/CallLabel so a callee can't mutate the caller's value
// through a shared backing slice or map.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		out := make([]Value, len(v.A))
		for i, e := range v.A {
			out[i] = e.Clone()
		}
		return Array(out)
	case KindObject:
		if v.O == nil {
			return v
		}
		no := NewObject()
		for _, k := range v.O.Keys {
			val, _ := v.O.Get(k)
			no.Set(k, val.Clone())
		}
		return ObjectVal(no)
	default:
		return v
	}
}
