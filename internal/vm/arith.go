package vm

import (
	"mainstage/internal/ir"
	"mainstage/internal/mserrors"
)

// arith evaluates a binary arithmetic op at runtime. It mirrors
// optimize.foldBinary's type rules (Add on any Str operand
// concatenates, Int/Int stays exact, anything else numeric widens to
// Float) except where the optimizer can simply decline to fold:
// divide/modulo by zero is a runtime error here, and operands that are
// neither numeric nor (for Add) Str degrade to Null rather than being
// left unevaluated.
func arith(code ir.OpCode, a, b ir.Value) (ir.Value, error) {
	if code == ir.OpAdd && (a.Kind == ir.KindStr || b.Kind == ir.KindStr) {
		return ir.Str(a.String() + b.String()), nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return ir.Null(), nil
	}
	switch code {
	case ir.OpAdd:
		return numeric(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }), nil
	case ir.OpSub:
		return numeric(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }), nil
	case ir.OpMul:
		return numeric(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }), nil
	case ir.OpDiv:
		if b.AsFloat() == 0 {
			return ir.Value{}, mserrors.DivByZero("division")
		}
		if a.Kind == ir.KindInt && b.Kind == ir.KindInt && a.I%b.I == 0 {
			return ir.Int(a.I / b.I), nil
		}
		return ir.Float(a.AsFloat() / b.AsFloat()), nil
	case ir.OpMod:
		if b.AsFloat() == 0 {
			return ir.Value{}, mserrors.DivByZero("modulo")
		}
		if a.Kind == ir.KindInt && b.Kind == ir.KindInt {
			return ir.Int(a.I % b.I), nil
		}
		return ir.Null(), nil
	default:
		return ir.Null(), nil
	}
}

func numeric(a, b ir.Value, fi func(int64, int64) int64, ff func(float64, float64) float64) ir.Value {
	if a.Kind == ir.KindInt && b.Kind == ir.KindInt {
		return ir.Int(fi(a.I, b.I))
	}
	return ir.Float(ff(a.AsFloat(), b.AsFloat()))
}

// compare evaluates an ordered comparison. Non-numeric operands
// compare as Str lexicographically when both sides are Str, and
// otherwise yield false rather than an error, matching the permissive
// coercion AsBool and Equal use elsewhere.
func compare(code ir.OpCode, a, b ir.Value) ir.Value {
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.AsFloat(), b.AsFloat()
		switch code {
		case ir.OpLt:
			return ir.Bool(af < bf)
		case ir.OpLte:
			return ir.Bool(af <= bf)
		case ir.OpGt:
			return ir.Bool(af > bf)
		default:
			return ir.Bool(af >= bf)
		}
	}
	if a.Kind == ir.KindStr && b.Kind == ir.KindStr {
		switch code {
		case ir.OpLt:
			return ir.Bool(a.S < b.S)
		case ir.OpLte:
			return ir.Bool(a.S <= b.S)
		case ir.OpGt:
			return ir.Bool(a.S > b.S)
		default:
			return ir.Bool(a.S >= b.S)
		}
	}
	return ir.Bool(false)
}
