package optimize

import "mainstage/internal/ir"

// constFold rewrites an arithmetic, comparison, logical, or Not op
// whose operands are provably constant at that point into an
// equivalent LConst, using the same dataflow analysis constPropagate
// consults.
func constFold(mod *ir.Module) bool {
	in := analyzeConstants(mod)
	changed := false
	for i := range mod.Ops {
		op := &mod.Ops[i]
		switch op.Code {
		case ir.OpNot:
			a, ok := in[i].regs[op.A]
			if !ok {
				continue
			}
			*op = ir.Op{Code: ir.OpLConst, Dest: op.Dest, Const: ir.Bool(!a.AsBool())}
			changed = true
		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
			ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte,
			ir.OpAnd, ir.OpOr:
			a, okA := in[i].regs[op.A]
			b, okB := in[i].regs[op.B]
			if !okA || !okB || !op.IsConstFoldable(a, b) {
				continue
			}
			v, ok := foldBinary(op.Code, a, b)
			if !ok {
				continue
			}
			*op = ir.Op{Code: ir.OpLConst, Dest: op.Dest, Const: v}
			changed = true
		}
	}
	return changed
}

// foldBinary computes the constant result of an arithmetic, compare,
// or logical op over two constant operands. Division and modulo by
// zero are rejected by IsConstFoldable before this is ever called, so
// those cases here are unreachable in practice but return ok=false
// rather than panic.
func foldBinary(code ir.OpCode, a, b ir.Value) (ir.Value, bool) {
	switch code {
	case ir.OpAdd:
		if a.Kind == ir.KindStr || b.Kind == ir.KindStr {
			return ir.Str(a.String() + b.String()), true
		}
		if !a.IsNumeric() || !b.IsNumeric() {
			return ir.Value{}, false
		}
		return arith(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }), true
	case ir.OpSub:
		if !a.IsNumeric() || !b.IsNumeric() {
			return ir.Value{}, false
		}
		return arith(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }), true
	case ir.OpMul:
		if !a.IsNumeric() || !b.IsNumeric() {
			return ir.Value{}, false
		}
		return arith(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }), true
	case ir.OpDiv:
		if !a.IsNumeric() || !b.IsNumeric() || b.AsFloat() == 0 {
			return ir.Value{}, false
		}
		if a.Kind == ir.KindInt && b.Kind == ir.KindInt && a.I%b.I == 0 {
			return ir.Int(a.I / b.I), true
		}
		return ir.Float(a.AsFloat() / b.AsFloat()), true
	case ir.OpMod:
		if !a.IsNumeric() || !b.IsNumeric() || b.AsFloat() == 0 {
			return ir.Value{}, false
		}
		if a.Kind == ir.KindInt && b.Kind == ir.KindInt {
			return ir.Int(a.I % b.I), true
		}
		return ir.Value{}, false
	case ir.OpEq:
		return ir.Bool(a.Equal(b)), true
	case ir.OpNeq:
		return ir.Bool(!a.Equal(b)), true
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		if !a.IsNumeric() || !b.IsNumeric() {
			return ir.Value{}, false
		}
		switch code {
		case ir.OpLt:
			return ir.Bool(a.AsFloat() < b.AsFloat()), true
		case ir.OpLte:
			return ir.Bool(a.AsFloat() <= b.AsFloat()), true
		case ir.OpGt:
			return ir.Bool(a.AsFloat() > b.AsFloat()), true
		default:
			return ir.Bool(a.AsFloat() >= b.AsFloat()), true
		}
	case ir.OpAnd:
		return ir.Bool(a.AsBool() && b.AsBool()), true
	case ir.OpOr:
		return ir.Bool(a.AsBool() || b.AsBool()), true
	default:
		return ir.Value{}, false
	}
}

func arith(a, b ir.Value, fi func(int64, int64) int64, ff func(float64, float64) float64) ir.Value {
	if a.Kind == ir.KindInt && b.Kind == ir.KindInt {
		return ir.Int(fi(a.I, b.I))
	}
	return ir.Float(ff(a.AsFloat(), b.AsFloat()))
}
