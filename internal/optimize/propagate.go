package optimize

import "mainstage/internal/ir"

// constPropagate rewrites an LLocal read into an LConst when the
// dataflow analysis proves the local holds the same constant on every
// path reaching this point, as distinct from constFold's arithmetic
// simplification.
func constPropagate(mod *ir.Module) bool {
	in := analyzeConstants(mod)
	changed := false
	for i := range mod.Ops {
		op := &mod.Ops[i]
		if op.Code != ir.OpLLocal {
			continue
		}
		v, ok := in[i].locals[op.LocalIdx]
		if !ok {
			continue
		}
		*op = ir.Op{Code: ir.OpLConst, Dest: op.Dest, Const: v}
		changed = true
	}
	return changed
}
