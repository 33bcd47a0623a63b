package optimize

import "mainstage/internal/ir"

// canonicalize finds LLocal reads that reload a value a prior SLocal
// in the same local already placed in a still-live register, unions
// the two registers via a disjoint-set so every other op refers to the
// original, and drops the now-redundant LLocal. It does not change any
// observable value, only which register name carries it.
func canonicalize(mod *ir.Module) bool {
	lastWriter := analyzeLastWriter(mod)
	uf := newUnionFind()
	redundant := make([]bool, len(mod.Ops))
	any := false

	// Inc/Dec mutate their register in place, so a register they touch
	// does not keep the value it held at the reload and is never merged.
	incTargets := make(map[ir.Reg]bool)
	for _, op := range mod.Ops {
		if op.Code == ir.OpInc || op.Code == ir.OpDec {
			incTargets[op.Dest] = true
		}
	}

	for i, op := range mod.Ops {
		if op.Code != ir.OpLLocal {
			continue
		}
		src, ok := lastWriter[i][op.LocalIdx]
		if !ok || src == op.Dest {
			continue
		}
		if incTargets[src] || incTargets[op.Dest] {
			continue
		}
		if mod.PluginProducers[i] {
			// Keep the op itself (a protected producer), but still
			// fold its destination into the same equivalence class so
			// downstream remap is consistent.
			uf.union(src, op.Dest)
			continue
		}
		uf.union(src, op.Dest)
		redundant[i] = true
		any = true
	}
	if !any {
		return false
	}

	remapRegs(mod, uf.find)

	keep := make([]bool, len(mod.Ops))
	for i := range mod.Ops {
		keep[i] = !redundant[i]
	}
	compact(mod, keep)
	return true
}

// analyzeLastWriter tracks, per op index, which register last stored
// into each local along every path reaching that point — nil/absent
// when ambiguous (two paths disagree) or not yet written.
func analyzeLastWriter(mod *ir.Module) []map[int]ir.Reg {
	n := len(mod.Ops)
	in := make([]map[int]ir.Reg, n)
	have := make([]bool, n)
	for idx := range regionStarts(mod) {
		in[idx] = map[int]ir.Reg{}
		have[idx] = true
	}

	transfer := func(op ir.Op, state map[int]ir.Reg) map[int]ir.Reg {
		out := make(map[int]ir.Reg, len(state))
		for k, v := range state {
			out[k] = v
		}
		if op.Code == ir.OpSLocal {
			out[op.LocalIdx] = op.A
		}
		return out
	}
	meetWriters := func(a, b map[int]ir.Reg) (map[int]ir.Reg, bool) {
		out := make(map[int]ir.Reg)
		for k, v := range a {
			if v2, ok := b[k]; ok && v2 == v {
				out[k] = v
			}
		}
		return out, len(out) != len(a)
	}

	for iter := 0; iter < 4*n+16; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			if !have[i] {
				continue
			}
			out := transfer(mod.Ops[i], in[i])
			for _, succ := range successors(mod, i) {
				if !have[succ] {
					cp := make(map[int]ir.Reg, len(out))
					for k, v := range out {
						cp[k] = v
					}
					in[succ] = cp
					have[succ] = true
					changed = true
					continue
				}
				merged, ch := meetWriters(in[succ], out)
				if ch {
					in[succ] = merged
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	for i := 0; i < n; i++ {
		if !have[i] {
			in[i] = map[int]ir.Reg{}
		}
	}
	return in
}
