package optimize

import "mainstage/internal/ir"

// eliminateDeadCode removes ops with no side effect, outside control
// flow, whose destination register is never read and is not held in
// Module.ExternallyVisible, and whose index is not protected in
// Module.PluginProducers. Dead chains longer than one op are cleaned
// up over successive sweeps of the outer pipeline rather than
// recursively within a single call.
func eliminateDeadCode(mod *ir.Module) bool {
	used := make(map[ir.Reg]bool, len(mod.Ops))
	for _, op := range mod.Ops {
		for _, r := range op.ReadRegs() {
			used[r] = true
		}
	}
	for r := range mod.ExternallyVisible {
		used[r] = true
	}

	keep := make([]bool, len(mod.Ops))
	changed := false
	for i, op := range mod.Ops {
		if op.HasSideEffect() || op.IsControl() || mod.PluginProducers[i] {
			keep[i] = true
			continue
		}
		dest, ok := op.WritesReg()
		if ok && used[dest] {
			keep[i] = true
			continue
		}
		changed = true
	}
	if !changed {
		return false
	}
	compact(mod, keep)
	return true
}
