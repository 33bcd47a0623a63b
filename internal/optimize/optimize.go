// Package optimize implements the fixed-point optimizer pipeline that
// runs over a lowered ir.Module before it reaches the bytecode emitter:
// constant folding, constant propagation, register canonicalization,
// and dead-code elimination, interleaved with a verifier that must
// accept the module after every sweep.
//
// The pipeline is required to preserve the value of every register
// named in Module.ExternallyVisible and every op indexed in
// Module.PluginProducers — those are the only contract the optimizer
// owes the rest of the system; everything else about the module's
// shape (op count, register numbering, op order) is free to change.
package optimize

import (
	"mainstage/internal/ir"
	"mainstage/internal/mserrors"
)

// MaxSweeps bounds the fixed-point loop. A sweep that makes no further
// progress beyond this limit is treated as a non-convergence bug in a
// pass, not a normal outcome, and reported as an error rather than
// silently truncated.
const MaxSweeps = 16

// Run drives the pass pipeline to a fixed point, verifying the module
// after every sweep. It mutates mod in place and also returns it.
func Run(mod *ir.Module) (*ir.Module, error) {
	if err := Verify(mod); err != nil {
		return nil, err
	}
	for sweep := 0; sweep < MaxSweeps; sweep++ {
		changed := false
		if constFold(mod) {
			changed = true
		}
		if constPropagate(mod) {
			changed = true
		}
		if canonicalize(mod) {
			changed = true
		}
		if eliminateDeadCode(mod) {
			changed = true
		}
		if err := Verify(mod); err != nil {
			return nil, err
		}
		if !changed {
			return mod, nil
		}
	}
	return nil, mserrors.ErrOptimizeSweepLimit
}

// Verify checks the invariants the bytecode emitter and the VM both
// assume hold for any module that reaches them: every register read is
// preceded by a write to it at a lower op index, every branch and
// CallLabel targets a position that exists. The use-before-def check
// is a single linear scan in op order; it does not follow branches, so
// a write on only one arm of a branch counts as defining the register
// for every op after it.
func Verify(mod *ir.Module) error {
	defined := make(map[ir.Reg]bool)
	for i, op := range mod.Ops {
		for _, r := range op.ReadRegs() {
			if !defined[r] {
				return mserrors.UseBeforeDef(uint32(r), i)
			}
		}
		if dest, ok := op.WritesReg(); ok {
			defined[dest] = true
		}
		switch op.Code {
		case ir.OpJump, ir.OpBrTrue, ir.OpBrFalse:
			if op.Target < 0 || op.Target >= len(mod.Ops) {
				return mserrors.InvalidBranchTarget(i, op.Target)
			}
		case ir.OpCallLabel:
			if op.Label < 0 || op.Label >= len(mod.FuncEntries) {
				return mserrors.UnresolvedCallLabel(op.Label, i)
			}
		}
	}
	return nil
}

// compact removes every op index for which keep[i] is false, and
// remaps every index-valued reference in the module (Labels, branch
// Targets, FuncEntries, PluginProducers) to match the shrunk Ops
// slice. Registers themselves are untouched; callers needing a
// register remap apply it before compacting.
func compact(mod *ir.Module, keep []bool) {
	newIndex := make([]int, len(mod.Ops))
	out := make([]ir.Op, 0, len(mod.Ops))
	for i, op := range mod.Ops {
		if !keep[i] {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = len(out)
		out = append(out, op)
	}
	for i := range out {
		switch out[i].Code {
		case ir.OpJump, ir.OpBrTrue, ir.OpBrFalse:
			out[i].Target = newIndex[out[i].Target]
		}
	}
	for name, idx := range mod.Labels {
		mod.Labels[name] = newIndex[idx]
	}
	for i, idx := range mod.FuncEntries {
		mod.FuncEntries[i] = newIndex[idx]
	}
	newProducers := make(map[int]bool, len(mod.PluginProducers))
	for idx := range mod.PluginProducers {
		if ni := newIndex[idx]; ni >= 0 {
			newProducers[ni] = true
		}
	}
	mod.PluginProducers = newProducers
	mod.Ops = out
}

// remapRegs rewrites every register reference in the module through f,
// including Dest. Used by canonicalize after computing a union-find
// representative for each register.
func remapRegs(mod *ir.Module, f func(ir.Reg) ir.Reg) {
	for i := range mod.Ops {
		op := &mod.Ops[i]
		op.A, op.B, op.C = f(op.A), f(op.B), f(op.C)
		if dest, ok := op.WritesReg(); ok {
			op.Dest = f(dest)
		}
		for j, r := range op.Args {
			op.Args[j] = f(r)
		}
	}
	newVisible := make(map[ir.Reg]bool, len(mod.ExternallyVisible))
	for r := range mod.ExternallyVisible {
		newVisible[f(r)] = true
	}
	mod.ExternallyVisible = newVisible
}

// ---- union-find ----

type unionFind struct{ parent map[ir.Reg]ir.Reg }

func newUnionFind() *unionFind { return &unionFind{parent: make(map[ir.Reg]ir.Reg)} }

func (u *unionFind) find(r ir.Reg) ir.Reg {
	p, ok := u.parent[r]
	if !ok {
		return r
	}
	root := u.find(p)
	u.parent[r] = root
	return root
}

// union makes b's class a member of a's, so find(b) == find(a) going
// forward. Callers pass the pre-existing definition as a and the
// redundant alias as b so the surviving representative is always the
// original producer.
func (u *unionFind) union(a, b ir.Reg) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// ---- shared constant-dataflow analysis (used by fold and propagate) ----

// cstate is the forward-dataflow lattice element: known-constant
// registers and known-constant locals at a single program point.
type cstate struct {
	regs   map[ir.Reg]ir.Value
	locals map[int]ir.Value
}

func newCState() cstate {
	return cstate{regs: make(map[ir.Reg]ir.Value), locals: make(map[int]ir.Value)}
}

func (s cstate) clone() cstate {
	out := newCState()
	for k, v := range s.regs {
		out.regs[k] = v
	}
	for k, v := range s.locals {
		out.locals[k] = v
	}
	return out
}

func valueEqual(a, b ir.Value) bool { return a.Kind == b.Kind && a.Equal(b) }

// meet intersects two states: a register or local survives only if
// both sides agree it is the same constant. This is how a value that
// is constant on every path reaching a label join point stays
// provably constant after the join.
func meet(a, b cstate) (cstate, bool) {
	out := newCState()
	changed := false
	for k, v := range a.regs {
		if v2, ok := b.regs[k]; ok && valueEqual(v, v2) {
			out.regs[k] = v
		}
	}
	for k, v := range a.locals {
		if v2, ok := b.locals[k]; ok && valueEqual(v, v2) {
			out.locals[k] = v
		}
	}
	if len(out.regs) != len(a.regs) || len(out.locals) != len(a.locals) {
		changed = true
	}
	return out, changed
}

func successors(mod *ir.Module, i int) []int {
	op := mod.Ops[i]
	switch op.Code {
	case ir.OpJump:
		return []int{op.Target}
	case ir.OpBrTrue, ir.OpBrFalse:
		succ := []int{op.Target}
		if i+1 < len(mod.Ops) {
			succ = append(succ, i+1)
		}
		return succ
	case ir.OpRet, ir.OpHalt:
		return nil
	default:
		if i+1 < len(mod.Ops) {
			return []int{i + 1}
		}
		return nil
	}
}

func regionStarts(mod *ir.Module) map[int]bool {
	starts := map[int]bool{0: true}
	for _, idx := range mod.FuncEntries {
		starts[idx] = true
	}
	return starts
}

// transfer computes the out-state of op given its in-state. LoadGlobal
// is deliberately never treated as constant-producing: the entry frame
// it reads from is a different dataflow region, and proving a global
// constant at every call site it can be read from would require
// interprocedural analysis this pipeline does not attempt.
func transfer(op ir.Op, in cstate) cstate {
	out := in.clone()
	switch op.Code {
	case ir.OpLConst:
		out.regs[op.Dest] = op.Const
	case ir.OpNot:
		if a, ok := in.regs[op.A]; ok {
			out.regs[op.Dest] = ir.Bool(!a.AsBool())
		} else {
			delete(out.regs, op.Dest)
		}
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte,
		ir.OpAnd, ir.OpOr:
		a, okA := in.regs[op.A]
		b, okB := in.regs[op.B]
		if okA && okB && op.IsConstFoldable(a, b) {
			if v, ok := foldBinary(op.Code, a, b); ok {
				out.regs[op.Dest] = v
			} else {
				delete(out.regs, op.Dest)
			}
		} else {
			delete(out.regs, op.Dest)
		}
	case ir.OpSLocal:
		if v, ok := in.regs[op.A]; ok {
			out.locals[op.LocalIdx] = v
		} else {
			delete(out.locals, op.LocalIdx)
		}
	case ir.OpLLocal:
		if v, ok := in.locals[op.LocalIdx]; ok {
			out.regs[op.Dest] = v
		} else {
			delete(out.regs, op.Dest)
		}
	default:
		if dest, ok := op.WritesReg(); ok {
			delete(out.regs, dest)
		}
	}
	return out
}

// analyzeConstants runs the forward dataflow to a fixed point and
// returns the in-state for every op index.
func analyzeConstants(mod *ir.Module) []cstate {
	n := len(mod.Ops)
	in := make([]cstate, n)
	haveIn := make([]bool, n)
	starts := regionStarts(mod)
	for idx := range starts {
		in[idx] = newCState()
		haveIn[idx] = true
	}

	for iter := 0; iter < 4*n+16; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			if !haveIn[i] {
				continue
			}
			out := transfer(mod.Ops[i], in[i])
			for _, succ := range successors(mod, i) {
				if !haveIn[succ] {
					in[succ] = out.clone()
					haveIn[succ] = true
					changed = true
					continue
				}
				merged, ch := meet(in[succ], out)
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
		if !haveIn[i] {
			in[i] = newCState()
		}
	}
	return in
}
