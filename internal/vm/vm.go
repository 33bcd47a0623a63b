// Package vm executes an optimized ir.Module on a register-based
// virtual machine. Execution starts at op index 0 and runs until a
// top-frame Halt, an explicit error, or the step limit is exceeded.
package vm

import (
	"mainstage/internal/ir"
	"mainstage/internal/mserrors"
)

// DefaultStepLimit bounds total op dispatches per Run, so a runaway
// loop in guest code can't hang the host process. Callers embedding
// the VM in a longer-lived process should raise it explicitly.
const DefaultStepLimit = 200

// HostFunc is a built-in callable registered under a name in the host
// table (say, fmt, ask, read, write, ...). Args have already been
// cloned out of their source registers by the caller.
type HostFunc func(vm *VM, args []ir.Value) (ir.Value, error)

// PluginCaller dispatches a call to an in-process native plugin by
// name. found is false when no loaded plugin exports that name, which
// the VM treats as an unknown symbol rather than a plugin failure.
type PluginCaller interface {
	Call(name string, args []ir.Value) (ir.Value, bool, error)
}

// VM holds one module's execution state: a call stack of frames, a
// program counter into mod.Ops, and the host/plugin dispatch tables.
type VM struct {
	mod       *ir.Module
	frames    []*Frame
	pc        int
	steps     int
	stepLimit int
	result    ir.Value

	Host    map[string]HostFunc
	Plugins PluginCaller
}

// New constructs a VM ready to run mod. stepLimit <= 0 means
// DefaultStepLimit.
func New(mod *ir.Module, host map[string]HostFunc, plugins PluginCaller, stepLimit int) *VM {
	if stepLimit <= 0 {
		stepLimit = DefaultStepLimit
	}
	if host == nil {
		host = map[string]HostFunc{}
	}
	return &VM{
		mod:       mod,
		frames:    []*Frame{newFrame(-1, 0)},
		stepLimit: stepLimit,
		result:    ir.Null(),
		Host:      host,
		Plugins:   plugins,
	}
}

// top returns the currently executing frame.
func (vm *VM) top() *Frame { return vm.frames[len(vm.frames)-1] }

// entry returns frame 0, the one module-level locals live in and the
// only frame LoadGlobal ever reads from.
func (vm *VM) entry() *Frame { return vm.frames[0] }

// Run executes mod to completion and returns the last Ret's value, or
// Null if execution halted without ever running a Ret. A top-level Halt
// ends execution normally; running off the end of Ops without one is
// also treated as a normal stop, mirroring how the lowerer always
// appends Halt itself but a hand-assembled module need not.
func (vm *VM) Run() (ir.Value, error) {
	for {
		if vm.pc < 0 || vm.pc >= len(vm.mod.Ops) {
			return vm.result, nil
		}
		vm.steps++
		if vm.steps > vm.stepLimit {
			return vm.result, mserrors.ErrStepLimit
		}
		op := vm.mod.Ops[vm.pc]
		next, err := vm.step(op)
		if err != nil {
			return vm.result, err
		}
		if next == pcHalt {
			return vm.result, nil
		}
		vm.pc = next
	}
}

// Result returns the value Run produced: the last Ret's value, or Null
// if the program halted without running a Ret. Safe to call before Run
// returns, but only meaningful afterward.
func (vm *VM) Result() ir.Value { return vm.result }

// pcHalt is a sentinel distinct from any real op index, signalling Run
// to stop.
const pcHalt = -1

func (vm *VM) step(op ir.Op) (int, error) {
	f := vm.top()
	switch op.Code {
	case ir.OpLConst:
		f.setReg(op.Dest, op.Const)
	case ir.OpLLocal:
		f.setReg(op.Dest, f.getLocal(op.LocalIdx))
	case ir.OpSLocal:
		f.setLocal(op.LocalIdx, f.getReg(op.A))
	case ir.OpLoadGlobal:
		f.setReg(op.Dest, vm.entry().getLocal(op.LocalIdx))

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		a, b := f.getReg(op.A), f.getReg(op.B)
		v, err := arith(op.Code, a, b)
		if err != nil {
			return 0, err
		}
		f.setReg(op.Dest, v)
	case ir.OpEq:
		f.setReg(op.Dest, ir.Bool(f.getReg(op.A).Equal(f.getReg(op.B))))
	case ir.OpNeq:
		f.setReg(op.Dest, ir.Bool(!f.getReg(op.A).Equal(f.getReg(op.B))))
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		f.setReg(op.Dest, compare(op.Code, f.getReg(op.A), f.getReg(op.B)))
	case ir.OpAnd:
		f.setReg(op.Dest, ir.Bool(f.getReg(op.A).AsBool() && f.getReg(op.B).AsBool()))
	case ir.OpOr:
		f.setReg(op.Dest, ir.Bool(f.getReg(op.A).AsBool() || f.getReg(op.B).AsBool()))
	case ir.OpNot:
		f.setReg(op.Dest, ir.Bool(!f.getReg(op.A).AsBool()))

	case ir.OpInc, ir.OpDec:
		v := f.getReg(op.Dest)
		if v.Kind == ir.KindInt {
			if op.Code == ir.OpInc {
				v.I++
			} else {
				v.I--
			}
			f.setReg(op.Dest, v)
		}

	case ir.OpLabel:
		// no-op marker

	case ir.OpJump:
		return op.Target, nil
	case ir.OpBrTrue:
		if f.getReg(op.A).AsBool() {
			return op.Target, nil
		}
	case ir.OpBrFalse:
		if !f.getReg(op.A).AsBool() {
			return op.Target, nil
		}

	case ir.OpHalt:
		return pcHalt, nil

	case ir.OpCall:
		fn := f.getReg(op.A)
		args := cloneArgs(f, op.Args)
		result, err := vm.dispatch(fn.S, args)
		if err != nil {
			return 0, err
		}
		f.setReg(op.Dest, result)

	case ir.OpCallLabel:
		if op.Label < 0 || op.Label >= len(vm.mod.FuncEntries) {
			return 0, mserrors.UnresolvedCallLabel(op.Label, vm.pc)
		}
		callee := newFrame(vm.pc+1, op.Dest)
		for i, r := range op.Args {
			callee.setLocal(i, f.getReg(r).Clone())
		}
		vm.frames = append(vm.frames, callee)
		return vm.mod.FuncEntries[op.Label], nil

	case ir.OpRet:
		val := f.getReg(op.A)
		vm.result = val
		returnPC, returnReg := f.returnPC, f.returnReg
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == 0 {
			return pcHalt, nil
		}
		vm.top().setReg(returnReg, val)
		return returnPC, nil

	case ir.OpArrayNew:
		elems := make([]ir.Value, len(op.Args))
		for i, r := range op.Args {
			elems[i] = f.getReg(r).Clone()
		}
		f.setReg(op.Dest, ir.Array(elems))
	case ir.OpArrayGet:
		arr, idx := f.getReg(op.A), f.getReg(op.B)
		if arr.Kind != ir.KindArray || !idx.IsNumeric() {
			f.setReg(op.Dest, ir.Null())
			break
		}
		i := int(idx.AsFloat())
		if i < 0 || i >= len(arr.A) {
			f.setReg(op.Dest, ir.Null())
			break
		}
		f.setReg(op.Dest, arr.A[i])
	case ir.OpArraySet:
		arr, idx := f.getReg(op.A), f.getReg(op.B)
		if arr.Kind != ir.KindArray || !idx.IsNumeric() {
			break
		}
		i := int(idx.AsFloat())
		if i < 0 {
			break
		}
		for len(arr.A) <= i {
			arr.A = append(arr.A, ir.Null())
		}
		arr.A[i] = f.getReg(op.C).Clone()
		f.setReg(op.A, arr)

	case ir.OpObjectNew:
		obj := ir.NewObject()
		for i, r := range op.Args {
			obj.Set(op.Keys[i], f.getReg(r).Clone())
		}
		f.setReg(op.Dest, ir.ObjectVal(obj))
	case ir.OpGetProp:
		f.setReg(op.Dest, vm.execGetProp(f, op))
	case ir.OpSetProp:
		vm.execSetProp(f, op)

	default:
		return 0, mserrors.UnknownOpcode(byte(op.Code), vm.pc)
	}
	return vm.pc + 1, nil
}

// execGetProp handles both `.name`/`[expr]` property reads and, since
// the lowerer emits the same GetProp op for `arr[i]` as for
// `obj[key]`, numeric array indexing. "length" is recognized on both
// arrays and strings ahead of any object-field lookup, since neither
// kind is ever ir.KindObject.
func (vm *VM) execGetProp(f *Frame, op ir.Op) ir.Value {
	obj := f.getReg(op.A)

	if obj.Kind == ir.KindArray {
		if !op.KeyIsReg && op.Str == "length" {
			return ir.Int(int64(len(obj.A)))
		}
		if op.KeyIsReg {
			idx := f.getReg(op.B)
			if idx.IsNumeric() {
				i := int(idx.AsFloat())
				if i >= 0 && i < len(obj.A) {
					return obj.A[i]
				}
			}
		}
		return ir.Null()
	}
	if obj.Kind == ir.KindStr && !op.KeyIsReg && op.Str == "length" {
		return ir.Int(int64(len(obj.S)))
	}

	if obj.Kind != ir.KindObject || obj.O == nil {
		return ir.Null()
	}
	if v, ok := obj.O.Get(vm.resolveKey(f, op)); ok {
		return v
	}
	return ir.Null()
}

// execSetProp mirrors execGetProp's array/object split for writes. A
// Null target is promoted to a fresh object on first field write,
// since `x = null; x.y = 1;` is how an object-typed local starts out
// in code that declares it before populating it.
func (vm *VM) execSetProp(f *Frame, op ir.Op) {
	obj := f.getReg(op.A)
	val := f.getReg(op.C).Clone()

	if obj.Kind == ir.KindArray {
		if !op.KeyIsReg {
			return
		}
		idx := f.getReg(op.B)
		if !idx.IsNumeric() {
			return
		}
		i := int(idx.AsFloat())
		if i < 0 {
			return
		}
		for len(obj.A) <= i {
			obj.A = append(obj.A, ir.Null())
		}
		obj.A[i] = val
		f.setReg(op.A, obj)
		return
	}

	key := vm.resolveKey(f, op)
	switch obj.Kind {
	case ir.KindObject:
		if obj.O == nil {
			obj.O = ir.NewObject()
		}
		obj.O.Set(key, val)
	case ir.KindNull:
		obj = ir.ObjectVal(ir.NewObject())
		obj.O.Set(key, val)
	default:
		return
	}
	f.setReg(op.A, obj)
}

// resolveKey turns a GetProp/SetProp op into the string key it
// addresses, reading a register when the key came from a bracketed
// `[expr]` access instead of a literal `.name`. Only meaningful once
// the target has been established to be (or is being promoted to) an
// object; array indices are resolved separately as numbers.
func (vm *VM) resolveKey(f *Frame, op ir.Op) string {
	if !op.KeyIsReg {
		return op.Str
	}
	v := f.getReg(op.B)
	if v.Kind == ir.KindStr || v.Kind == ir.KindSymbol {
		return v.S
	}
	return v.String()
}

// cloneArgs reads and deep-clones each argument register so a callee
// (host function or plugin) can't mutate the caller's array/object
// value through a shared backing slice or map.
func cloneArgs(f *Frame, regs []ir.Reg) []ir.Value {
	args := make([]ir.Value, len(regs))
	for i, r := range regs {
		args[i] = f.getReg(r).Clone()
	}
	return args
}

// dispatch resolves a Call's callee name against the host table first
// and the plugin registry second, so a loaded plugin can never shadow
// a built-in.
func (vm *VM) dispatch(name string, args []ir.Value) (ir.Value, error) {
	if fn, ok := vm.Host[name]; ok {
		return fn(vm, args)
	}
	if vm.Plugins != nil {
		v, found, err := vm.Plugins.Call(name, args)
		if found {
			return v, err
		}
	}
	return ir.Value{}, mserrors.UnknownSymbol(name)
}
