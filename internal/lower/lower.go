// Package lower translates a parsed program (internal/ast) into the
// flat register IR (internal/ir) the optimizer and bytecode emitter
// consume.
//
// Lowering proceeds in two phases so that linear execution from op
// index 0 never falls into a stage body that nothing has called yet:
// phase one lowers every workspace/project entry body first, ending in
// Halt; phase two appends each stage body behind its `Label L{n}`,
// always followed by an implicit `Ret null`, which is simply unreachable
// when the body already returns on every path. Stage ordinals (the {n} in L{n}) are assigned in a
// separate pre-pass over declaration order, independent of where a
// stage's code eventually lands, so a stage may call another declared
// later in the source.
//
// All named variables — stage parameters, loop variables, assignment
// targets, at any nesting of if/while/for — are bound to frame-local
// slots (LLocal/SLocal), never left as bare registers. A module-level
// name assigned in an entry body is reachable from a stage body as a
// read-only global via LoadGlobal, which indexes directly into the
// entry frame's locals. This is what lets control-flow joins (a local
// assigned on some paths, read after the join) resolve to a sensible
// value without phi nodes: an unwritten local simply reads as Null.
package lower

import (
	"fmt"

	"mainstage/internal/ast"
	"mainstage/internal/ir"
)

// Lower translates prog into a single optimizer-ready ir.Module.
func Lower(prog *ast.Program) (*ir.Module, error) {
	lw := &lowerer{
		mod:          ir.NewModule(),
		stageOrdinal: make(map[string]int),
		entryLocals:  make(map[string]int),
	}
	return lw.run(prog)
}

type funcCtx struct {
	locals    map[string]int
	nextLocal int
	nextReg   ir.Reg
	regDef    map[ir.Reg]int // register -> defining op index, within this function
}

func newFuncCtx() *funcCtx {
	return &funcCtx{locals: make(map[string]int), regDef: make(map[ir.Reg]int)}
}

func (f *funcCtx) reg() ir.Reg {
	r := f.nextReg
	f.nextReg++
	return r
}

// declareLocal returns name's local slot, allocating one if name has
// not been bound yet in this function.
func (f *funcCtx) declareLocal(name string) int {
	if idx, ok := f.locals[name]; ok {
		return idx
	}
	idx := f.nextLocal
	f.nextLocal++
	f.locals[name] = idx
	return idx
}

// synthLocal allocates a local slot with no source name, used to merge
// branch-dependent values (ternary results, loop counters).
func (f *funcCtx) synthLocal() int {
	idx := f.nextLocal
	f.nextLocal++
	return idx
}

type lowerer struct {
	mod          *ir.Module
	stageOrdinal map[string]int
	entryLocals  map[string]int
	fc           *funcCtx
	labelSeq     int
}

func (lw *lowerer) newLabel(prefix string) string {
	lw.labelSeq++
	return fmt.Sprintf("%s%d", prefix, lw.labelSeq)
}

// emit appends op to the module and records the op index of whatever
// register it defines, so later Call lowering can look up the
// producing op to mark as a plugin producer.
func (lw *lowerer) emit(op ir.Op) int {
	idx := lw.mod.Emit(op)
	if r, ok := op.WritesReg(); ok {
		lw.fc.regDef[r] = idx
	}
	return idx
}

func (lw *lowerer) run(prog *ast.Program) (*ir.Module, error) {
	ordinal := 0
	var stages []*ast.StageDecl
	var entries []*ast.EntryDecl
	for _, d := range prog.Decls {
		switch decl := d.(type) {
		case *ast.StageDecl:
			lw.stageOrdinal[decl.Name] = ordinal
			ordinal++
			stages = append(stages, decl)
		case *ast.EntryDecl:
			entries = append(entries, decl)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("lower: program has no workspace or project entry point")
	}

	lw.fc = newFuncCtx()
	for _, e := range entries {
		for _, s := range e.Body {
			if err := lw.lowerStmt(s); err != nil {
				return nil, err
			}
		}
	}
	for name, idx := range lw.fc.locals {
		lw.entryLocals[name] = idx
	}
	lw.emit(ir.Op{Code: ir.OpHalt})

	lw.mod.FuncEntries = make([]int, len(stages))
	for _, sd := range stages {
		ord := lw.stageOrdinal[sd.Name]
		label := fmt.Sprintf("L%d", ord)
		entryIdx := lw.mod.ResolveLabel(label)
		lw.mod.FuncEntries[ord] = entryIdx

		lw.fc = newFuncCtx()
		for _, p := range sd.Params {
			lw.fc.declareLocal(p)
		}
		for _, s := range sd.Body {
			if err := lw.lowerStmt(s); err != nil {
				return nil, err
			}
		}
		nullReg := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpLConst, Dest: nullReg, Const: ir.Null()})
		lw.mod.ExternallyVisible[nullReg] = true
		lw.emit(ir.Op{Code: ir.OpRet, A: nullReg})
	}

	if err := lw.resolveBranches(); err != nil {
		return nil, err
	}
	return lw.mod, nil
}

// resolveBranches fills in Target for every Jump/BrTrue/BrFalse op,
// whose Str field holds the name of a label emitted somewhere in the
// module (forward or backward from the branch itself).
func (lw *lowerer) resolveBranches() error {
	for i := range lw.mod.Ops {
		op := &lw.mod.Ops[i]
		switch op.Code {
		case ir.OpJump, ir.OpBrTrue, ir.OpBrFalse:
			idx, ok := lw.mod.Labels[op.Str]
			if !ok {
				return fmt.Errorf("lower: unresolved label %q", op.Str)
			}
			op.Target = idx
		}
	}
	return nil
}

// ---- identifier resolution ----

func (lw *lowerer) loadIdent(name string) (ir.Reg, error) {
	if idx, ok := lw.fc.locals[name]; ok {
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpLLocal, Dest: dest, LocalIdx: idx})
		return dest, nil
	}
	if idx, ok := lw.entryLocals[name]; ok {
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpLoadGlobal, Dest: dest, LocalIdx: idx})
		return dest, nil
	}
	return 0, fmt.Errorf("lower: unknown identifier %q", name)
}

// storeIdent writes src into name's local slot, declaring one in the
// current function scope if name is not already a local there — this
// is what makes assigning a name that only exists as an entry-frame
// global create an independent, stage-local shadow rather than
// mutating the entry frame.
func (lw *lowerer) storeIdent(name string, src ir.Reg) {
	idx := lw.fc.declareLocal(name)
	lw.emit(ir.Op{Code: ir.OpSLocal, A: src, LocalIdx: idx})
}

// ---- statements ----

func (lw *lowerer) lowerStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.ExprStmt:
		r, err := lw.lowerExpr(st.X)
		if err != nil {
			return err
		}
		lw.mod.ExternallyVisible[r] = true
		return nil

	case *ast.Assign:
		return lw.lowerAssign(st)

	case *ast.MemberAssign:
		return lw.lowerMemberAssign(st)

	case *ast.If:
		return lw.lowerIf(st)

	case *ast.While:
		return lw.lowerWhile(st)

	case *ast.ForIn:
		return lw.lowerForIn(st)

	case *ast.ForTo:
		return lw.lowerForTo(st)

	case *ast.Return:
		var r ir.Reg
		if st.Value == nil {
			r = lw.fc.reg()
			lw.emit(ir.Op{Code: ir.OpLConst, Dest: r, Const: ir.Null()})
		} else {
			v, err := lw.lowerExpr(st.Value)
			if err != nil {
				return err
			}
			r = v
		}
		lw.mod.ExternallyVisible[r] = true
		lw.emit(ir.Op{Code: ir.OpRet, A: r})
		return nil

	case *ast.TernaryStmt:
		cond, err := lw.lowerExpr(st.Cond)
		if err != nil {
			return err
		}
		lelse := lw.newLabel("Lelse")
		lend := lw.newLabel("Lend")
		lw.emit(ir.Op{Code: ir.OpBrFalse, A: cond, Str: lelse})
		if _, err := lw.lowerExpr(st.Then); err != nil {
			return err
		}
		lw.emit(ir.Op{Code: ir.OpJump, Str: lend})
		lw.mod.ResolveLabel(lelse)
		if _, err := lw.lowerExpr(st.Else); err != nil {
			return err
		}
		lw.mod.ResolveLabel(lend)
		return nil

	default:
		return fmt.Errorf("lower: unhandled statement %T", s)
	}
}

func (lw *lowerer) lowerAssign(st *ast.Assign) error {
	if st.Op == "=" {
		v, err := lw.lowerExpr(st.Value)
		if err != nil {
			return err
		}
		lw.storeIdent(st.Name, v)
		return nil
	}
	cur, err := lw.loadIdent(st.Name)
	if err != nil {
		return err
	}
	rhs, err := lw.lowerExpr(st.Value)
	if err != nil {
		return err
	}
	code, ok := compoundOpCode(st.Op)
	if !ok {
		return fmt.Errorf("lower: bad compound operator %q", st.Op)
	}
	dest := lw.fc.reg()
	lw.emit(ir.Op{Code: code, Dest: dest, A: cur, B: rhs})
	lw.storeIdent(st.Name, dest)
	return nil
}

func (lw *lowerer) lowerMemberAssign(st *ast.MemberAssign) error {
	objReg, err := lw.lowerExpr(st.Object)
	if err != nil {
		return err
	}
	keyStr, keyReg, keyIsReg, err := lw.lowerKey(st.Key)
	if err != nil {
		return err
	}

	var valReg ir.Reg
	if st.Op == "=" {
		v, err := lw.lowerExpr(st.Value)
		if err != nil {
			return err
		}
		valReg = v
	} else {
		cur := lw.fc.reg()
		getOp := ir.Op{Code: ir.OpGetProp, Dest: cur, A: objReg}
		if keyIsReg {
			getOp.B, getOp.KeyIsReg = keyReg, true
		} else {
			getOp.Str = keyStr
		}
		lw.emit(getOp)

		rhs, err := lw.lowerExpr(st.Value)
		if err != nil {
			return err
		}
		code, ok := compoundOpCode(st.Op)
		if !ok {
			return fmt.Errorf("lower: bad compound operator %q", st.Op)
		}
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: code, Dest: dest, A: cur, B: rhs})
		valReg = dest
	}

	setOp := ir.Op{Code: ir.OpSetProp, A: objReg, C: valReg}
	if keyIsReg {
		setOp.B, setOp.KeyIsReg = keyReg, true
	} else {
		setOp.Str = keyStr
	}
	lw.emit(setOp)
	return nil
}

func (lw *lowerer) lowerIf(st *ast.If) error {
	cond, err := lw.lowerExpr(st.Cond)
	if err != nil {
		return err
	}
	lelse := lw.newLabel("Lelse")
	lend := lw.newLabel("Lend")
	lw.emit(ir.Op{Code: ir.OpBrFalse, A: cond, Str: lelse})
	for _, s := range st.Then {
		if err := lw.lowerStmt(s); err != nil {
			return err
		}
	}
	lw.emit(ir.Op{Code: ir.OpJump, Str: lend})
	lw.mod.ResolveLabel(lelse)
	for _, s := range st.Else {
		if err := lw.lowerStmt(s); err != nil {
			return err
		}
	}
	lw.mod.ResolveLabel(lend)
	return nil
}

func (lw *lowerer) lowerWhile(st *ast.While) error {
	lhead := lw.newLabel("Lhead")
	lend := lw.newLabel("Lend")
	lw.mod.ResolveLabel(lhead)
	cond, err := lw.lowerExpr(st.Cond)
	if err != nil {
		return err
	}
	lw.emit(ir.Op{Code: ir.OpBrFalse, A: cond, Str: lend})
	for _, s := range st.Body {
		if err := lw.lowerStmt(s); err != nil {
			return err
		}
	}
	lw.emit(ir.Op{Code: ir.OpJump, Str: lhead})
	lw.mod.ResolveLabel(lend)
	return nil
}

// lowerForIn walks an array's length, binding st.Var to each element
// in turn. The iteration index lives in a synthetic local (not a bare
// register) so its value survives the loop body and the back-edge.
func (lw *lowerer) lowerForIn(st *ast.ForIn) error {
	iterReg, err := lw.lowerExpr(st.Iter)
	if err != nil {
		return err
	}
	idxLocal := lw.fc.synthLocal()
	zero := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLConst, Dest: zero, Const: ir.Int(0)})
	lw.emit(ir.Op{Code: ir.OpSLocal, A: zero, LocalIdx: idxLocal})

	lhead := lw.newLabel("Lhead")
	lend := lw.newLabel("Lend")
	lw.mod.ResolveLabel(lhead)

	idxReg := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLLocal, Dest: idxReg, LocalIdx: idxLocal})
	lenReg := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpGetProp, Dest: lenReg, A: iterReg, Str: "length"})
	cond := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLt, Dest: cond, A: idxReg, B: lenReg})
	lw.emit(ir.Op{Code: ir.OpBrFalse, A: cond, Str: lend})

	elem := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpArrayGet, Dest: elem, A: iterReg, B: idxReg})
	loopVar := lw.fc.declareLocal(st.Var)
	lw.emit(ir.Op{Code: ir.OpSLocal, A: elem, LocalIdx: loopVar})

	for _, s := range st.Body {
		if err := lw.lowerStmt(s); err != nil {
			return err
		}
	}

	bump := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLLocal, Dest: bump, LocalIdx: idxLocal})
	lw.emit(ir.Op{Code: ir.OpInc, Dest: bump})
	lw.emit(ir.Op{Code: ir.OpSLocal, A: bump, LocalIdx: idxLocal})
	lw.emit(ir.Op{Code: ir.OpJump, Str: lhead})
	lw.mod.ResolveLabel(lend)
	return nil
}

// lowerForTo evaluates Bound once, before the loop, into a synthetic
// local — a non-constant bound expression must not be re-evaluated on
// every iteration.
func (lw *lowerer) lowerForTo(st *ast.ForTo) error {
	assign, ok := st.Init.(*ast.Assign)
	if !ok {
		return fmt.Errorf("lower: for-to initializer must be an assignment")
	}
	if err := lw.lowerStmt(assign); err != nil {
		return err
	}

	boundInit, err := lw.lowerExpr(st.Bound)
	if err != nil {
		return err
	}
	boundLocal := lw.fc.synthLocal()
	lw.emit(ir.Op{Code: ir.OpSLocal, A: boundInit, LocalIdx: boundLocal})

	lhead := lw.newLabel("Lhead")
	lend := lw.newLabel("Lend")
	lw.mod.ResolveLabel(lhead)

	cur, err := lw.loadIdent(assign.Name)
	if err != nil {
		return err
	}
	bound := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLLocal, Dest: bound, LocalIdx: boundLocal})
	cond := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLt, Dest: cond, A: cur, B: bound})
	lw.emit(ir.Op{Code: ir.OpBrFalse, A: cond, Str: lend})

	for _, s := range st.Body {
		if err := lw.lowerStmt(s); err != nil {
			return err
		}
	}

	bump, err := lw.loadIdent(assign.Name)
	if err != nil {
		return err
	}
	lw.emit(ir.Op{Code: ir.OpInc, Dest: bump})
	lw.storeIdent(assign.Name, bump)
	lw.emit(ir.Op{Code: ir.OpJump, Str: lhead})
	lw.mod.ResolveLabel(lend)
	return nil
}

// ---- expressions ----

func (lw *lowerer) lowerExpr(e ast.Expr) (ir.Reg, error) {
	switch expr := e.(type) {
	case *ast.Literal:
		return lw.lowerLiteral(expr)

	case *ast.Ident:
		return lw.loadIdent(expr.Name)

	case *ast.ArrayLit:
		var elems []ir.Reg
		for _, el := range expr.Elements {
			r, err := lw.lowerExpr(el)
			if err != nil {
				return 0, err
			}
			elems = append(elems, r)
		}
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpArrayNew, Dest: dest, Args: elems})
		return dest, nil

	case *ast.ObjectLit:
		var vals []ir.Reg
		for _, v := range expr.Values {
			r, err := lw.lowerExpr(v)
			if err != nil {
				return 0, err
			}
			vals = append(vals, r)
		}
		dest := lw.fc.reg()
		keys := append([]string(nil), expr.Keys...)
		lw.emit(ir.Op{Code: ir.OpObjectNew, Dest: dest, Args: vals, Keys: keys})
		return dest, nil

	case *ast.Unary:
		return lw.lowerUnary(expr)

	case *ast.IncDec:
		return lw.lowerIncDec(expr)

	case *ast.Binary:
		a, err := lw.lowerExpr(expr.Left)
		if err != nil {
			return 0, err
		}
		b, err := lw.lowerExpr(expr.Right)
		if err != nil {
			return 0, err
		}
		code, ok := binaryOpCode(expr.Op)
		if !ok {
			return 0, fmt.Errorf("lower: unsupported binary operator %q", expr.Op)
		}
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: code, Dest: dest, A: a, B: b})
		return dest, nil

	case *ast.Logical:
		a, err := lw.lowerExpr(expr.Left)
		if err != nil {
			return 0, err
		}
		b, err := lw.lowerExpr(expr.Right)
		if err != nil {
			return 0, err
		}
		code := ir.OpAnd
		if expr.Op == "||" {
			code = ir.OpOr
		}
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: code, Dest: dest, A: a, B: b})
		return dest, nil

	case *ast.Member:
		objReg, err := lw.lowerExpr(expr.Object)
		if err != nil {
			return 0, err
		}
		keyStr, keyReg, keyIsReg, err := lw.lowerKey(expr.Key)
		if err != nil {
			return 0, err
		}
		dest := lw.fc.reg()
		op := ir.Op{Code: ir.OpGetProp, Dest: dest, A: objReg}
		if keyIsReg {
			op.B, op.KeyIsReg = keyReg, true
		} else {
			op.Str = keyStr
		}
		lw.emit(op)
		return dest, nil

	case *ast.Call:
		return lw.lowerCall(expr)

	case *ast.Ternary:
		return lw.lowerTernary(expr)

	default:
		return 0, fmt.Errorf("lower: unhandled expression %T", e)
	}
}

func (lw *lowerer) lowerLiteral(lit *ast.Literal) (ir.Reg, error) {
	var c ir.Value
	switch v := lit.Value.(type) {
	case nil:
		c = ir.Null()
	case int64:
		c = ir.Int(v)
	case float64:
		c = ir.Float(v)
	case bool:
		c = ir.Bool(v)
	case string:
		c = ir.Str(v)
	default:
		return 0, fmt.Errorf("lower: unsupported literal payload %T", lit.Value)
	}
	dest := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLConst, Dest: dest, Const: c})
	return dest, nil
}

func (lw *lowerer) lowerUnary(u *ast.Unary) (ir.Reg, error) {
	switch u.Op {
	case "!":
		a, err := lw.lowerExpr(u.Operand)
		if err != nil {
			return 0, err
		}
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpNot, Dest: dest, A: a})
		return dest, nil
	case "-":
		a, err := lw.lowerExpr(u.Operand)
		if err != nil {
			return 0, err
		}
		zero := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpLConst, Dest: zero, Const: ir.Int(0)})
		dest := lw.fc.reg()
		lw.emit(ir.Op{Code: ir.OpSub, Dest: dest, A: zero, B: a})
		return dest, nil
	default:
		return 0, fmt.Errorf("lower: unsupported unary operator %q", u.Op)
	}
}

// lowerIncDec loads the named local twice for a postfix use: once to
// capture the pre-increment value as the expression result, once to
// mutate and write back. That avoids needing a dedicated register-move
// opcode just for this.
func (lw *lowerer) lowerIncDec(id *ast.IncDec) (ir.Reg, error) {
	code := ir.OpInc
	if id.Op == "--" {
		code = ir.OpDec
	}
	if id.Postfix {
		orig, err := lw.loadIdent(id.Target)
		if err != nil {
			return 0, err
		}
		cp, err := lw.loadIdent(id.Target)
		if err != nil {
			return 0, err
		}
		lw.emit(ir.Op{Code: code, Dest: cp})
		lw.storeIdent(id.Target, cp)
		return orig, nil
	}
	r, err := lw.loadIdent(id.Target)
	if err != nil {
		return 0, err
	}
	lw.emit(ir.Op{Code: code, Dest: r})
	lw.storeIdent(id.Target, r)
	return r, nil
}

// lowerCall distinguishes a stage invocation (resolved to its ordinal
// and lowered as CallLabel) from a host/plugin invocation (lowered as
// Call against a Symbol constant, resolved by name at runtime). Every
// argument register feeding a host/plugin call is recorded as a plugin
// producer and marked externally visible, so DCE and the canonicalizer
// cannot eliminate or silently renumber it even if nothing in the IR
// reads it again directly.
func (lw *lowerer) lowerCall(call *ast.Call) (ir.Reg, error) {
	callee, ok := call.Callee.(*ast.Ident)
	if !ok {
		return 0, fmt.Errorf("lower: call target must be a stage or host/plugin function name")
	}
	var args []ir.Reg
	for _, a := range call.Args {
		r, err := lw.lowerExpr(a)
		if err != nil {
			return 0, err
		}
		args = append(args, r)
	}
	dest := lw.fc.reg()
	if ord, ok := lw.stageOrdinal[callee.Name]; ok {
		lw.emit(ir.Op{Code: ir.OpCallLabel, Dest: dest, Label: ord, Args: args})
		return dest, nil
	}

	fnReg := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLConst, Dest: fnReg, Const: ir.Symbol(callee.Name)})
	lw.emit(ir.Op{Code: ir.OpCall, Dest: dest, A: fnReg, Args: args})

	for _, r := range args {
		if idx, ok := lw.fc.regDef[r]; ok {
			lw.mod.PluginProducers[idx] = true
		}
		lw.mod.ExternallyVisible[r] = true
	}
	lw.mod.ExternallyVisible[dest] = true
	return dest, nil
}

func (lw *lowerer) lowerTernary(t *ast.Ternary) (ir.Reg, error) {
	cond, err := lw.lowerExpr(t.Cond)
	if err != nil {
		return 0, err
	}
	synth := lw.fc.synthLocal()
	lelse := lw.newLabel("Lelse")
	lend := lw.newLabel("Lend")
	lw.emit(ir.Op{Code: ir.OpBrFalse, A: cond, Str: lelse})

	thenReg, err := lw.lowerExpr(t.Then)
	if err != nil {
		return 0, err
	}
	lw.emit(ir.Op{Code: ir.OpSLocal, A: thenReg, LocalIdx: synth})
	lw.emit(ir.Op{Code: ir.OpJump, Str: lend})

	lw.mod.ResolveLabel(lelse)
	elseReg, err := lw.lowerExpr(t.Else)
	if err != nil {
		return 0, err
	}
	lw.emit(ir.Op{Code: ir.OpSLocal, A: elseReg, LocalIdx: synth})
	lw.mod.ResolveLabel(lend)

	dest := lw.fc.reg()
	lw.emit(ir.Op{Code: ir.OpLLocal, Dest: dest, LocalIdx: synth})
	return dest, nil
}

// lowerKey distinguishes a literal string key (`.name`, produced by the
// parser as an *ast.Literal) from an arbitrary bracket-index expression.
func (lw *lowerer) lowerKey(k ast.Expr) (str string, reg ir.Reg, isReg bool, err error) {
	if lit, ok := k.(*ast.Literal); ok {
		if s, ok := lit.Value.(string); ok {
			return s, 0, false, nil
		}
	}
	r, err := lw.lowerExpr(k)
	if err != nil {
		return "", 0, false, err
	}
	return "", r, true, nil
}

func binaryOpCode(op string) (ir.OpCode, bool) {
	switch op {
	case "+":
		return ir.OpAdd, true
	case "-":
		return ir.OpSub, true
	case "*":
		return ir.OpMul, true
	case "/":
		return ir.OpDiv, true
	case "%":
		return ir.OpMod, true
	case "==":
		return ir.OpEq, true
	case "!=":
		return ir.OpNeq, true
	case "<":
		return ir.OpLt, true
	case "<=":
		return ir.OpLte, true
	case ">":
		return ir.OpGt, true
	case ">=":
		return ir.OpGte, true
	default:
		return 0, false
	}
}

func compoundOpCode(op string) (ir.OpCode, bool) {
	switch op {
	case "+=":
		return ir.OpAdd, true
	case "-=":
		return ir.OpSub, true
	case "*=":
		return ir.OpMul, true
	case "/=":
		return ir.OpDiv, true
	case "%=":
		return ir.OpMod, true
	default:
		return 0, false
	}
}
