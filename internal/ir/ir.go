package ir

// Reg is a virtual register index, scoped to a function frame.
type Reg uint32

// OpCode names the opcode set serialized by internal/msbc.
type OpCode uint8

const (
	OpLConst OpCode = iota + 1
	OpLLocal
	OpSLocal

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	OpAnd
	OpOr
	OpNot

	OpInc
	OpDec

	OpLabel
	OpJump
	OpBrTrue
	OpBrFalse

	OpHalt

	OpCall
	OpCallLabel

	OpRet

	OpArrayNew
	OpArrayGet
	OpArraySet
	OpObjectNew
	OpGetProp
	OpSetProp
	OpLoadGlobal
)

// Op is a single IR instruction: a tagged variant over OpCode with zero
// or more register operands and an optional embedded constant Value or
// string payload. Which fields are meaningful for a given Code is
// opcode-specific; internal/msbc's encode/decode switch is the
// authoritative field-usage reference.
type Op struct {
	Code OpCode

	Dest    Reg // result register, when this op produces one
	A, B, C Reg // operand registers; meaning is opcode-specific

	Args []Reg    // variadic register operands: Call/CallLabel args, ArrayNew/ObjectNew values
	Keys []string // parallel to Args, for ObjectNew

	LocalIdx int // local-slot index for LLocal/SLocal/LoadGlobal

	Const Value  // LConst payload
	Str   string // Label name; GetProp/SetProp literal key when !KeyIsReg

	Target int // resolved op index, for Jump/BrTrue/BrFalse
	Label  int // function ordinal, for CallLabel

	// KeyIsReg: GetProp/SetProp keys may be a constant string key (from
	// `.name`, held in Str) or a register holding the key (from
	// `[expr]`, held in B).
	KeyIsReg bool
}

// Label names a point in the op sequence.
type Label struct {
	Name string
	Pos  int
}

// Module is the in-memory IR optimized in place.
type Module struct {
	Ops    []Op
	Labels map[string]int // name -> op index

	// ExternallyVisible holds registers whose final values must remain
	// observable: return registers of top-level entry statements,
	// registers feeding a host/plugin call, or registers inspected by
	// a built-in with observable effect.
	ExternallyVisible map[Reg]bool

	// PluginProducers holds op indices that feed a host/plugin call and
	// must survive DCE even though nothing downstream reads their
	// destination register. Populated by the lowerer at the point each
	// call argument is lowered, since by the time the optimizer runs
	// the connection between an argument register and "this feeds a
	// plugin-visible call" is no longer locally obvious.
	PluginProducers map[int]bool

	// FuncEntries maps a stage's ordinal (definition order) to the op
	// index of its `Label L{n}` op.
	FuncEntries []int
}

func NewModule() *Module {
	return &Module{
		Labels:            make(map[string]int),
		ExternallyVisible: make(map[Reg]bool),
		PluginProducers:   make(map[int]bool),
	}
}

// Emit appends op and returns its index.
func (m *Module) Emit(op Op) int {
	m.Ops = append(m.Ops, op)
	return len(m.Ops) - 1
}

// ResolveLabel emits a Label op for name at the next op index and
// records the resolution in m.Labels.
func (m *Module) ResolveLabel(name string) int {
	idx := m.Emit(Op{Code: OpLabel, Str: name})
	m.Labels[name] = idx
	return idx
}

// IsArithLike reports whether op is in the const-fold purity set:
// arithmetic, comparison, logical, and Not.
func (op Op) IsArithLike() bool {
	switch op.Code {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte,
		OpAnd, OpOr, OpNot:
		return true
	default:
		return false
	}
}

// IsConstFoldable reports whether op is arithmetic-like AND safe to
// fold given constant operands a, b — division/modulo by zero is
// excluded; it must trap at runtime instead of folding to a bogus
// constant.
func (op Op) IsConstFoldable(a, b Value) bool {
	if !op.IsArithLike() {
		return false
	}
	if (op.Code == OpDiv || op.Code == OpMod) && b.IsNumeric() && b.AsFloat() == 0 {
		return false
	}
	return true
}

// HasSideEffect reports ops that are never dead regardless of their
// destination's use count: calls, property/array stores, local stores,
// returns, jumps, branches, and labels.
func (op Op) HasSideEffect() bool {
	switch op.Code {
	case OpCall, OpCallLabel, OpSetProp, OpArraySet, OpSLocal,
		OpRet, OpJump, OpBrTrue, OpBrFalse, OpLabel, OpHalt:
		return true
	default:
		return false
	}
}

// ReadRegs returns every register op reads, excluding Dest.
func (op Op) ReadRegs() []Reg {
	var regs []Reg
	switch op.Code {
	case OpSLocal:
		regs = append(regs, op.A)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte,
		OpAnd, OpOr:
		regs = append(regs, op.A, op.B)
	case OpNot:
		regs = append(regs, op.A)
	case OpInc, OpDec:
		regs = append(regs, op.Dest)
	case OpBrTrue, OpBrFalse:
		regs = append(regs, op.A)
	case OpCall:
		regs = append(regs, op.A)
		regs = append(regs, op.Args...)
	case OpCallLabel:
		regs = append(regs, op.Args...)
	case OpRet:
		regs = append(regs, op.A)
	case OpArrayNew, OpObjectNew:
		regs = append(regs, op.Args...)
	case OpArrayGet:
		regs = append(regs, op.A, op.B)
	case OpArraySet:
		regs = append(regs, op.A, op.B, op.C)
	case OpGetProp:
		regs = append(regs, op.A)
		if op.KeyIsReg {
			regs = append(regs, op.B)
		}
	case OpSetProp:
		regs = append(regs, op.A, op.C)
		if op.KeyIsReg {
			regs = append(regs, op.B)
		}
	}
	return regs
}

// WritesReg reports whether op has a destination register and returns it.
func (op Op) WritesReg() (Reg, bool) {
	switch op.Code {
	case OpLConst, OpLLocal,
		OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte,
		OpAnd, OpOr, OpNot,
		OpInc, OpDec,
		OpCall, OpCallLabel,
		OpArrayNew, OpArrayGet, OpObjectNew, OpGetProp, OpLoadGlobal:
		return op.Dest, true
	default:
		return 0, false
	}
}

// IsControl reports whether op participates in control transfer or
// defines a jump target — never pruned, reordered, or renamed by the
// optimizer.
func (op Op) IsControl() bool {
	switch op.Code {
	case OpLabel, OpJump, OpBrTrue, OpBrFalse, OpHalt, OpRet, OpCallLabel:
		return true
	default:
		return false
	}
}
