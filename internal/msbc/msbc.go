// Package msbc implements the MSBC bytecode container: a bit-exact
// binary encoding of an optimized ir.Module and the loader that
// reverses it. Encode is deterministic — encoding the same Module
// twice, or encoding two Modules that are structurally identical up to
// object-key insertion order, always produces the same bytes, which is
// what makes MSBC files diffable and cacheable by content hash.
package msbc

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/exp/slices"

	"mainstage/internal/ir"
	"mainstage/internal/mserrors"
)

var magic = [4]byte{'M', 'S', 'B', 'C'}

// Version is the container format version written to every file this
// package emits and the only version its loader accepts.
const Version = 1

// wireByte maps every ir.OpCode to its fixed on-disk byte. This is the
// one place that table lives; ir.OpCode's own numbering is an internal
// enum ordering and is never written to the wire directly.
var wireByte = map[ir.OpCode]byte{
	ir.OpLConst: 0x01,
	ir.OpLLocal: 0x02,
	ir.OpSLocal: 0x03,

	ir.OpAdd: 0x10,
	ir.OpSub: 0x11,
	ir.OpMul: 0x12,
	ir.OpDiv: 0x13,
	ir.OpMod: 0x14,

	ir.OpEq:  0x20,
	ir.OpNeq: 0x21,
	ir.OpLt:  0x22,
	ir.OpLte: 0x23,
	ir.OpGt:  0x24,
	ir.OpGte: 0x25,
	ir.OpAnd: 0x26,
	ir.OpOr:  0x27,
	ir.OpNot: 0x28,

	ir.OpInc: 0x30,
	ir.OpDec: 0x31,

	ir.OpLabel:   0x40,
	ir.OpJump:    0x41,
	ir.OpBrTrue:  0x42,
	ir.OpBrFalse: 0x43,

	ir.OpHalt: 0x50,

	ir.OpCall:      0x70,
	ir.OpCallLabel: 0x71,

	ir.OpRet: 0x80,

	ir.OpArrayNew:   0x90,
	ir.OpArrayGet:   0x91,
	ir.OpArraySet:   0x92,
	ir.OpGetProp:    0x93,
	ir.OpSetProp:    0x94,
	ir.OpLoadGlobal: 0x95,
	// ObjectNew has no assigned byte upstream; it shares the container-op
	// block with Array/GetProp/SetProp and takes the next free slot.
	ir.OpObjectNew: 0x96,
}

var byteToOp map[byte]ir.OpCode

func init() {
	byteToOp = make(map[byte]ir.OpCode, len(wireByte))
	for code, b := range wireByte {
		byteToOp[b] = code
	}
}

// Encode serializes mod to the MSBC wire format.
func Encode(mod *ir.Module) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU32(&buf, Version)
	writeU32(&buf, uint32(len(mod.Ops)))
	for _, op := range mod.Ops {
		if err := encodeOp(&buf, op); err != nil {
			return nil, err
		}
	}
	writeU32(&buf, uint32(len(mod.FuncEntries)))
	for _, idx := range mod.FuncEntries {
		writeU32(&buf, uint32(idx))
	}
	return buf.Bytes(), nil
}

// Load parses the MSBC wire format into a fresh ir.Module ready for
// execution. The returned module has no Labels (by-name label lookup
// is a lowering-time concern only) and empty ExternallyVisible /
// PluginProducers sets — those constrain the optimizer, which has
// already run by the time a module is serialized.
func Load(data []byte) (*ir.Module, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, mserrors.Truncated("magic")
	}
	if gotMagic != magic {
		return nil, mserrors.BadMagic(gotMagic)
	}
	version, err := readU32(r, "version")
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, mserrors.UnsupportedVersion(version)
	}
	opCount, err := readU32(r, "op_count")
	if err != nil {
		return nil, err
	}

	mod := ir.NewModule()
	mod.Ops = make([]ir.Op, 0, opCount)
	for i := uint32(0); i < opCount; i++ {
		op, err := decodeOp(r, int(i))
		if err != nil {
			return nil, err
		}
		mod.Ops = append(mod.Ops, op)
	}

	feCount, err := readU32(r, "func_entry_count")
	if err != nil {
		return nil, err
	}
	mod.FuncEntries = make([]int, feCount)
	for i := range mod.FuncEntries {
		idx, err := readU32(r, "func_entry")
		if err != nil {
			return nil, err
		}
		mod.FuncEntries[i] = int(idx)
	}

	for i, op := range mod.Ops {
		if op.Code == ir.OpCallLabel && (op.Label < 0 || op.Label >= len(mod.FuncEntries)) {
			return nil, mserrors.UnresolvedLabel("", i)
		}
	}
	return mod, nil
}

// ---- op encode/decode ----

func encodeOp(buf *bytes.Buffer, op ir.Op) error {
	wire, ok := wireByte[op.Code]
	if !ok {
		return mserrors.UnknownOpcode(byte(op.Code), -1)
	}
	buf.WriteByte(wire)
	switch op.Code {
	case ir.OpLConst:
		writeU32(buf, uint32(op.Dest))
		encodeValue(buf, op.Const)
	case ir.OpLLocal:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.LocalIdx))
	case ir.OpSLocal:
		writeU32(buf, uint32(op.A))
		writeU32(buf, uint32(op.LocalIdx))
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte,
		ir.OpAnd, ir.OpOr:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.A))
		writeU32(buf, uint32(op.B))
	case ir.OpNot:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.A))
	case ir.OpInc, ir.OpDec:
		writeU32(buf, uint32(op.Dest))
	case ir.OpLabel:
		writeString(buf, op.Str)
	case ir.OpJump:
		writeU32(buf, uint32(op.Target))
	case ir.OpBrTrue, ir.OpBrFalse:
		writeU32(buf, uint32(op.A))
		writeU32(buf, uint32(op.Target))
	case ir.OpHalt:
	case ir.OpCall:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.A))
		writeRegs(buf, op.Args)
	case ir.OpCallLabel:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.Label))
		writeRegs(buf, op.Args)
	case ir.OpRet:
		writeU32(buf, uint32(op.A))
	case ir.OpArrayNew:
		writeU32(buf, uint32(op.Dest))
		writeRegs(buf, op.Args)
	case ir.OpArrayGet:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.A))
		writeU32(buf, uint32(op.B))
	case ir.OpArraySet:
		writeU32(buf, uint32(op.A))
		writeU32(buf, uint32(op.B))
		writeU32(buf, uint32(op.C))
	case ir.OpObjectNew:
		writeU32(buf, uint32(op.Dest))
		writeRegs(buf, op.Args)
		writeU32(buf, uint32(len(op.Keys)))
		for _, k := range op.Keys {
			writeString(buf, k)
		}
	case ir.OpGetProp:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.A))
		writeKey(buf, op)
	case ir.OpSetProp:
		writeU32(buf, uint32(op.A))
		writeKey(buf, op)
		writeU32(buf, uint32(op.C))
	case ir.OpLoadGlobal:
		writeU32(buf, uint32(op.Dest))
		writeU32(buf, uint32(op.LocalIdx))
	default:
		return mserrors.UnknownOpcode(byte(op.Code), -1)
	}
	return nil
}

func writeKey(buf *bytes.Buffer, op ir.Op) {
	if op.KeyIsReg {
		buf.WriteByte(1)
		writeU32(buf, uint32(op.B))
	} else {
		buf.WriteByte(0)
		writeString(buf, op.Str)
	}
}

func readKey(r *bytes.Reader, op *ir.Op) error {
	b, err := r.ReadByte()
	if err != nil {
		return mserrors.Truncated("key tag")
	}
	if b == 1 {
		op.KeyIsReg = true
		reg, err := readU32(r, "key reg")
		if err != nil {
			return err
		}
		op.B = ir.Reg(reg)
		return nil
	}
	s, err := readString(r)
	if err != nil {
		return err
	}
	op.Str = s
	return nil
}

func decodeOp(r *bytes.Reader, index int) (ir.Op, error) {
	codeByte, err := r.ReadByte()
	if err != nil {
		return ir.Op{}, mserrors.Truncated("opcode")
	}
	code, ok := byteToOp[codeByte]
	if !ok {
		return ir.Op{}, mserrors.UnknownOpcode(codeByte, index)
	}
	op := ir.Op{Code: code}

	readReg := func(what string) (ir.Reg, error) {
		v, err := readU32(r, what)
		return ir.Reg(v), err
	}

	switch code {
	case ir.OpLConst:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.Const, err = decodeValue(r); err != nil {
			return op, err
		}
	case ir.OpLLocal:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		idx, err := readU32(r, "local idx")
		if err != nil {
			return op, err
		}
		op.LocalIdx = int(idx)
	case ir.OpSLocal:
		if op.A, err = readReg("src"); err != nil {
			return op, err
		}
		idx, err := readU32(r, "local idx")
		if err != nil {
			return op, err
		}
		op.LocalIdx = int(idx)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte,
		ir.OpAnd, ir.OpOr:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.A, err = readReg("a"); err != nil {
			return op, err
		}
		if op.B, err = readReg("b"); err != nil {
			return op, err
		}
	case ir.OpNot:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.A, err = readReg("a"); err != nil {
			return op, err
		}
	case ir.OpInc, ir.OpDec:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
	case ir.OpLabel:
		if op.Str, err = readString(r); err != nil {
			return op, err
		}
	case ir.OpJump:
		target, err := readU32(r, "target")
		if err != nil {
			return op, err
		}
		op.Target = int(target)
	case ir.OpBrTrue, ir.OpBrFalse:
		if op.A, err = readReg("cond"); err != nil {
			return op, err
		}
		target, err := readU32(r, "target")
		if err != nil {
			return op, err
		}
		op.Target = int(target)
	case ir.OpHalt:
	case ir.OpCall:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.A, err = readReg("fn"); err != nil {
			return op, err
		}
		if op.Args, err = readRegs(r); err != nil {
			return op, err
		}
	case ir.OpCallLabel:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		label, err := readU32(r, "label")
		if err != nil {
			return op, err
		}
		op.Label = int(label)
		if op.Args, err = readRegs(r); err != nil {
			return op, err
		}
	case ir.OpRet:
		if op.A, err = readReg("src"); err != nil {
			return op, err
		}
	case ir.OpArrayNew:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.Args, err = readRegs(r); err != nil {
			return op, err
		}
	case ir.OpArrayGet:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.A, err = readReg("array"); err != nil {
			return op, err
		}
		if op.B, err = readReg("index"); err != nil {
			return op, err
		}
	case ir.OpArraySet:
		if op.A, err = readReg("array"); err != nil {
			return op, err
		}
		if op.B, err = readReg("index"); err != nil {
			return op, err
		}
		if op.C, err = readReg("src"); err != nil {
			return op, err
		}
	case ir.OpObjectNew:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.Args, err = readRegs(r); err != nil {
			return op, err
		}
		keyCount, err := readU32(r, "key count")
		if err != nil {
			return op, err
		}
		op.Keys = make([]string, keyCount)
		for i := range op.Keys {
			if op.Keys[i], err = readString(r); err != nil {
				return op, err
			}
		}
	case ir.OpGetProp:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		if op.A, err = readReg("obj"); err != nil {
			return op, err
		}
		if err = readKey(r, &op); err != nil {
			return op, err
		}
	case ir.OpSetProp:
		if op.A, err = readReg("obj"); err != nil {
			return op, err
		}
		if err = readKey(r, &op); err != nil {
			return op, err
		}
		if op.C, err = readReg("value"); err != nil {
			return op, err
		}
	case ir.OpLoadGlobal:
		if op.Dest, err = readReg("dest"); err != nil {
			return op, err
		}
		idx, err := readU32(r, "local idx")
		if err != nil {
			return op, err
		}
		op.LocalIdx = int(idx)
	default:
		return op, mserrors.UnknownOpcode(codeByte, index)
	}
	return op, nil
}

// ---- value codec ----

func encodeValue(buf *bytes.Buffer, v ir.Value) {
	switch v.Kind {
	case ir.KindNull:
		buf.WriteByte(0x07)
	case ir.KindInt:
		buf.WriteByte(0x01)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.I))
		buf.Write(b[:])
	case ir.KindFloat:
		buf.WriteByte(0x02)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F))
		buf.Write(b[:])
	case ir.KindBool:
		buf.WriteByte(0x03)
		if v.B {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case ir.KindStr:
		buf.WriteByte(0x04)
		writeString(buf, v.S)
	case ir.KindSymbol:
		buf.WriteByte(0x05)
		writeString(buf, v.S)
	case ir.KindArray:
		buf.WriteByte(0x06)
		writeU32(buf, uint32(len(v.A)))
		for _, e := range v.A {
			encodeValue(buf, e)
		}
	case ir.KindObject:
		buf.WriteByte(0x08)
		if v.O == nil {
			writeU32(buf, 0)
			return
		}
		keys := append([]string(nil), v.O.Keys...)
		slices.Sort(keys)
		writeU32(buf, uint32(len(keys)))
		for _, k := range keys {
			writeString(buf, k)
			val, _ := v.O.Get(k)
			encodeValue(buf, val)
		}
	}
}

func decodeValue(r *bytes.Reader) (ir.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return ir.Value{}, mserrors.Truncated("value tag")
	}
	switch tag {
	case 0x07:
		return ir.Null(), nil
	case 0x01:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return ir.Value{}, mserrors.Truncated("int value")
		}
		return ir.Int(int64(binary.LittleEndian.Uint64(b[:]))), nil
	case 0x02:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return ir.Value{}, mserrors.Truncated("float value")
		}
		return ir.Float(math.Float64frombits(binary.LittleEndian.Uint64(b[:]))), nil
	case 0x03:
		b, err := r.ReadByte()
		if err != nil {
			return ir.Value{}, mserrors.Truncated("bool value")
		}
		return ir.Bool(b != 0), nil
	case 0x04:
		s, err := readString(r)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Str(s), nil
	case 0x05:
		s, err := readString(r)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Symbol(s), nil
	case 0x06:
		n, err := readU32(r, "array length")
		if err != nil {
			return ir.Value{}, err
		}
		elems := make([]ir.Value, n)
		for i := range elems {
			if elems[i], err = decodeValue(r); err != nil {
				return ir.Value{}, err
			}
		}
		return ir.Array(elems), nil
	case 0x08:
		n, err := readU32(r, "object size")
		if err != nil {
			return ir.Value{}, err
		}
		obj := ir.NewObject()
		for i := uint32(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return ir.Value{}, err
			}
			v, err := decodeValue(r)
			if err != nil {
				return ir.Value{}, err
			}
			obj.Set(k, v)
		}
		return ir.ObjectVal(obj), nil
	default:
		return ir.Value{}, mserrors.Truncated("unknown value tag")
	}
}

// ---- primitive helpers ----

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader, what string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, mserrors.Truncated(what)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r, "string length")
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", mserrors.Truncated("string bytes")
	}
	return string(b), nil
}

func writeRegs(buf *bytes.Buffer, regs []ir.Reg) {
	writeU32(buf, uint32(len(regs)))
	for _, r := range regs {
		writeU32(buf, uint32(r))
	}
}

func readRegs(r *bytes.Reader) ([]ir.Reg, error) {
	n, err := readU32(r, "reg count")
	if err != nil {
		return nil, err
	}
	out := make([]ir.Reg, n)
	for i := range out {
		v, err := readU32(r, "reg")
		if err != nil {
			return nil, err
		}
		out[i] = ir.Reg(v)
	}
	return out, nil
}
