package msbc

import (
	"bytes"
	"testing"

	"mainstage/internal/ir"
	"mainstage/internal/lower"
	"mainstage/internal/optimize"
	"mainstage/internal/parser"
)

func buildModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	prog, err := parser.ParseSource(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mod, err := lower.Lower(prog)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	mod, err = optimize.Run(mod)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	return mod
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	mod := buildModule(t, `
		stage add(a, b) {
			return a + b;
		}
		workspace w {
			x = add(1, 2);
			say(x);
		}
	`)
	data, err := Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Ops) != len(mod.Ops) {
		t.Fatalf("op count mismatch: got %d want %d", len(got.Ops), len(mod.Ops))
	}
	for i := range mod.Ops {
		if got.Ops[i].Code != mod.Ops[i].Code {
			t.Fatalf("op %d code mismatch: got %v want %v", i, got.Ops[i].Code, mod.Ops[i].Code)
		}
	}
	if len(got.FuncEntries) != len(mod.FuncEntries) {
		t.Fatalf("func entry count mismatch")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	mod := buildModule(t, `workspace w { obj = {b: 2, a: 1, c: 3}; say(obj); }`)
	a, err := Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected encoding the same module twice to produce identical bytes")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := []byte("XXXX\x01\x00\x00\x00\x00\x00\x00\x00")
	if _, err := Load(data); err == nil {
		t.Fatal("expected bad magic to be rejected")
	}
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	mod := buildModule(t, `workspace w { say("hi"); }`)
	data, err := Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Load(data[:len(data)-4]); err == nil {
		t.Fatal("expected truncated stream to be rejected")
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	mod := buildModule(t, `workspace w { say("hi"); }`)
	data, err := Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bad := append([]byte(nil), data...)
	bad[4] = 99
	if _, err := Load(bad); err == nil {
		t.Fatal("expected unsupported version to be rejected")
	}
}

func TestOpcodeWireBytesAreBitExact(t *testing.T) {
	cases := map[ir.OpCode]byte{
		ir.OpLConst:     0x01,
		ir.OpLLocal:     0x02,
		ir.OpSLocal:     0x03,
		ir.OpAdd:        0x10,
		ir.OpSub:        0x11,
		ir.OpMul:        0x12,
		ir.OpDiv:        0x13,
		ir.OpMod:        0x14,
		ir.OpEq:         0x20,
		ir.OpNeq:        0x21,
		ir.OpLt:         0x22,
		ir.OpLte:        0x23,
		ir.OpGt:         0x24,
		ir.OpGte:        0x25,
		ir.OpAnd:        0x26,
		ir.OpOr:         0x27,
		ir.OpNot:        0x28,
		ir.OpInc:        0x30,
		ir.OpDec:        0x31,
		ir.OpLabel:      0x40,
		ir.OpJump:       0x41,
		ir.OpBrTrue:     0x42,
		ir.OpBrFalse:    0x43,
		ir.OpHalt:       0x50,
		ir.OpCall:       0x70,
		ir.OpCallLabel:  0x71,
		ir.OpRet:        0x80,
		ir.OpArrayNew:   0x90,
		ir.OpArrayGet:   0x91,
		ir.OpArraySet:   0x92,
		ir.OpGetProp:    0x93,
		ir.OpSetProp:    0x94,
		ir.OpLoadGlobal: 0x95,
	}
	for code, want := range cases {
		if got := wireByte[code]; got != want {
			t.Errorf("opcode %v: wire byte got 0x%02x want 0x%02x", code, got, want)
		}
	}
}

func TestValueTagBytesMatchWireFormat(t *testing.T) {
	var buf bytes.Buffer
	encodeValue(&buf, ir.Null())
	if buf.Bytes()[0] != 0x07 {
		t.Fatalf("Null tag: got 0x%02x want 0x07", buf.Bytes()[0])
	}
	buf.Reset()
	encodeValue(&buf, ir.ObjectVal(ir.NewObject()))
	if buf.Bytes()[0] != 0x08 {
		t.Fatalf("Object tag: got 0x%02x want 0x08", buf.Bytes()[0])
	}
	buf.Reset()
	encodeValue(&buf, ir.Int(1))
	if buf.Bytes()[0] != 0x01 {
		t.Fatalf("Int tag: got 0x%02x want 0x01", buf.Bytes()[0])
	}
	buf.Reset()
	encodeValue(&buf, ir.Array(nil))
	if buf.Bytes()[0] != 0x06 {
		t.Fatalf("Array tag: got 0x%02x want 0x06", buf.Bytes()[0])
	}
}

func TestValueRoundTripNestedContainer(t *testing.T) {
	v := ir.ObjectVal(func() *ir.Object {
		o := ir.NewObject()
		o.Set("list", ir.Array([]ir.Value{ir.Int(1), ir.Str("two"), ir.Bool(true)}))
		o.Set("nested", ir.ObjectVal(ir.NewObject()))
		return o
	}())
	var buf bytes.Buffer
	encodeValue(&buf, v)
	got, err := decodeValue(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if !got.Equal(v) {
		t.Fatalf("round-tripped value not equal: got %v want %v", got, v)
	}
}
