package vm

import (
	"testing"

	"mainstage/internal/ir"
	"mainstage/internal/lower"
	"mainstage/internal/optimize"
	"mainstage/internal/parser"
)

func compile(t *testing.T, src string) *ir.Module {
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

func TestRunCallsHostFunction(t *testing.T) {
	mod := compile(t, `workspace w { say("hello"); }`)
	var got []ir.Value
	host := map[string]HostFunc{
		"say": func(vm *VM, args []ir.Value) (ir.Value, error) {
			got = append(got, args...)
			return ir.Null(), nil
		},
	}
	v := New(mod, host, nil, 0)
	if _, err := v.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || got[0].Kind != ir.KindStr || got[0].S != "hello" {
		t.Fatalf("expected say to receive \"hello\", got %v", got)
	}
}

func TestRunArithmeticAndComparison(t *testing.T) {
	mod := compile(t, `
		workspace w {
			i = 0;
			sum = 0;
			while i < 5 {
				sum = sum + i;
				i = i + 1;
			}
			say(sum);
		}
	`)
	var got ir.Value
	host := map[string]HostFunc{
		"say": func(vm *VM, args []ir.Value) (ir.Value, error) {
			got = args[0]
			return ir.Null(), nil
		},
	}
	v := New(mod, host, nil, 10000)
	if _, err := v.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Kind != ir.KindInt || got.I != 10 {
		t.Fatalf("expected sum 0+1+2+3+4=10, got %v", got)
	}
}

func TestRunStageCall(t *testing.T) {
	mod := compile(t, `
		stage double(n) {
			return n * 2;
		}
		workspace w {
			say(double(21));
		}
	`)
	var got ir.Value
	host := map[string]HostFunc{
		"say": func(vm *VM, args []ir.Value) (ir.Value, error) {
			got = args[0]
			return ir.Null(), nil
		},
	}
	v := New(mod, host, nil, 0)
	if _, err := v.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Kind != ir.KindInt || got.I != 42 {
		t.Fatalf("expected double(21) == 42, got %v", got)
	}
}

func TestRunArrayAndObjectOps(t *testing.T) {
	mod := compile(t, `
		workspace w {
			arr = [1, 2, 3];
			arr[1] = 99;
			obj = {a: 1};
			obj.b = 2;
			say(arr[1]);
			say(obj.b);
			say(arr.length);
		}
	`)
	var got []ir.Value
	host := map[string]HostFunc{
		"say": func(vm *VM, args []ir.Value) (ir.Value, error) {
			got = append(got, args[0])
			return ir.Null(), nil
		},
	}
	v := New(mod, host, nil, 0)
	if _, err := v.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 say() calls, got %d", len(got))
	}
	if got[0].Kind != ir.KindInt || got[0].I != 99 {
		t.Fatalf("expected arr[1] == 99, got %v", got[0])
	}
	if got[1].Kind != ir.KindInt || got[1].I != 2 {
		t.Fatalf("expected obj.b == 2, got %v", got[1])
	}
	if got[2].Kind != ir.KindInt || got[2].I != 3 {
		t.Fatalf("expected arr.length == 3, got %v", got[2])
	}
}

func TestRunUnknownSymbolErrors(t *testing.T) {
	mod := compile(t, `workspace w { undefined_host_fn("x"); }`)
	v := New(mod, nil, nil, 0)
	if _, err := v.Run(); err == nil {
		t.Fatal("expected an unknown-symbol error")
	}
}

func TestRunDivideByZeroErrors(t *testing.T) {
	mod := ir.NewModule()
	zero := mod.Emit(ir.Op{Code: ir.OpLConst, Dest: 0, Const: ir.Int(0)})
	_ = zero
	mod.Emit(ir.Op{Code: ir.OpLConst, Dest: 1, Const: ir.Int(10)})
	mod.Emit(ir.Op{Code: ir.OpDiv, Dest: 2, A: 1, B: 0})
	mod.Emit(ir.Op{Code: ir.OpHalt})
	v := New(mod, nil, nil, 0)
	if _, err := v.Run(); err == nil {
		t.Fatal("expected division by zero to error")
	}
}

func TestRunStepLimitExceeded(t *testing.T) {
	mod := compile(t, `
		workspace w {
			i = 0;
			while i < 1000000 {
				i = i + 1;
			}
		}
	`)
	v := New(mod, nil, nil, 50)
	if _, err := v.Run(); err == nil {
		t.Fatal("expected the step limit to abort execution")
	}
}

func TestRunClonesArgsAcrossCall(t *testing.T) {
	mod := compile(t, `
		stage mutate(o) {
			o.x = 999;
			return o;
		}
		workspace w {
			obj = {x: 1};
			mutate(obj);
			say(obj.x);
		}
	`)
	var got ir.Value
	host := map[string]HostFunc{
		"say": func(vm *VM, args []ir.Value) (ir.Value, error) {
			got = args[0]
			return ir.Null(), nil
		},
	}
	v := New(mod, host, nil, 0)
	if _, err := v.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Kind != ir.KindInt || got.I != 1 {
		t.Fatalf("expected the caller's object to be unaffected by the callee's mutation, got %v", got)
	}
}

func TestRunReturnsLastRetValue(t *testing.T) {
	mod := compile(t, `
		stage answer() {
			return 42;
		}
		workspace w {
			answer();
		}
	`)
	v := New(mod, nil, nil, 0)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Kind != ir.KindInt || result.I != 42 {
		t.Fatalf("expected Run to return the last Ret's value 42, got %v", result)
	}
	if got := v.Result(); got.Kind != ir.KindInt || got.I != 42 {
		t.Fatalf("expected Result() to match Run's return value, got %v", got)
	}
}

func TestRunWithNoRetReturnsNull(t *testing.T) {
	mod := compile(t, `workspace w { x = 1; }`)
	v := New(mod, nil, nil, 0)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Kind != ir.KindNull {
		t.Fatalf("expected Run with no Ret to return Null, got %v", result)
	}
}

type stubPlugin struct {
	calls int
}

func (s *stubPlugin) Call(name string, args []ir.Value) (ir.Value, bool, error) {
	if name != "native_square" {
		return ir.Value{}, false, nil
	}
	s.calls++
	n := args[0]
	return ir.Int(n.I * n.I), true, nil
}

func TestRunDispatchesToPluginWhenHostMisses(t *testing.T) {
	mod := compile(t, `workspace w { say(native_square(7)); }`)
	var got ir.Value
	host := map[string]HostFunc{
		"say": func(vm *VM, args []ir.Value) (ir.Value, error) {
			got = args[0]
			return ir.Null(), nil
		},
	}
	plug := &stubPlugin{}
	v := New(mod, host, plug, 0)
	if _, err := v.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if plug.calls != 1 {
		t.Fatalf("expected the plugin to be invoked once, got %d", plug.calls)
	}
	if got.Kind != ir.KindInt || got.I != 49 {
		t.Fatalf("expected native_square(7) == 49, got %v", got)
	}
}
