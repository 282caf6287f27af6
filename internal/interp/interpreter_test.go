package interp

import "testing"

func testCtx(gas int64) *Context {
	warnings := []string{}
	return &Context{Gas: gas, Scope: NewScope(), Warnings: &warnings}
}

func TestEvaluateLiteralPassthrough(t *testing.T) {
	reg := NewRegistry()
	ctx := testCtx(10)
	v, err := Evaluate(float64(42), ctx, reg)
	if err != nil {
		t.Fatal(err)
	}
	if v.(float64) != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

func TestEvaluateUnknownOpcode(t *testing.T) {
	reg := NewRegistry()
	ctx := testCtx(10)
	_, err := Evaluate([]any{"nope"}, ctx, reg)
	se, ok := AsScriptError(err)
	if !ok || se.Kind != KindUnknownOpcode {
		t.Fatalf("expected UnknownOpcode, got %v", err)
	}
}

func TestEvaluateArityError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(HandlerRecord{
		Name: "double", MinArity: 1, MaxArity: 1,
		Handler: func(args []any, ctx *Context) (any, error) {
			n, _ := args[0].(float64)
			return n * 2, nil
		},
	})
	ctx := testCtx(10)
	_, err := Evaluate([]any{"double", 1.0, 2.0}, ctx, reg)
	se, ok := AsScriptError(err)
	if !ok || se.Kind != KindArity {
		t.Fatalf("expected ArityError, got %v", err)
	}
}

func TestGasExhaustionOnNestedLiterals(t *testing.T) {
	reg := NewRegistry()
	reg.Register(HandlerRecord{
		Name: "id", MinArity: 1, MaxArity: 1,
		Handler: func(args []any, ctx *Context) (any, error) { return args[0], nil },
	})
	ctx := testCtx(2) // evaluate() call on the outer expr + one arg = 2 steps exactly
	_, err := Evaluate([]any{"id", 1.0}, ctx, reg)
	if err != nil {
		t.Fatalf("expected success within budget, got %v", err)
	}

	ctx2 := testCtx(1)
	_, err = Evaluate([]any{"id", 1.0}, ctx2, reg)
	se, ok := AsScriptError(err)
	if !ok || se.Kind != KindGasExhausted {
		t.Fatalf("expected GasExhausted, got %v", err)
	}
}

func TestScopeLetSetVarShadowing(t *testing.T) {
	root := NewScope()
	root.Let("x", 1.0)
	child := root.Push()
	child.Let("x", 2.0)

	if v, _ := child.Var("x"); v != 2.0 {
		t.Fatalf("expected shadowed x=2, got %v", v)
	}
	if v, _ := root.Var("x"); v != 1.0 {
		t.Fatalf("expected outer x=1 unaffected, got %v", v)
	}

	if ok := child.Set("x", 3.0); !ok {
		t.Fatal("expected set to find innermost x")
	}
	if v, _ := child.Var("x"); v != 3.0 {
		t.Fatalf("expected x=3 after set, got %v", v)
	}
	if v, _ := root.Var("x"); v != 1.0 {
		t.Fatalf("expected outer x still 1, got %v", v)
	}

	if ok := child.Set("never_bound", 1.0); ok {
		t.Fatal("expected set on unbound name to fail")
	}
}

func TestScopeSnapshotCapturesByValue(t *testing.T) {
	root := NewScope()
	root.Let("x", 10.0)
	snap := root.Snapshot()
	root.Let("x", 99.0) // rebind after snapshot

	if snap["x"] != 10.0 {
		t.Fatalf("expected snapshot to keep x=10, got %v", snap["x"])
	}
}
