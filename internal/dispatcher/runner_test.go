package dispatcher

import (
	"context"
	"testing"

	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

func testRegistry() *interp.Registry {
	reg := interp.NewRegistry()
	reg.Register(interp.HandlerRecord{
		Name: "+", MinArity: 2, MaxArity: -1,
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			sum := 0.0
			for _, a := range args {
				sum += a.(float64)
			}
			return sum, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "call", MinArity: 2, MaxArity: -1,
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target := int64(args[0].(float64))
			verbName := args[1].(string)
			return ctx.Dispatch.CallVerb(ctx, target, verbName, args[2:])
		},
	})
	return reg
}

func TestRunnerCallVerbInheritsCaller(t *testing.T) {
	repo := storage.NewMemory()
	reg := testRegistry()
	runner := NewRunner(repo, reg)
	ctx := context.Background()

	callee, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if _, err := repo.AddVerb(ctx, verbdom.Verb{EntityID: callee.ID, Name: "sum", Code: []any{"+", 1.0, 2.0}}); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	v, err := runner.CallVerb(&interp.Context{Go: ctx, Registry: reg, Caller: 1, This: 1, Scope: interp.NewScope(), Gas: 100}, callee.ID, "sum", nil)
	if err != nil {
		t.Fatalf("call verb: %v", err)
	}
	if v.(float64) != 3 {
		t.Fatalf("expected 3, got %v", v)
	}
}

func TestRunnerCallVerbNotFound(t *testing.T) {
	repo := storage.NewMemory()
	reg := testRegistry()
	runner := NewRunner(repo, reg)
	ctx := context.Background()
	e, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	_, err = runner.CallVerb(&interp.Context{Go: ctx, Registry: reg, Scope: interp.NewScope(), Gas: 100}, e.ID, "missing", nil)
	se, ok := interp.AsScriptError(err)
	if !ok || se.Kind != interp.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRunnerInvokeFreshBuildsTopLevelContext(t *testing.T) {
	repo := storage.NewMemory()
	reg := testRegistry()
	runner := NewRunner(repo, reg)
	ctx := context.Background()

	e, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindActor})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if _, err := repo.AddVerb(ctx, verbdom.Verb{EntityID: e.ID, Name: "heartbeat", Code: []any{"+", 1.0, 1.0}}); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	v, warnings, err := runner.InvokeFresh(ctx, e.ID, e.ID, "heartbeat", nil, interp.DefaultGas, nil)
	if err != nil {
		t.Fatalf("invoke fresh: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if v.(float64) != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
}
