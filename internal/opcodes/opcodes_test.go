package opcodes

import (
	"context"
	"testing"

	"github.com/R3E-Network/worldcore/internal/capability"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

func newTestEnv() (Env, storage.Store, *capability.Store) {
	repo := storage.NewMemory()
	caps := capability.New(repo, nil)
	return Env{Repo: repo, Caps: caps}, repo, caps
}

func newTestRegistry(env Env) *interp.Registry {
	reg := interp.NewRegistry()
	Register(reg, env)
	return reg
}

func runScript(t *testing.T, reg *interp.Registry, script any, gas int64, caller, this int64) (any, error) {
	t.Helper()
	warnings := []string{}
	ctx := &interp.Context{
		Go:       context.Background(),
		Caller:   caller,
		This:     this,
		Gas:      gas,
		Scope:    interp.NewScope(),
		Warnings: &warnings,
	}
	return interp.InvokeVerb(script, ctx, reg)
}

// S1 — Arithmetic chain.
func TestScenarioArithmeticChain(t *testing.T) {
	env, _, _ := newTestEnv()
	reg := newTestRegistry(env)
	script := []any{"+", 1.0, 2.0, 3.0, []any{"*", 4.0, 5.0}}
	v, err := runScript(t, reg, script, 100, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.(float64) != 26 {
		t.Fatalf("expected 26, got %v", v)
	}
}

// S2 — Closure capture.
func TestScenarioClosureCapture(t *testing.T) {
	env, _, _ := newTestEnv()
	reg := newTestRegistry(env)
	script := []any{"seq",
		[]any{"let", "x", 10.0},
		[]any{"let", "addX", []any{"lambda", []any{"y"}, []any{"+", []any{"var", "x"}, []any{"var", "y"}}}},
		[]any{"apply", []any{"var", "addX"}, 5.0},
	}
	v, err := runScript(t, reg, script, 100, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.(float64) != 15 {
		t.Fatalf("expected 15, got %v", v)
	}
}

// S3 — Capability denial: caller 2 holds no capability over entity 10,
// owned by entity 1; set_entity must fail PermissionDenied and leave the
// entity unchanged.
func TestScenarioCapabilityDenial(t *testing.T) {
	env, repo, _ := newTestEnv()
	reg := newTestRegistry(env)
	ctx := context.Background()

	owner := int64(1)
	target, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem, Owner: &owner, Properties: map[string]any{"name": "sword"}})
	if err != nil {
		t.Fatal(err)
	}

	runDenial(t, reg, repo, target.ID)
}

func runDenial(t *testing.T, reg *interp.Registry, repo storage.Store, targetID int64) {
	t.Helper()
	// get_capability(type, filter?) looks up the caller's own tokens and
	// returns null since caller 2 holds nothing of this type — set_entity
	// then fails TypeError/PermissionDenied on the nil capability argument,
	// which is the correct denial outcome: no ambient capability means no
	// authorized mutation path exists.
	script := []any{"set_entity",
		[]any{"get_capability", "entity.control", map[string]any{"target_id": float64(targetID)}},
		[]any{"entity", &value.EntityRef{ID: targetID}},
		map[string]any{"name": "hacked"},
	}
	_, err := runScript(t, reg, script, 100, 2, 2)
	if err == nil {
		t.Fatal("expected an error for unauthorized set_entity")
	}
	se, ok := interp.AsScriptError(err)
	if !ok || (se.Kind != interp.KindPermissionDenied && se.Kind != interp.KindType) {
		t.Fatalf("expected PermissionDenied or TypeError, got %v", err)
	}

	e, err := repo.GetEntity(context.Background(), targetID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Properties["name"] != "sword" {
		t.Fatalf("expected entity name unchanged, got %v", e.Properties["name"])
	}
}

// S4 — Delegation: owner 1 holds entity.control{target_id:10}; delegates an
// unrestricted-copy capability to entity 2 via give_capability, after which
// entity 2 can successfully set_entity on entity 10.
func TestScenarioDelegation(t *testing.T) {
	env, repo, caps := newTestEnv()
	reg := newTestRegistry(env)
	ctx := context.Background()

	owner := int64(1)
	target, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem, Owner: &owner, Properties: map[string]any{"name": "sword"}})
	if err != nil {
		t.Fatal(err)
	}
	parent, err := caps.Create(ctx, 1, "entity.control", map[string]any{"target_id": float64(target.ID)})
	if err != nil {
		t.Fatal(err)
	}

	script := []any{"seq",
		[]any{"let", "c", []any{"get_capability", "entity.control", map[string]any{"target_id": float64(target.ID)}}},
		[]any{"let", "d", []any{"delegate", []any{"var", "c"}, map[string]any{}}},
		[]any{"give_capability", []any{"var", "d"}, &value.EntityRef{ID: 2}},
	}
	_, err = runScript(t, reg, script, 100, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Entity 2 now presents the delegated+given capability directly (in a
	// real session, acting as caller 2, get_capability would resolve it
	// automatically since it always scopes the lookup to ctx.Caller).
	delegated, ok, err := caps.Lookup(ctx, 2, "entity.control", map[string]any{})
	if err != nil || !ok {
		t.Fatalf("expected entity 2 to hold a delegated capability, ok=%v err=%v", ok, err)
	}
	if delegated.ParentID == nil || *delegated.ParentID != parent.ID {
		t.Fatalf("expected delegated capability's parent to be %s, got %v", parent.ID, delegated.ParentID)
	}

	applyScript := []any{"set_entity",
		&value.CapabilityRef{ID: delegated.ID, Type: delegated.Type, Holder: 2},
		[]any{"entity", &value.EntityRef{ID: target.ID}},
		map[string]any{"name": "given-away"},
	}
	_, err = runScript(t, reg, applyScript, 100, 2, 2)
	if err != nil {
		t.Fatalf("expected entity 2 to successfully mutate entity %d, got %v", target.ID, err)
	}
	e, _ := repo.GetEntity(ctx, target.ID)
	if e.Properties["name"] != "given-away" {
		t.Fatalf("expected mutation to apply, got %v", e.Properties["name"])
	}
}

// S5 — Gas exhaustion.
func TestScenarioGasExhaustion(t *testing.T) {
	env, _, _ := newTestEnv()
	reg := newTestRegistry(env)
	script := []any{"while", true, []any{"seq"}}
	_, err := runScript(t, reg, script, 100, 1, 1)
	se, ok := interp.AsScriptError(err)
	if !ok || se.Kind != interp.KindGasExhausted {
		t.Fatalf("expected GasExhausted, got %v", err)
	}
}

// S6 — Cyclic containment: box2 is inside box1; moving box1 into box2 must
// fail and leave both locations unchanged.
func TestScenarioCyclicContainment(t *testing.T) {
	repo := storage.NewMemory()
	ctx := context.Background()

	box1, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatal(err)
	}
	box2, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Move(ctx, box2.ID, box1.ID); err != nil {
		t.Fatal(err)
	}

	_, err = repo.Move(ctx, box1.ID, box2.ID)
	if err == nil {
		t.Fatal("expected cyclic containment error")
	}

	b1, _ := repo.GetEntity(ctx, box1.ID)
	b2, _ := repo.GetEntity(ctx, box2.ID)
	if b1.Location != nil {
		t.Fatalf("expected box1 location unchanged (nil), got %v", *b1.Location)
	}
	if b2.Location == nil || *b2.Location != box1.ID {
		t.Fatalf("expected box2 still inside box1, got %v", b2.Location)
	}
}

func TestListHigherOrderOpcodes(t *testing.T) {
	env, _, _ := newTestEnv()
	reg := newTestRegistry(env)
	script := []any{"list.map",
		[]any{"list.new", 1.0, 2.0, 3.0},
		[]any{"lambda", []any{"x"}, []any{"*", []any{"var", "x"}, 2.0}},
	}
	v, err := runScript(t, reg, script, 100, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	out, ok := value.AsList(v)
	if !ok || len(out) != 3 || out[0] != 2.0 || out[2] != 6.0 {
		t.Fatalf("unexpected result: %v", v)
	}
}

func TestObjectKeyProtection(t *testing.T) {
	env, _, _ := newTestEnv()
	reg := newTestRegistry(env)
	script := []any{"obj.set", map[string]any{}, "__proto__", 1.0}
	_, err := runScript(t, reg, script, 100, 1, 1)
	se, ok := interp.AsScriptError(err)
	if !ok || se.Kind != interp.KindPermissionDenied {
		t.Fatalf("expected PermissionDenied for __proto__ write, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	env, _, _ := newTestEnv()
	reg := newTestRegistry(env)
	script := []any{"json.parse", []any{"json.stringify", []any{"list.new", 1.0, "a", true, nil}}}
	v, err := runScript(t, reg, script, 100, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	out, ok := value.AsList(v)
	if !ok || len(out) != 4 || out[0] != 1.0 || out[1] != "a" || out[2] != true || out[3] != nil {
		t.Fatalf("unexpected round-trip result: %#v", v)
	}
}
