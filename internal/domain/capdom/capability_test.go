package capdom

import "testing"

func TestCoversRequiresTypeMatchForTargetScopedCapability(t *testing.T) {
	move := Capability{Type: "entity.control", Params: map[string]any{"target_id": int64(10)}}

	if !move.Covers(10, "entity.control") {
		t.Fatal("expected entity.control capability to cover entity.control on its target")
	}
	if move.Covers(10, "sys.create") {
		t.Fatal("entity.control capability must not cover an unrelated operation type, even on its own target")
	}
	if move.Covers(11, "entity.control") {
		t.Fatal("target_id-scoped capability must not cover a different target")
	}
}

func TestCoversWildcardIgnoresType(t *testing.T) {
	admin := Capability{Type: "sys.sudo", Params: map[string]any{"*": true}}

	if !admin.Covers(99, "entity.control") {
		t.Fatal("wildcard capability should cover any target and operation")
	}
}

func TestCoversNamespaceIgnoresTargetAndOwnType(t *testing.T) {
	authority := Capability{Type: "sys.mint", Params: map[string]any{"namespace": "entity"}}

	if !authority.Covers(0, "entity.control") {
		t.Fatal("namespace-scoped authority should cover a type under its namespace")
	}
	if authority.Covers(0, "sys.create") {
		t.Fatal("namespace-scoped authority must not cover a type outside its namespace")
	}
}
