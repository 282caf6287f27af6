package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/R3E-Network/worldcore/internal/domain/capdom"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
)

func TestMoveIntoOwnAncestorFailsCyclicContainment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	box1, err := m.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatal(err)
	}
	box2, err := m.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Move(ctx, box2.ID, box1.ID); err != nil {
		t.Fatalf("move box2 into box1: %v", err)
	}

	before, err := m.GetEntity(ctx, box1.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Move(ctx, box1.ID, box2.ID)
	if !errors.Is(err, ErrCyclicContainment) {
		t.Fatalf("expected ErrCyclicContainment, got %v", err)
	}

	after, err := m.GetEntity(ctx, box1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if (before.Location == nil) != (after.Location == nil) {
		t.Fatalf("location pointer-ness changed")
	}
	if before.Location != nil && *before.Location != *after.Location {
		t.Fatalf("expected unchanged location, before=%v after=%v", before.Location, after.Location)
	}
}

func TestGetVerbPrototypeOverride(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	proto, err := m.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatal(err)
	}
	child, err := m.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatal(err)
	}
	protoID := proto.ID
	if _, err := m.SetPrototype(ctx, child.ID, &protoID); err != nil {
		t.Fatal(err)
	}

	codeA := []any{"seq", "a"}
	codeB := []any{"seq", "b"}
	if _, err := m.AddVerb(ctx, verbdom.Verb{EntityID: proto.ID, Name: "v", Code: codeA}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddVerb(ctx, verbdom.Verb{EntityID: child.ID, Name: "v", Code: codeB}); err != nil {
		t.Fatal(err)
	}

	got, foundOn, err := m.GetVerb(ctx, child.ID, "v")
	if err != nil {
		t.Fatal(err)
	}
	if foundOn != child.ID {
		t.Fatalf("expected verb found on child %d, got %d", child.ID, foundOn)
	}
	list, ok := got.Code.([]any)
	if !ok || len(list) != 2 || list[1] != "b" {
		t.Fatalf("expected child override code, got %#v", got.Code)
	}
}

func TestDeleteEntityCascadesVerbsAndCapabilities(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	owner, err := m.CreateEntity(ctx, entity.Entity{Kind: entity.KindActor})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddVerb(ctx, verbdom.Verb{EntityID: owner.ID, Name: "greet"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateCapability(ctx, capdom.Capability{HolderID: owner.ID, Type: "entity.control", Params: map[string]any{"target_id": owner.ID}}); err != nil {
		t.Fatal(err)
	}

	if err := m.DeleteEntity(ctx, owner.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := m.GetEntity(ctx, owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected entity gone, got %v", err)
	}
	verbs, err := m.ListVerbs(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(verbs) != 0 {
		t.Fatalf("expected no verbs after delete, got %d", len(verbs))
	}
	caps, err := m.ListCapabilities(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(caps) != 0 {
		t.Fatalf("expected no capabilities after delete, got %d", len(caps))
	}
}
