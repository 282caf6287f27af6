// Package storage is the Repository component of spec.md §4.1: the durable
// store of entities, verbs, and capabilities, with prototype-chain walks and
// atomic mutation primitives. It exposes one narrow interface so callers
// (the interpreter's entity opcodes, the capability store, the scheduler,
// the dispatcher) never depend on whether the backing store is in-memory or
// Postgres — grounded on the teacher's internal/app/storage interface split
// (AccountStore/FunctionStore/... composed into one Stores bundle).
package storage

import (
	"context"

	"github.com/R3E-Network/worldcore/internal/domain/capdom"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
)

// Store is the full Repository contract.
type Store interface {
	// Entities.
	CreateEntity(ctx context.Context, e entity.Entity) (entity.Entity, error)
	UpdateEntity(ctx context.Context, id int64, updates map[string]any) (entity.Entity, error)
	DeleteEntity(ctx context.Context, id int64) error
	GetEntity(ctx context.Context, id int64) (entity.Entity, error)
	SetPrototype(ctx context.Context, id int64, prototype *int64) (entity.Entity, error)
	Move(ctx context.Context, id int64, newContainer int64) (entity.Entity, error)
	ListContents(ctx context.Context, containerID int64) ([]entity.Entity, error)

	// Resolved property read: walks the prototype chain child→parent,
	// returning the first occurrence (spec.md §3 "Resolved properties").
	ResolveProperty(ctx context.Context, id int64, key string) (any, bool, error)

	// Verbs.
	AddVerb(ctx context.Context, v verbdom.Verb) (verbdom.Verb, error)
	UpdateVerb(ctx context.Context, v verbdom.Verb) (verbdom.Verb, error)
	// GetVerb walks the prototype chain starting at id, nearest name wins.
	GetVerb(ctx context.Context, id int64, name string) (verbdom.Verb, int64, error)
	// ListVerbs returns the union across the prototype chain, nearest wins
	// on name collisions.
	ListVerbs(ctx context.Context, id int64) ([]verbdom.Verb, error)

	// Capabilities.
	CreateCapability(ctx context.Context, c capdom.Capability) (capdom.Capability, error)
	GetCapability(ctx context.Context, id string) (capdom.Capability, error)
	ListCapabilities(ctx context.Context, holderID int64) ([]capdom.Capability, error)
	GiveCapability(ctx context.Context, id string, newHolder int64) (capdom.Capability, error)
	RevokeCapability(ctx context.Context, id string) error
	// ListDescendants returns the capabilities whose ParentID is id: direct
	// children only, deeper descendants are not included.
	ListDescendants(ctx context.Context, id string) ([]capdom.Capability, error)
}
