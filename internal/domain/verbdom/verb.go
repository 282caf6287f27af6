// Package verbdom defines the Verb entity — a named, scriptable action
// attached to an entity — grounded on the same plain-struct convention as
// internal/domain/entity.
package verbdom

import "time"

// Scope controls who may invoke a verb directly through the dispatcher.
type Scope string

const (
	// ScopePublic allows any caller to invoke the verb.
	ScopePublic Scope = "public"
	// ScopeOwner restricts invocation to the verb's owning entity.
	ScopeOwner Scope = "owner"
	// ScopeExplicit restricts invocation to entities named in Allowed.
	ScopeExplicit Scope = "explicit"
)

// Permissions is a verb's call-scope descriptor (spec.md §3).
type Permissions struct {
	Scope   Scope   `json:"scope"`
	Allowed []int64 `json:"allowed,omitempty"`
}

// Allows reports whether caller may invoke a verb owned by ownerID under p.
func (p Permissions) Allows(caller, ownerID int64) bool {
	switch p.Scope {
	case ScopeOwner:
		return caller == ownerID
	case ScopeExplicit:
		for _, id := range p.Allowed {
			if id == caller {
				return true
			}
		}
		return false
	case ScopePublic, "":
		return true
	default:
		return false
	}
}

// Verb is a named script attached to an entity.
type Verb struct {
	ID          int64       `json:"id"`
	EntityID    int64       `json:"entity_id"`
	Name        string      `json:"name"`
	Code        any         `json:"code"`
	Permissions Permissions `json:"permissions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
