package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/worldcore/internal/domain/capdom"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
)

// Memory is a thread-safe in-memory Store implementation. Grounded on the
// teacher's internal/app/storage.Memory: tests and local development use
// this directly; production wires internal/storage/postgres instead.
type Memory struct {
	mu sync.RWMutex

	nextEntityID int64
	nextVerbID   int64

	entities map[int64]entity.Entity
	// verbs is keyed by entity id, then verb name.
	verbs map[int64]map[string]verbdom.Verb
	caps  map[string]capdom.Capability
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextEntityID: 1,
		nextVerbID:   1,
		entities:     make(map[int64]entity.Entity),
		verbs:        make(map[int64]map[string]verbdom.Verb),
		caps:         make(map[string]capdom.Capability),
	}
}

var _ Store = (*Memory)(nil)

// Entities ---------------------------------------------------------------

func (m *Memory) CreateEntity(_ context.Context, e entity.Entity) (entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextEntityID
	m.nextEntityID++
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	m.entities[e.ID] = e.Clone()
	return e.Clone(), nil
}

func (m *Memory) GetEntity(_ context.Context, id int64) (entity.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	return e.Clone(), nil
}

func (m *Memory) UpdateEntity(_ context.Context, id int64, updates map[string]any) (entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	} else {
		e.Properties = entity.Entity{Properties: e.Properties}.Clone().Properties
	}
	for k, v := range updates {
		switch k {
		case "name", "kind":
			// Convention-level keys also land in Properties unless the
			// world model wants a typed column; kept generic here.
			e.Properties[k] = v
		default:
			e.Properties[k] = v
		}
	}
	e.UpdatedAt = time.Now().UTC()
	m.entities[id] = e
	return e.Clone(), nil
}

func (m *Memory) SetPrototype(_ context.Context, id int64, prototype *int64) (entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	if prototype != nil {
		if _, ok := m.entities[*prototype]; !ok {
			return entity.Entity{}, fmt.Errorf("prototype %d: %w", *prototype, ErrNotFound)
		}
		if m.protoCyclicLocked(id, *prototype) {
			return entity.Entity{}, fmt.Errorf("prototype %d: %w", *prototype, ErrCyclicContainment)
		}
	}
	e.Prototype = prototype
	e.UpdatedAt = time.Now().UTC()
	m.entities[id] = e
	return e.Clone(), nil
}

// protoCyclicLocked reports whether setting child's prototype to candidate
// would create a cycle in the prototype chain. Caller holds m.mu.
func (m *Memory) protoCyclicLocked(child, candidate int64) bool {
	visited := map[int64]bool{child: true}
	cur := candidate
	for {
		if visited[cur] {
			return true
		}
		visited[cur] = true
		e, ok := m.entities[cur]
		if !ok || e.Prototype == nil {
			return false
		}
		cur = *e.Prototype
	}
}

func (m *Memory) DeleteEntity(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	delete(m.entities, id)
	delete(m.verbs, id)
	// Sweep capabilities held by, or scoped to, the deleted entity.
	for capID, c := range m.caps {
		if c.HolderID == id {
			delete(m.caps, capID)
			continue
		}
		if tid, ok := c.Params["target_id"]; ok {
			if n, ok := asCapTarget(tid); ok && n == id {
				delete(m.caps, capID)
			}
		}
	}
	return nil
}

func asCapTarget(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Move implements spec.md §4.1 move semantics: walk the ancestor chain of
// newContainer looking for thing; fail CyclicContainment if found.
func (m *Memory) Move(_ context.Context, id int64, newContainer int64) (entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	if _, ok := m.entities[newContainer]; !ok {
		return entity.Entity{}, fmt.Errorf("container %d: %w", newContainer, ErrNotFound)
	}

	visited := map[int64]bool{}
	cur := newContainer
	for {
		if cur == id {
			return entity.Entity{}, fmt.Errorf("move %d into %d: %w", id, newContainer, ErrCyclicContainment)
		}
		if visited[cur] {
			break
		}
		visited[cur] = true
		ce, ok := m.entities[cur]
		if !ok || ce.Location == nil {
			break
		}
		cur = *ce.Location
	}

	nc := newContainer
	e.Location = &nc
	e.UpdatedAt = time.Now().UTC()
	m.entities[id] = e
	return e.Clone(), nil
}

func (m *Memory) ListContents(_ context.Context, containerID int64) ([]entity.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Entity
	for _, e := range m.entities {
		if e.Location != nil && *e.Location == containerID {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ResolveProperty walks the prototype chain child→parent and returns the
// first occurrence of key (spec.md §3). A cycle (pathological data) is
// reported as ErrNotFound rather than spinning (Design Notes).
func (m *Memory) ResolveProperty(_ context.Context, id int64, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := map[int64]bool{}
	cur := id
	for {
		if visited[cur] {
			return nil, false, fmt.Errorf("entity %d: %w", id, ErrNotFound)
		}
		visited[cur] = true
		e, ok := m.entities[cur]
		if !ok {
			return nil, false, fmt.Errorf("entity %d: %w", cur, ErrNotFound)
		}
		if v, ok := e.Properties[key]; ok {
			return v, true, nil
		}
		if e.Prototype == nil {
			return nil, false, nil
		}
		cur = *e.Prototype
	}
}

// Verbs --------------------------------------------------------------------

func (m *Memory) AddVerb(_ context.Context, v verbdom.Verb) (verbdom.Verb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[v.EntityID]; !ok {
		return verbdom.Verb{}, fmt.Errorf("entity %d: %w", v.EntityID, ErrNotFound)
	}
	byName := m.verbs[v.EntityID]
	if byName == nil {
		byName = map[string]verbdom.Verb{}
		m.verbs[v.EntityID] = byName
	}
	if _, exists := byName[v.Name]; exists {
		return verbdom.Verb{}, fmt.Errorf("verb %s on %d: %w", v.Name, v.EntityID, ErrDuplicateVerb)
	}
	v.ID = m.nextVerbID
	m.nextVerbID++
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	byName[v.Name] = v
	return v, nil
}

func (m *Memory) UpdateVerb(_ context.Context, v verbdom.Verb) (verbdom.Verb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName, ok := m.verbs[v.EntityID]
	if !ok {
		return verbdom.Verb{}, fmt.Errorf("verb %s on %d: %w", v.Name, v.EntityID, ErrNotFound)
	}
	existing, ok := byName[v.Name]
	if !ok {
		return verbdom.Verb{}, fmt.Errorf("verb %s on %d: %w", v.Name, v.EntityID, ErrNotFound)
	}
	v.ID = existing.ID
	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = time.Now().UTC()
	byName[v.Name] = v
	return v, nil
}

// GetVerb implements the prototype walk from spec.md §4.1: start at id; if
// a verb named `name` exists there, return it; else step to prototype;
// stop at null or on cycle. Returns the id of the entity the verb was
// actually found on, so callers can set ctx.this correctly.
func (m *Memory) GetVerb(_ context.Context, id int64, name string) (verbdom.Verb, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := map[int64]bool{}
	cur := id
	for {
		if visited[cur] {
			return verbdom.Verb{}, 0, fmt.Errorf("verb %s on %d: %w", name, id, ErrNotFound)
		}
		visited[cur] = true
		e, ok := m.entities[cur]
		if !ok {
			return verbdom.Verb{}, 0, fmt.Errorf("entity %d: %w", cur, ErrNotFound)
		}
		if byName, ok := m.verbs[cur]; ok {
			if v, ok := byName[name]; ok {
				return v, cur, nil
			}
		}
		if e.Prototype == nil {
			return verbdom.Verb{}, 0, fmt.Errorf("verb %s on %d: %w", name, id, ErrNotFound)
		}
		cur = *e.Prototype
	}
}

// ListVerbs returns the union across the prototype chain, nearest name
// wins on collisions.
func (m *Memory) ListVerbs(_ context.Context, id int64) ([]verbdom.Verb, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]verbdom.Verb{}
	visited := map[int64]bool{}
	cur := id
	for {
		if visited[cur] {
			break
		}
		visited[cur] = true
		e, ok := m.entities[cur]
		if !ok {
			break
		}
		for name, v := range m.verbs[cur] {
			if _, already := seen[name]; !already {
				seen[name] = v
			}
		}
		if e.Prototype == nil {
			break
		}
		cur = *e.Prototype
	}
	out := make([]verbdom.Verb, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Capabilities ---------------------------------------------------------------

func (m *Memory) CreateCapability(_ context.Context, c capdom.Capability) (capdom.Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	m.caps[c.ID] = c
	return c, nil
}

func (m *Memory) GetCapability(_ context.Context, id string) (capdom.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caps[id]
	if !ok {
		return capdom.Capability{}, fmt.Errorf("capability %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *Memory) ListCapabilities(_ context.Context, holderID int64) ([]capdom.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []capdom.Capability
	for _, c := range m.caps {
		if c.HolderID == holderID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GiveCapability(_ context.Context, id string, newHolder int64) (capdom.Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caps[id]
	if !ok {
		return capdom.Capability{}, fmt.Errorf("capability %s: %w", id, ErrNotFound)
	}
	c.HolderID = newHolder
	m.caps[id] = c
	return c, nil
}

func (m *Memory) RevokeCapability(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caps[id]; !ok {
		return fmt.Errorf("capability %s: %w", id, ErrNotFound)
	}
	// Cascade: revoking a capability invalidates descendants (spec.md §4.2:
	// "the parent-id is recorded so revocation of the parent invalidates
	// descendants").
	toDelete := map[string]bool{id: true}
	changed := true
	for changed {
		changed = false
		for capID, c := range m.caps {
			if toDelete[capID] {
				continue
			}
			if c.ParentID != nil && toDelete[*c.ParentID] {
				toDelete[capID] = true
				changed = true
			}
		}
	}
	for capID := range toDelete {
		delete(m.caps, capID)
	}
	return nil
}

func (m *Memory) ListDescendants(_ context.Context, id string) ([]capdom.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []capdom.Capability
	for _, c := range m.caps {
		if c.ParentID != nil && *c.ParentID == id {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
