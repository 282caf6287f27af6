// Package postgres implements internal/storage.Store backed by PostgreSQL,
// grounded on the teacher's internal/app/storage/postgres.Store — same
// struct-around-a-handle shape, same json.Marshal-into-jsonb-column
// approach for the dynamic blobs, here using sqlx for scans instead of raw
// database/sql, and golang-migrate (see ./migrations) for schema
// versioning instead of the teacher's ad hoc embed-and-exec loop.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/worldcore/internal/domain/capdom"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
	"github.com/R3E-Network/worldcore/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type entityRow struct {
	ID          int64          `db:"id"`
	PrototypeID sql.NullInt64  `db:"prototype_id"`
	LocationID  sql.NullInt64  `db:"location_id"`
	OwnerID     sql.NullInt64  `db:"owner_id"`
	Kind        string         `db:"kind"`
	PropsJSON   []byte         `db:"props_json"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r entityRow) toDomain() (entity.Entity, error) {
	e := entity.Entity{
		ID:        r.ID,
		Kind:      entity.Kind(r.Kind),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.PrototypeID.Valid {
		v := r.PrototypeID.Int64
		e.Prototype = &v
	}
	if r.LocationID.Valid {
		v := r.LocationID.Int64
		e.Location = &v
	}
	if r.OwnerID.Valid {
		v := r.OwnerID.Int64
		e.Owner = &v
	}
	if len(r.PropsJSON) > 0 {
		if err := json.Unmarshal(r.PropsJSON, &e.Properties); err != nil {
			return entity.Entity{}, fmt.Errorf("decode properties: %w", err)
		}
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	return e, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// CreateEntity inserts a new entity row.
func (s *Store) CreateEntity(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return entity.Entity{}, err
	}
	now := time.Now().UTC()
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO entities (prototype_id, location_id, owner_id, kind, props_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, nullableID(e.Prototype), nullableID(e.Location), nullableID(e.Owner), string(e.Kind), props, now)
	if err := row.Scan(&e.ID); err != nil {
		return entity.Entity{}, fmt.Errorf("insert entity: %w", err)
	}
	e.CreatedAt, e.UpdatedAt = now, now
	return e, nil
}

func (s *Store) GetEntity(ctx context.Context, id int64) (entity.Entity, error) {
	var row entityRow
	err := s.db.GetContext(ctx, &row, `SELECT id, prototype_id, location_id, owner_id, kind, props_json, created_at, updated_at FROM entities WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return entity.Entity{}, fmt.Errorf("entity %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return entity.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return row.toDomain()
}

func (s *Store) UpdateEntity(ctx context.Context, id int64, updates map[string]any) (entity.Entity, error) {
	existing, err := s.GetEntity(ctx, id)
	if err != nil {
		return entity.Entity{}, err
	}
	for k, v := range updates {
		existing.Properties[k] = v
	}
	props, err := json.Marshal(existing.Properties)
	if err != nil {
		return entity.Entity{}, err
	}
	existing.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `UPDATE entities SET props_json = $2, updated_at = $3 WHERE id = $1`, id, props, existing.UpdatedAt)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update entity: %w", err)
	}
	return existing, nil
}

func (s *Store) SetPrototype(ctx context.Context, id int64, prototype *int64) (entity.Entity, error) {
	if prototype != nil {
		cyclic, err := s.protoCyclic(ctx, id, *prototype)
		if err != nil {
			return entity.Entity{}, err
		}
		if cyclic {
			return entity.Entity{}, fmt.Errorf("prototype %d: %w", *prototype, storage.ErrCyclicContainment)
		}
	}
	_, err := s.db.ExecContext(ctx, `UPDATE entities SET prototype_id = $2, updated_at = now() WHERE id = $1`, id, nullableID(prototype))
	if err != nil {
		return entity.Entity{}, fmt.Errorf("set prototype: %w", err)
	}
	return s.GetEntity(ctx, id)
}

func (s *Store) protoCyclic(ctx context.Context, child, candidate int64) (bool, error) {
	visited := map[int64]bool{child: true}
	cur := candidate
	for {
		if visited[cur] {
			return true, nil
		}
		visited[cur] = true
		e, err := s.GetEntity(ctx, cur)
		if err != nil {
			return false, nil
		}
		if e.Prototype == nil {
			return false, nil
		}
		cur = *e.Prototype
	}
}

func (s *Store) DeleteEntity(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Sweep capabilities scoped to the deleted entity by target_id (the FK
	// cascade handles capabilities *held by* the entity; this handles
	// capabilities narrowed to it as a target parameter in their JSON blob).
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM capabilities WHERE (params_json->>'target_id')::bigint = $1
	`, id); err != nil {
		return fmt.Errorf("sweep capabilities: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity %d: %w", id, storage.ErrNotFound)
	}
	return tx.Commit()
}

func (s *Store) Move(ctx context.Context, id int64, newContainer int64) (entity.Entity, error) {
	if _, err := s.GetEntity(ctx, newContainer); err != nil {
		return entity.Entity{}, err
	}
	visited := map[int64]bool{}
	cur := newContainer
	for {
		if cur == id {
			return entity.Entity{}, fmt.Errorf("move %d into %d: %w", id, newContainer, storage.ErrCyclicContainment)
		}
		if visited[cur] {
			break
		}
		visited[cur] = true
		ce, err := s.GetEntity(ctx, cur)
		if err != nil || ce.Location == nil {
			break
		}
		cur = *ce.Location
	}
	_, err := s.db.ExecContext(ctx, `UPDATE entities SET location_id = $2, updated_at = now() WHERE id = $1`, id, newContainer)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("move entity: %w", err)
	}
	return s.GetEntity(ctx, id)
}

func (s *Store) ListContents(ctx context.Context, containerID int64) ([]entity.Entity, error) {
	var rows []entityRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, prototype_id, location_id, owner_id, kind, props_json, created_at, updated_at
		FROM entities WHERE location_id = $1 ORDER BY id
	`, containerID); err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	out := make([]entity.Entity, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ResolveProperty(ctx context.Context, id int64, key string) (any, bool, error) {
	visited := map[int64]bool{}
	cur := id
	for {
		if visited[cur] {
			return nil, false, fmt.Errorf("entity %d: %w", id, storage.ErrNotFound)
		}
		visited[cur] = true
		e, err := s.GetEntity(ctx, cur)
		if err != nil {
			return nil, false, err
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

type verbRow struct {
	ID              int64     `db:"id"`
	EntityID        int64     `db:"entity_id"`
	Name            string    `db:"name"`
	CodeJSON        []byte    `db:"code_json"`
	PermissionsJSON []byte    `db:"permissions_json"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r verbRow) toDomain() (verbdom.Verb, error) {
	v := verbdom.Verb{ID: r.ID, EntityID: r.EntityID, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if err := json.Unmarshal(r.CodeJSON, &v.Code); err != nil {
		return verbdom.Verb{}, fmt.Errorf("decode verb code: %w", err)
	}
	if len(r.PermissionsJSON) > 0 {
		if err := json.Unmarshal(r.PermissionsJSON, &v.Permissions); err != nil {
			return verbdom.Verb{}, fmt.Errorf("decode verb permissions: %w", err)
		}
	}
	return v, nil
}

func (s *Store) AddVerb(ctx context.Context, v verbdom.Verb) (verbdom.Verb, error) {
	code, err := json.Marshal(v.Code)
	if err != nil {
		return verbdom.Verb{}, err
	}
	perms, err := json.Marshal(v.Permissions)
	if err != nil {
		return verbdom.Verb{}, err
	}
	now := time.Now().UTC()
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO verbs (entity_id, name, code_json, permissions_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, v.EntityID, v.Name, code, perms, now)
	if err := row.Scan(&v.ID); err != nil {
		if isUniqueViolation(err) {
			return verbdom.Verb{}, fmt.Errorf("verb %s on %d: %w", v.Name, v.EntityID, storage.ErrDuplicateVerb)
		}
		return verbdom.Verb{}, fmt.Errorf("insert verb: %w", err)
	}
	v.CreatedAt, v.UpdatedAt = now, now
	return v, nil
}

func (s *Store) UpdateVerb(ctx context.Context, v verbdom.Verb) (verbdom.Verb, error) {
	code, err := json.Marshal(v.Code)
	if err != nil {
		return verbdom.Verb{}, err
	}
	perms, err := json.Marshal(v.Permissions)
	if err != nil {
		return verbdom.Verb{}, err
	}
	v.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE verbs SET code_json = $3, permissions_json = $4, updated_at = $5
		WHERE entity_id = $1 AND name = $2
	`, v.EntityID, v.Name, code, perms, v.UpdatedAt)
	if err != nil {
		return verbdom.Verb{}, fmt.Errorf("update verb: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return verbdom.Verb{}, fmt.Errorf("verb %s on %d: %w", v.Name, v.EntityID, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Store) getVerbOn(ctx context.Context, id int64, name string) (verbdom.Verb, bool, error) {
	var row verbRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, entity_id, name, code_json, permissions_json, created_at, updated_at
		FROM verbs WHERE entity_id = $1 AND name = $2
	`, id, name)
	if err == sql.ErrNoRows {
		return verbdom.Verb{}, false, nil
	}
	if err != nil {
		return verbdom.Verb{}, false, fmt.Errorf("get verb: %w", err)
	}
	v, err := row.toDomain()
	return v, true, err
}

func (s *Store) GetVerb(ctx context.Context, id int64, name string) (verbdom.Verb, int64, error) {
	visited := map[int64]bool{}
	cur := id
	for {
		if visited[cur] {
			return verbdom.Verb{}, 0, fmt.Errorf("verb %s on %d: %w", name, id, storage.ErrNotFound)
		}
		visited[cur] = true
		if v, ok, err := s.getVerbOn(ctx, cur, name); err != nil {
			return verbdom.Verb{}, 0, err
		} else if ok {
			return v, cur, nil
		}
		e, err := s.GetEntity(ctx, cur)
		if err != nil {
			return verbdom.Verb{}, 0, err
		}
		if e.Prototype == nil {
			return verbdom.Verb{}, 0, fmt.Errorf("verb %s on %d: %w", name, id, storage.ErrNotFound)
		}
		cur = *e.Prototype
	}
}

func (s *Store) ListVerbs(ctx context.Context, id int64) ([]verbdom.Verb, error) {
	seen := map[string]verbdom.Verb{}
	visited := map[int64]bool{}
	cur := id
	for {
		if visited[cur] {
			break
		}
		visited[cur] = true
		var rows []verbRow
		if err := s.db.SelectContext(ctx, &rows, `
			SELECT id, entity_id, name, code_json, permissions_json, created_at, updated_at
			FROM verbs WHERE entity_id = $1
		`, cur); err != nil {
			return nil, fmt.Errorf("list verbs: %w", err)
		}
		for _, r := range rows {
			if _, already := seen[r.Name]; already {
				continue
			}
			v, err := r.toDomain()
			if err != nil {
				return nil, err
			}
			seen[r.Name] = v
		}
		e, err := s.GetEntity(ctx, cur)
		if err != nil || e.Prototype == nil {
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

type capRow struct {
	ID         string         `db:"id"`
	HolderID   int64          `db:"holder_id"`
	ParentID   sql.NullString `db:"parent_id"`
	Type       string         `db:"type"`
	ParamsJSON []byte         `db:"params_json"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r capRow) toDomain() (capdom.Capability, error) {
	c := capdom.Capability{ID: r.ID, HolderID: r.HolderID, Type: r.Type, CreatedAt: r.CreatedAt}
	if r.ParentID.Valid {
		v := r.ParentID.String
		c.ParentID = &v
	}
	if len(r.ParamsJSON) > 0 {
		if err := json.Unmarshal(r.ParamsJSON, &c.Params); err != nil {
			return capdom.Capability{}, fmt.Errorf("decode capability params: %w", err)
		}
	}
	if c.Params == nil {
		c.Params = map[string]any{}
	}
	return c, nil
}

func (s *Store) CreateCapability(ctx context.Context, c capdom.Capability) (capdom.Capability, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	params, err := json.Marshal(c.Params)
	if err != nil {
		return capdom.Capability{}, err
	}
	now := time.Now().UTC()
	var parent sql.NullString
	if c.ParentID != nil {
		parent = sql.NullString{String: *c.ParentID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO capabilities (id, holder_id, parent_id, type, params_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.HolderID, parent, c.Type, params, now)
	if err != nil {
		return capdom.Capability{}, fmt.Errorf("insert capability: %w", err)
	}
	c.CreatedAt = now
	return c, nil
}

func (s *Store) GetCapability(ctx context.Context, id string) (capdom.Capability, error) {
	var row capRow
	err := s.db.GetContext(ctx, &row, `SELECT id, holder_id, parent_id, type, params_json, created_at FROM capabilities WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return capdom.Capability{}, fmt.Errorf("capability %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return capdom.Capability{}, fmt.Errorf("get capability: %w", err)
	}
	return row.toDomain()
}

func (s *Store) ListCapabilities(ctx context.Context, holderID int64) ([]capdom.Capability, error) {
	var rows []capRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, holder_id, parent_id, type, params_json, created_at FROM capabilities WHERE holder_id = $1 ORDER BY id`, holderID); err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	out := make([]capdom.Capability, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) GiveCapability(ctx context.Context, id string, newHolder int64) (capdom.Capability, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE capabilities SET holder_id = $2 WHERE id = $1`, id, newHolder)
	if err != nil {
		return capdom.Capability{}, fmt.Errorf("give capability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return capdom.Capability{}, fmt.Errorf("capability %s: %w", id, storage.ErrNotFound)
	}
	return s.GetCapability(ctx, id)
}

func (s *Store) RevokeCapability(ctx context.Context, id string) error {
	// Recursive CTE deletes the capability and every transitive descendant
	// in one statement, mirroring the in-memory store's cascade.
	res, err := s.db.ExecContext(ctx, `
		WITH RECURSIVE descendants AS (
			SELECT id FROM capabilities WHERE id = $1
			UNION ALL
			SELECT c.id FROM capabilities c JOIN descendants d ON c.parent_id = d.id
		)
		DELETE FROM capabilities WHERE id IN (SELECT id FROM descendants)
	`, id)
	if err != nil {
		return fmt.Errorf("revoke capability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("capability %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListDescendants(ctx context.Context, id string) ([]capdom.Capability, error) {
	var rows []capRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, holder_id, parent_id, type, params_json, created_at FROM capabilities WHERE parent_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	out := make([]capdom.Capability, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && (containsAny(err.Error(), "duplicate key value", "unique constraint"))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}
