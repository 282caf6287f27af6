// Package capability implements the Capability Store component of
// spec.md §4.2: issuing, validating, delegating, and revoking unforgeable
// authority tokens on top of the Repository. Grounded in spirit on the
// teacher's system/sandbox capability model (Grant/Revoke/Has, audited
// denials via a SecurityAuditor) but adapted to spec.md's dynamic,
// per-target, holder-bound, delegatable token model rather than the
// teacher's static per-service permission set.
package capability

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/worldcore/internal/domain/capdom"
	"github.com/R3E-Network/worldcore/internal/storage"
)

// ErrPermissionDenied is returned by Validate, Give, and Mint when the
// presented authority does not cover the requested operation.
var ErrPermissionDenied = fmt.Errorf("permission denied")

// Store mediates capability issuance and validation on top of a Repository.
type Store struct {
	repo storage.Store
	log  *logrus.Entry
}

// New creates a capability Store bound to a Repository.
func New(repo storage.Store, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{repo: repo, log: log}
}

// Create mints a capability bound to holder. Trusted seed code (world
// bootstrapping) calls this directly; scripts must go through Mint, which
// additionally requires a sys.mint authority.
func (s *Store) Create(ctx context.Context, holder int64, capType string, params map[string]any) (capdom.Capability, error) {
	return s.repo.CreateCapability(ctx, capdom.Capability{HolderID: holder, Type: capType, Params: params})
}

// Lookup returns a capability held by holder of the given type whose params
// satisfy filter, or false if none match. It never returns another
// holder's tokens (spec.md §4.2).
func (s *Store) Lookup(ctx context.Context, holder int64, capType string, filter map[string]any) (capdom.Capability, bool, error) {
	caps, err := s.repo.ListCapabilities(ctx, holder)
	if err != nil {
		return capdom.Capability{}, false, err
	}
	for _, c := range caps {
		if c.Type != capType {
			continue
		}
		if paramsSatisfy(c.Params, filter) {
			return c, true, nil
		}
	}
	return capdom.Capability{}, false, nil
}

func paramsSatisfy(params, filter map[string]any) bool {
	for k, v := range filter {
		pv, ok := params[k]
		if !ok || pv != v {
			return false
		}
	}
	return true
}

// Validate verifies that cap, presented by caller, authorizes requiredOp
// against targetID (0 when the operation is not entity-scoped).
//
// A capability is valid iff (a) a row with that id exists, (b) its holder
// equals caller, and (c) its parameters actually cover the operation
// (spec.md §4.2; Testable Property 3). Re-reads the backing store on every
// call rather than trusting the in-script CapabilityRef's cached fields.
func (s *Store) Validate(ctx context.Context, capID string, caller int64, targetID int64, requiredOp string) (capdom.Capability, error) {
	c, err := s.repo.GetCapability(ctx, capID)
	if err != nil {
		return capdom.Capability{}, err
	}
	if c.HolderID != caller {
		s.log.WithFields(logrus.Fields{"capability": capID, "holder": c.HolderID, "caller": caller}).Warn("capability holder mismatch")
		return capdom.Capability{}, ErrPermissionDenied
	}
	if !c.Covers(targetID, requiredOp) {
		s.log.WithFields(logrus.Fields{"capability": capID, "op": requiredOp, "target": targetID}).Warn("capability does not cover operation")
		return capdom.Capability{}, ErrPermissionDenied
	}
	return c, nil
}

// Delegate creates a new capability with the parent's type, holder =
// caller, and parameters = intersection(parent.params, restrictions). The
// parent id is recorded so revoking the parent invalidates descendants.
func (s *Store) Delegate(ctx context.Context, parentID string, caller int64, restrictions map[string]any) (capdom.Capability, error) {
	parent, err := s.repo.GetCapability(ctx, parentID)
	if err != nil {
		return capdom.Capability{}, err
	}
	if parent.HolderID != caller {
		return capdom.Capability{}, ErrPermissionDenied
	}
	child := capdom.Capability{
		HolderID: caller,
		ParentID: &parent.ID,
		Type:     parent.Type,
		Params:   capdom.IntersectParams(parent.Params, restrictions),
	}
	return s.repo.CreateCapability(ctx, child)
}

// Give transfers holder after checking that cap exists and is held by
// caller. The capability's params are not consulted: "give" is not itself
// a restricted operation kind.
func (s *Store) Give(ctx context.Context, capID string, caller int64, newHolder int64) (capdom.Capability, error) {
	c, err := s.repo.GetCapability(ctx, capID)
	if err != nil {
		return capdom.Capability{}, err
	}
	if c.HolderID != caller {
		return capdom.Capability{}, ErrPermissionDenied
	}
	return s.repo.GiveCapability(ctx, capID, newHolder)
}

// Mint creates a capability of capType under the authority of a sys.mint
// capability held by caller. Fails unless authorityID names a sys.mint
// capability whose namespace (if present) covers capType.
func (s *Store) Mint(ctx context.Context, authorityID string, caller int64, holder int64, capType string, params map[string]any) (capdom.Capability, error) {
	authority, err := s.repo.GetCapability(ctx, authorityID)
	if err != nil {
		return capdom.Capability{}, err
	}
	if authority.HolderID != caller || authority.Type != "sys.mint" {
		return capdom.Capability{}, ErrPermissionDenied
	}
	if _, scoped := authority.Params["namespace"]; scoped && !authority.Covers(0, capType) {
		return capdom.Capability{}, ErrPermissionDenied
	}
	return s.repo.CreateCapability(ctx, capdom.Capability{HolderID: holder, Type: capType, Params: params})
}

// Revoke deletes a capability and cascades to its descendants.
func (s *Store) Revoke(ctx context.Context, capID string) error {
	return s.repo.RevokeCapability(ctx, capID)
}
