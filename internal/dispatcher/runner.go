// Package dispatcher implements the verb-resolution and invocation pieces
// of spec.md §4.4/§4.6/§4.7: a Runner that resolves and evaluates a single
// verb call (shared by the `call`/`sudo` opcodes, the scheduler, and the
// session dispatcher below), and a Session that layers the per-connection
// request precedence search on top of it.
//
// Grounded on the teacher's internal/app/services/automation.Scheduler /
// JobDispatcher split: a narrow dispatch interface the polling loop drives,
// implemented here against the world's own verb-resolution rules instead of
// automation jobs.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

// Runner resolves a verb by prototype walk on the target entity and
// evaluates it in a fresh sub-context. It implements interp.VerbDispatcher,
// so it is wired into every top-level Context's Dispatch field (it then
// propagates to every Child() context for free).
type Runner struct {
	Repo     storage.Store
	Registry *interp.Registry
}

// NewRunner constructs a Runner over repo/reg.
func NewRunner(repo storage.Store, reg *interp.Registry) *Runner {
	return &Runner{Repo: repo, Registry: reg}
}

// CallVerb implements interp.VerbDispatcher: find target's verb by
// prototype walk, invoke it with ctx.Child(target, args) so caller identity
// and the sub-gas budget flow through per spec.md §4.4's call semantics.
func (r *Runner) CallVerb(ctx *interp.Context, target int64, verbName string, args []any) (any, error) {
	verb, _, err := r.Repo.GetVerb(ctx.Go, target, verbName)
	if err != nil {
		return nil, mapLookupError(err, target, verbName)
	}
	child := ctx.Child(target, value.CloneList(args))
	return interp.InvokeVerb(verb.Code, child, r.Registry)
}

// InvokeFresh resolves verbName by prototype walk starting at this and
// evaluates it under a brand-new top-level context — no enclosing call to
// inherit gas or scope from. Used by the scheduler's tick loop and cron
// trigger, where the verb is invoked by an externally-triggered event
// rather than a live player request, so nested calls are capped at
// DefaultSubGas (spec.md §9) rather than inheriting the full gas budget —
// contrast with Session.Handle's top-level context, which leaves MaxSubGas
// unset for interactive requests.
func (r *Runner) InvokeFresh(goCtx context.Context, caller, this int64, verbName string, args []any, gas int64, send interp.SendFunc) (any, []string, error) {
	verb, foundOn, err := r.Repo.GetVerb(goCtx, this, verbName)
	if err != nil {
		return nil, nil, mapLookupError(err, this, verbName)
	}
	warnings := []string{}
	ctx := &interp.Context{
		Go:        goCtx,
		Registry:  r.Registry,
		Caller:    caller,
		This:      foundOn,
		Args:      value.CloneList(args),
		Gas:       gas,
		Warnings:  &warnings,
		Scope:     interp.NewScope(),
		Send:      send,
		MaxSubGas: interp.DefaultSubGas,
		Dispatch:  r,
	}
	v, err := interp.InvokeVerb(verb.Code, ctx, r.Registry)
	return v, warnings, err
}

func mapLookupError(err error, entityID int64, verbName string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return interp.NewError(interp.KindNotFound, "no verb %q found on entity %d", verbName, entityID)
	}
	return fmt.Errorf("resolve verb %q on entity %d: %w", verbName, entityID, err)
}
