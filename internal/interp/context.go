package interp

import "context"

// Default gas budgets (spec.md §4.4, §9): callers outside a running script
// — the scheduler's tick loop, the session dispatcher's top-level request
// handling — need a starting budget and a sub-call cap with no enclosing
// Context to inherit from.
const (
	DefaultGas    int64 = 10000
	DefaultSubGas int64 = 500
)

// StackFrame records one verb/lambda invocation for diagnostics (spec.md
// §3 "Execution context").
type StackFrame struct {
	Name string
	Args []any
}

// SendFunc delivers an outbound message toward the client that owns the
// running verb invocation. It is a suspension point: a bounded outbound
// queue may block the call until space frees up (spec.md §5 Backpressure).
type SendFunc func(goCtx context.Context, channel string, payload any) error

// Context is the Execution context from spec.md §3: everything one
// evaluate() call chain needs beyond the expression tree itself.
type Context struct {
	Go context.Context

	// Registry lets lazy opcode handlers (if/while/for/try/lambda-apply)
	// recursively call Evaluate on raw sub-expressions without every
	// handler threading its own copy through.
	Registry *Registry

	Caller int64 // entity initiating the call
	This   int64 // entity on which the current verb was found
	Args   []any // verb arguments

	Gas      int64
	Warnings *[]string
	Scope    *Scope
	Stack    []StackFrame

	Send SendFunc

	// MaxSubGas bounds the budget handed to a nested verb call (§4.4,
	// §9): a sub-call inherits min(remaining, MaxSubGas) rather than a
	// fresh budget, so a script cannot subvert the budget by recursing.
	MaxSubGas int64

	// Dispatch resolves and invokes another verb by prototype walk; wired
	// in by the owner of the registry (avoids an import cycle between
	// interp and the repository/capability packages).
	Dispatch VerbDispatcher
}

// VerbDispatcher resolves target's verb named verbName by prototype walk
// and evaluates it in a fresh sub-context, returning its value. Implemented
// by dispatcher.Runner, which knows how to reach the repository.
type VerbDispatcher interface {
	CallVerb(ctx *Context, target int64, verbName string, args []any) (any, error)
}

// Warn appends msg to ctx.Warnings without raising (spec.md §7 warn()).
func (c *Context) Warn(msg string) {
	if c.Warnings == nil {
		return
	}
	*c.Warnings = append(*c.Warnings, msg)
}

// ChargeGas decrements remaining gas by n and fails with GasExhausted if it
// goes negative.
func (c *Context) ChargeGas(n int64) error {
	c.Gas -= n
	if c.Gas < 0 {
		return NewError(KindGasExhausted, "gas exhausted")
	}
	return nil
}

// SubGas computes the budget to hand a nested call: min(remaining, MaxSubGas)
// when MaxSubGas is set, otherwise the full remaining budget is inherited
// (Design Notes: "prefer inheriting min(remaining, cap)").
func (c *Context) SubGas() int64 {
	if c.MaxSubGas > 0 && c.MaxSubGas < c.Gas {
		return c.MaxSubGas
	}
	return c.Gas
}

// Child returns a new Context for a nested verb call: same caller
// (authority flows through), This set to target, fresh args and scope
// (closures do not leak across verb boundaries), shared warnings/send, a
// sub-gas budget.
func (c *Context) Child(target int64, args []any) *Context {
	return &Context{
		Go:        c.Go,
		Registry:  c.Registry,
		Caller:    c.Caller,
		This:      target,
		Args:      args,
		Gas:       c.SubGas(),
		Warnings:  c.Warnings,
		Scope:     NewScope(),
		Send:      c.Send,
		MaxSubGas: c.MaxSubGas,
		Dispatch:  c.Dispatch,
	}
}
