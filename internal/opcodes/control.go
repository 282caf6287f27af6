package opcodes

import (
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// registerControl wires the control-flow and lambda opcodes from spec.md
// §4.4. seq, if, while, for, try, let, set and lambda are lazy: their tail
// elements are raw expressions the handler evaluates itself, because the
// contract depends on short-circuiting or repeated evaluation under a mutated
// scope. throw, return, var, apply and call take evaluated arguments.
func registerControl(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "seq", Lazy: true, MinArity: 0, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "sequence", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			var last any
			for _, e := range exprs {
				v, err := interp.Evaluate(e, ctx, ctx.Registry)
				if err != nil {
					return nil, err
				}
				last = v
			}
			return last, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "if", Lazy: true, MinArity: 2, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "conditional", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			cond, err := interp.Evaluate(exprs[0], ctx, ctx.Registry)
			if err != nil {
				return nil, err
			}
			if value.Truthy(cond) {
				return interp.Evaluate(exprs[1], ctx, ctx.Registry)
			}
			if len(exprs) == 3 {
				return interp.Evaluate(exprs[2], ctx, ctx.Registry)
			}
			return nil, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "while", Lazy: true, MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "while loop", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			var last any
			for {
				cond, err := interp.Evaluate(exprs[0], ctx, ctx.Registry)
				if err != nil {
					return nil, err
				}
				if !value.Truthy(cond) {
					return last, nil
				}
				v, err := interp.Evaluate(exprs[1], ctx, ctx.Registry)
				if err != nil {
					return nil, err
				}
				last = v
			}
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "for", Lazy: true, MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "for-each loop", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			name, ok := exprs[0].(string)
			if !ok {
				return nil, interp.NewError(interp.KindType, "for: binding name must be a string")
			}
			listVal, err := interp.Evaluate(exprs[1], ctx, ctx.Registry)
			if err != nil {
				return nil, err
			}
			items, ok := value.AsList(listVal)
			if !ok {
				return nil, interp.NewError(interp.KindType, "for: second argument must evaluate to a list, got %s", value.TypeName(listVal))
			}
			var last any
			for _, item := range items {
				ctx.Scope.Let(name, item)
				v, err := interp.Evaluate(exprs[2], ctx, ctx.Registry)
				if err != nil {
					return nil, err
				}
				last = v
			}
			return last, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "try", Lazy: true, MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "try/catch", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			v, err := interp.Evaluate(exprs[0], ctx, ctx.Registry)
			if err == nil {
				return v, nil
			}
			if interp.IsReturnSignal(err) {
				// return() is not a script error; it unwinds straight
				// through try to the enclosing verb invocation.
				return nil, err
			}
			se, ok := interp.AsScriptError(err)
			if !ok {
				return nil, err
			}
			errVar, ok := exprs[1].(string)
			if !ok {
				return nil, interp.NewError(interp.KindType, "try: error_var must be a string")
			}
			ctx.Scope.Let(errVar, se.Message)
			return interp.Evaluate(exprs[2], ctx, ctx.Registry)
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "throw", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "raise error", Category: "control", Return: "never"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			msg, err := argString(args, 0, "throw")
			if err != nil {
				return nil, err
			}
			return nil, interp.NewError(interp.KindUserError, "%s", msg)
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "return", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "early return", Category: "control", Return: "never"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return nil, interp.ReturnSignal(args[0])
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "let", Lazy: true, MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "bind variable", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			name, ok := exprs[0].(string)
			if !ok {
				return nil, interp.NewError(interp.KindType, "let: name must be a string")
			}
			v, err := interp.Evaluate(exprs[1], ctx, ctx.Registry)
			if err != nil {
				return nil, err
			}
			ctx.Scope.Let(name, v)
			return v, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "set", Lazy: true, MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "reassign variable", Category: "control", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			name, ok := exprs[0].(string)
			if !ok {
				return nil, interp.NewError(interp.KindType, "set: name must be a string")
			}
			v, err := interp.Evaluate(exprs[1], ctx, ctx.Registry)
			if err != nil {
				return nil, err
			}
			if !ctx.Scope.Set(name, v) {
				return nil, interp.NewError(interp.KindUnknownVariable, "set: %q is not bound in any enclosing scope", name)
			}
			return v, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "var", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "read variable", Category: "control", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			name, err := argString(args, 0, "var")
			if err != nil {
				return nil, err
			}
			v, _ := ctx.Scope.Var(name)
			return v, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "lambda", Lazy: true, MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "closure literal", Category: "control", Return: "lambda"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			rawNames, ok := exprs[0].([]any)
			if !ok {
				return nil, interp.NewError(interp.KindType, "lambda: parameter list must be a list of names")
			}
			names := make([]string, len(rawNames))
			for i, n := range rawNames {
				s, ok := n.(string)
				if !ok {
					return nil, interp.NewError(interp.KindType, "lambda: parameter %d must be a string", i)
				}
				names[i] = s
			}
			return &value.Lambda{
				Params:   names,
				Body:     exprs[1],
				Captured: ctx.Scope.Snapshot(),
			}, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "apply", MinArity: 1, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "invoke closure", Category: "control", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			fn, err := argLambda(args, 0, "apply")
			if err != nil {
				return nil, err
			}
			return applyLambda(fn, args[1:], ctx)
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "call", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "invoke verb", Category: "control", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 0, "call")
			if err != nil {
				return nil, err
			}
			verbName, err := argString(args, 1, "call")
			if err != nil {
				return nil, err
			}
			if ctx.Dispatch == nil {
				return nil, interp.NewError(interp.KindNotFound, "call: no verb dispatcher wired")
			}
			return ctx.Dispatch.CallVerb(ctx, target.ID, verbName, args[2:])
		},
	})
}
