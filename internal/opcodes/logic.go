package opcodes

import (
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

func registerLogic(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "and", Lazy: true, MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "logical and", Category: "logic", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			var last any = true
			for _, e := range exprs {
				v, err := interp.Evaluate(e, ctx, ctx.Registry)
				if err != nil {
					return nil, err
				}
				if !value.Truthy(v) {
					return v, nil
				}
				last = v
			}
			return last, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "or", Lazy: true, MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "logical or", Category: "logic", Return: "value"},
		Handler: func(exprs []any, ctx *interp.Context) (any, error) {
			var last any
			for _, e := range exprs {
				v, err := interp.Evaluate(e, ctx, ctx.Registry)
				if err != nil {
					return nil, err
				}
				if value.Truthy(v) {
					return v, nil
				}
				last = v
			}
			return last, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "not", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "logical not", Category: "logic", Return: "bool"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return !value.Truthy(args[0]), nil
		},
	})
}
