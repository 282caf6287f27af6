package opcodes

import (
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

func argNumber(args []any, i int, opcode string) (float64, error) {
	n, ok := value.AsNumber(args[i])
	if !ok {
		return 0, interp.NewError(interp.KindType, "%s: argument %d must be a number, got %s", opcode, i, value.TypeName(args[i]))
	}
	return n, nil
}

func argString(args []any, i int, opcode string) (string, error) {
	s, ok := value.AsString(args[i])
	if !ok {
		return "", interp.NewError(interp.KindType, "%s: argument %d must be a string, got %s", opcode, i, value.TypeName(args[i]))
	}
	return s, nil
}

func argList(args []any, i int, opcode string) ([]any, error) {
	l, ok := value.AsList(args[i])
	if !ok {
		return nil, interp.NewError(interp.KindType, "%s: argument %d must be a list, got %s", opcode, i, value.TypeName(args[i]))
	}
	return l, nil
}

func argObject(args []any, i int, opcode string) (map[string]any, error) {
	o, ok := value.AsObject(args[i])
	if !ok {
		return nil, interp.NewError(interp.KindType, "%s: argument %d must be an object, got %s", opcode, i, value.TypeName(args[i]))
	}
	return o, nil
}

func argEntity(args []any, i int, opcode string) (*value.EntityRef, error) {
	switch v := args[i].(type) {
	case *value.EntityRef:
		return v, nil
	case map[string]any:
		// An entity object as returned by the entity opcode stands for its id.
		if ref, ok := v["id"].(*value.EntityRef); ok {
			return ref, nil
		}
	}
	return nil, interp.NewError(interp.KindType, "%s: argument %d must be an entity, got %s", opcode, i, value.TypeName(args[i]))
}

func argCapability(args []any, i int, opcode string) (*value.CapabilityRef, error) {
	c, ok := args[i].(*value.CapabilityRef)
	if !ok {
		return nil, interp.NewError(interp.KindType, "%s: argument %d must be a capability, got %s", opcode, i, value.TypeName(args[i]))
	}
	return c, nil
}

func argLambda(args []any, i int, opcode string) (*value.Lambda, error) {
	l, ok := args[i].(*value.Lambda)
	if !ok {
		return nil, interp.NewError(interp.KindType, "%s: argument %d must be a lambda, got %s", opcode, i, value.TypeName(args[i]))
	}
	return l, nil
}

func optInt(args []any, i int, def int) int {
	if i >= len(args) {
		return def
	}
	n, ok := value.AsNumber(args[i])
	if !ok {
		return def
	}
	return int(n)
}

// applyLambda invokes fn with positional args (extra ignored, missing bound
// to null) under ctx's current caller/this/gas, pushing a fresh scope layer
// over the lambda's captured snapshot (spec.md §4.4 "Lambdas").
func applyLambda(fn *value.Lambda, callArgs []any, ctx *interp.Context) (any, error) {
	scope := interp.FromSnapshot(fn.Captured).Push()
	for i, name := range fn.Params {
		var v any
		if i < len(callArgs) {
			v = callArgs[i]
		}
		scope.Let(name, v)
	}
	saved := ctx.Scope
	ctx.Scope = scope
	defer func() { ctx.Scope = saved }()
	return interp.Evaluate(fn.Body, ctx, ctx.Registry)
}
