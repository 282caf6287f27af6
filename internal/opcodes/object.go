package opcodes

import (
	"sort"

	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// protectedKeys are rejected by obj.set/obj.new/obj.merge to prevent
// sandbox escape via host-object pollution (spec.md §4.5).
var protectedKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

func checkKey(opcode, key string) error {
	if protectedKeys[key] {
		return interp.NewError(interp.KindPermissionDenied, "%s: key %q is reserved", opcode, key)
	}
	return nil
}

func registerObject(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "obj.new", MinArity: 0, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "new object", Category: "object", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			if len(args)%2 != 0 {
				return nil, interp.NewError(interp.KindArity, "obj.new: expects key/value pairs")
			}
			out := make(map[string]any, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				key, err := argString(args, i, "obj.new")
				if err != nil {
					return nil, err
				}
				if err := checkKey("obj.new", key); err != nil {
					return nil, err
				}
				out[key] = args[i+1]
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.keys", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "object keys", Category: "object", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.keys")
			if err != nil {
				return nil, err
			}
			keys := sortedKeys(o)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.values", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "object values", Category: "object", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.values")
			if err != nil {
				return nil, err
			}
			keys := sortedKeys(o)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = o[k]
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.entries", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "object key/value pairs", Category: "object", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.entries")
			if err != nil {
				return nil, err
			}
			keys := sortedKeys(o)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = []any{k, o[k]}
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.get", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "object field", Category: "object", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.get")
			if err != nil {
				return nil, err
			}
			key, err := argString(args, 1, "obj.get")
			if err != nil {
				return nil, err
			}
			return o[key], nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.set", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "object with field set", Category: "object", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.set")
			if err != nil {
				return nil, err
			}
			key, err := argString(args, 1, "obj.set")
			if err != nil {
				return nil, err
			}
			if err := checkKey("obj.set", key); err != nil {
				return nil, err
			}
			out := value.CloneObject(o)
			out[key] = args[2]
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.has", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "object has field", Category: "object", Return: "bool"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.has")
			if err != nil {
				return nil, err
			}
			key, err := argString(args, 1, "obj.has")
			if err != nil {
				return nil, err
			}
			_, ok := o[key]
			return ok, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.del", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "object with field removed", Category: "object", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.del")
			if err != nil {
				return nil, err
			}
			key, err := argString(args, 1, "obj.del")
			if err != nil {
				return nil, err
			}
			out := value.CloneObject(o)
			delete(out, key)
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.merge", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "merged objects", Category: "object", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			out := map[string]any{}
			for i := range args {
				o, err := argObject(args, i, "obj.merge")
				if err != nil {
					return nil, err
				}
				for k, v := range o {
					if err := checkKey("obj.merge", k); err != nil {
						return nil, err
					}
					out[k] = v
				}
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.map", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "object with values mapped", Category: "object", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.map")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "obj.map")
			if err != nil {
				return nil, err
			}
			out := make(map[string]any, len(o))
			for _, k := range sortedKeys(o) {
				v, err := applyLambda(fn, []any{k, o[k]}, ctx)
				if err != nil {
					return nil, err
				}
				out[k] = v
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.filter", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "object with fields filtered", Category: "object", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.filter")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "obj.filter")
			if err != nil {
				return nil, err
			}
			out := map[string]any{}
			for _, k := range sortedKeys(o) {
				v, err := applyLambda(fn, []any{k, o[k]}, ctx)
				if err != nil {
					return nil, err
				}
				if value.Truthy(v) {
					out[k] = o[k]
				}
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.reduce", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "reduced object", Category: "object", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.reduce")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "obj.reduce")
			if err != nil {
				return nil, err
			}
			acc := args[2]
			for _, k := range sortedKeys(o) {
				v, err := applyLambda(fn, []any{acc, k, o[k]}, ctx)
				if err != nil {
					return nil, err
				}
				acc = v
			}
			return acc, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "obj.flatMap", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "flat-mapped entries", Category: "object", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			o, err := argObject(args, 0, "obj.flatMap")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "obj.flatMap")
			if err != nil {
				return nil, err
			}
			var out []any
			for _, k := range sortedKeys(o) {
				v, err := applyLambda(fn, []any{k, o[k]}, ctx)
				if err != nil {
					return nil, err
				}
				sub, ok := value.AsList(v)
				if !ok {
					return nil, interp.NewError(interp.KindType, "obj.flatMap: callback must return a list")
				}
				out = append(out, sub...)
			}
			return out, nil
		},
	})
}

func sortedKeys(o map[string]any) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
