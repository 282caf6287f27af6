package opcodes

import (
	"sort"

	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

func registerList(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "list.new", MinArity: 0, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "new list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return value.CloneList(args), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.len", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "list length", Category: "list", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.len")
			if err != nil {
				return nil, err
			}
			return float64(len(l)), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.empty", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "list is empty", Category: "list", Return: "bool"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.empty")
			if err != nil {
				return nil, err
			}
			return len(l) == 0, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.get", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "list element", Category: "list", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.get")
			if err != nil {
				return nil, err
			}
			idx, err := argNumber(args, 1, "list.get")
			if err != nil {
				return nil, err
			}
			i := int(idx)
			if i < 0 || i >= len(l) {
				return nil, nil
			}
			return l[i], nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.set", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "list with element replaced", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.set")
			if err != nil {
				return nil, err
			}
			idx, err := argNumber(args, 1, "list.set")
			if err != nil {
				return nil, err
			}
			i := int(idx)
			if i < 0 || i >= len(l) {
				return nil, interp.NewError(interp.KindType, "list.set: index %d out of range", i)
			}
			out := value.CloneList(l)
			out[i] = args[2]
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.push", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "list with element appended", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.push")
			if err != nil {
				return nil, err
			}
			return append(value.CloneList(l), args[1]), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.pop", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "list without last element", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.pop")
			if err != nil {
				return nil, err
			}
			if len(l) == 0 {
				return l, nil
			}
			return value.CloneList(l[:len(l)-1]), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.shift", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "list without first element", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.shift")
			if err != nil {
				return nil, err
			}
			if len(l) == 0 {
				return l, nil
			}
			return value.CloneList(l[1:]), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.unshift", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "list with element prepended", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.unshift")
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(l)+1)
			out = append(out, args[1])
			return append(out, l...), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.slice", MinArity: 2, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "sub-list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.slice")
			if err != nil {
				return nil, err
			}
			start, err := argNumber(args, 1, "list.slice")
			if err != nil {
				return nil, err
			}
			end := len(l)
			if len(args) == 3 {
				e, err := argNumber(args, 2, "list.slice")
				if err != nil {
					return nil, err
				}
				end = int(e)
			}
			s := clampIndex(int(start), len(l))
			e := clampIndex(end, len(l))
			if e < s {
				e = s
			}
			return value.CloneList(l[s:e]), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.splice", MinArity: 3, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "list with a range replaced", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.splice")
			if err != nil {
				return nil, err
			}
			start, err := argNumber(args, 1, "list.splice")
			if err != nil {
				return nil, err
			}
			count, err := argNumber(args, 2, "list.splice")
			if err != nil {
				return nil, err
			}
			s := clampIndex(int(start), len(l))
			e := clampIndex(s+int(count), len(l))
			out := make([]any, 0, len(l)-(e-s)+len(args)-3)
			out = append(out, l[:s]...)
			out = append(out, args[3:]...)
			out = append(out, l[e:]...)
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.concat", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "concatenate lists", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			var out []any
			for i := range args {
				l, err := argList(args, i, "list.concat")
				if err != nil {
					return nil, err
				}
				out = append(out, l...)
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.includes", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "list contains value", Category: "list", Return: "bool"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.includes")
			if err != nil {
				return nil, err
			}
			for _, item := range l {
				if value.Equal(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.reverse", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "reversed list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.reverse")
			if err != nil {
				return nil, err
			}
			out := value.CloneList(l)
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.sort", MinArity: 1, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "sorted list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.sort")
			if err != nil {
				return nil, err
			}
			out := value.CloneList(l)
			if len(args) == 2 {
				cmp, err := argLambda(args, 1, "list.sort")
				if err != nil {
					return nil, err
				}
				var sortErr error
				sort.SliceStable(out, func(i, j int) bool {
					if sortErr != nil {
						return false
					}
					v, err := applyLambda(cmp, []any{out[i], out[j]}, ctx)
					if err != nil {
						sortErr = err
						return false
					}
					n, _ := value.AsNumber(v)
					return n < 0
				})
				if sortErr != nil {
					return nil, sortErr
				}
				return out, nil
			}
			sort.SliceStable(out, func(i, j int) bool {
				return defaultLess(out[i], out[j])
			})
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.find", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "first matching element", Category: "list", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.find")
			if err != nil {
				return nil, err
			}
			pred, err := argLambda(args, 1, "list.find")
			if err != nil {
				return nil, err
			}
			for _, item := range l {
				v, err := applyLambda(pred, []any{item}, ctx)
				if err != nil {
					return nil, err
				}
				if value.Truthy(v) {
					return item, nil
				}
			}
			return nil, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.map", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "mapped list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.map")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "list.map")
			if err != nil {
				return nil, err
			}
			out := make([]any, len(l))
			for i, item := range l {
				v, err := applyLambda(fn, []any{item, float64(i)}, ctx)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.filter", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "filtered list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.filter")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "list.filter")
			if err != nil {
				return nil, err
			}
			var out []any
			for i, item := range l {
				v, err := applyLambda(fn, []any{item, float64(i)}, ctx)
				if err != nil {
					return nil, err
				}
				if value.Truthy(v) {
					out = append(out, item)
				}
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.reduce", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "reduced value", Category: "list", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.reduce")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "list.reduce")
			if err != nil {
				return nil, err
			}
			acc := args[2]
			for i, item := range l {
				v, err := applyLambda(fn, []any{acc, item, float64(i)}, ctx)
				if err != nil {
					return nil, err
				}
				acc = v
			}
			return acc, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.flatMap", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "flat-mapped list", Category: "list", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.flatMap")
			if err != nil {
				return nil, err
			}
			fn, err := argLambda(args, 1, "list.flatMap")
			if err != nil {
				return nil, err
			}
			var out []any
			for i, item := range l {
				v, err := applyLambda(fn, []any{item, float64(i)}, ctx)
				if err != nil {
					return nil, err
				}
				sub, ok := value.AsList(v)
				if !ok {
					return nil, interp.NewError(interp.KindType, "list.flatMap: callback must return a list")
				}
				out = append(out, sub...)
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "list.join", MinArity: 1, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "joined string", Category: "list", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "list.join")
			if err != nil {
				return nil, err
			}
			sep := ""
			if len(args) == 2 {
				sep, err = argString(args, 1, "list.join")
				if err != nil {
					return nil, err
				}
			}
			out := ""
			for i, item := range l {
				if i > 0 {
					out += sep
				}
				out += stringify(item)
			}
			return out, nil
		},
	})
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}

func defaultLess(a, b any) bool {
	an, aok := value.AsNumber(a)
	bn, bok := value.AsNumber(b)
	if aok && bok {
		return an < bn
	}
	as, asok := value.AsString(a)
	bs, bsok := value.AsString(b)
	if asok && bsok {
		return as < bs
	}
	return false
}
