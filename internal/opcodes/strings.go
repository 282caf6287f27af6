package opcodes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/R3E-Network/worldcore/internal/interp"
)

// stringify renders any script value as text for str.join/list.join and
// string concatenation, matching the teacher's logging convention of
// printing domain values with %v rather than hand-rolled per-type cases.
func stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func registerString(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "str.len", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "string length", Category: "string", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.len")
			if err != nil {
				return nil, err
			}
			return float64(len([]rune(s))), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.concat", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "concatenate strings", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			var b strings.Builder
			for _, a := range args {
				b.WriteString(stringify(a))
			}
			return b.String(), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.split", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "split string", Category: "string", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.split")
			if err != nil {
				return nil, err
			}
			sep, err := argString(args, 1, "str.split")
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, sep)
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.slice", MinArity: 2, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "substring", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.slice")
			if err != nil {
				return nil, err
			}
			runes := []rune(s)
			start, err := argNumber(args, 1, "str.slice")
			if err != nil {
				return nil, err
			}
			end := len(runes)
			if len(args) == 3 {
				e, err := argNumber(args, 2, "str.slice")
				if err != nil {
					return nil, err
				}
				end = int(e)
			}
			lo := clampIndex(int(start), len(runes))
			hi := clampIndex(end, len(runes))
			if hi < lo {
				hi = lo
			}
			return string(runes[lo:hi]), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.upper", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "uppercase", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.upper")
			if err != nil {
				return nil, err
			}
			return strings.ToUpper(s), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.lower", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "lowercase", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.lower")
			if err != nil {
				return nil, err
			}
			return strings.ToLower(s), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.trim", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "trim whitespace", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.trim")
			if err != nil {
				return nil, err
			}
			return strings.TrimSpace(s), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.replace", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "replace substring", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.replace")
			if err != nil {
				return nil, err
			}
			old, err := argString(args, 1, "str.replace")
			if err != nil {
				return nil, err
			}
			newS, err := argString(args, 2, "str.replace")
			if err != nil {
				return nil, err
			}
			return strings.ReplaceAll(s, old, newS), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.includes", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "string contains substring", Category: "string", Return: "bool"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "str.includes")
			if err != nil {
				return nil, err
			}
			sub, err := argString(args, 1, "str.includes")
			if err != nil {
				return nil, err
			}
			return strings.Contains(s, sub), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "str.join", MinArity: 1, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "join list of strings", Category: "string", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "str.join")
			if err != nil {
				return nil, err
			}
			sep := ""
			if len(args) == 2 {
				sep, err = argString(args, 1, "str.join")
				if err != nil {
					return nil, err
				}
			}
			parts := make([]string, len(l))
			for i, item := range l {
				parts[i] = stringify(item)
			}
			return strings.Join(parts, sep), nil
		},
	})
}
