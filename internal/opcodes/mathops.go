package opcodes

import (
	"math"

	"github.com/R3E-Network/worldcore/internal/interp"
)

func unaryMath(name string, f func(float64) float64) interp.HandlerFunc {
	return func(args []any, ctx *interp.Context) (any, error) {
		n, err := argNumber(args, 0, name)
		if err != nil {
			return nil, err
		}
		return f(n), nil
	}
}

func registerMath(reg *interp.Registry) {
	unary := map[string]func(float64) float64{
		"abs": math.Abs, "ceil": math.Ceil, "floor": math.Floor, "round": math.Round,
		"trunc": math.Trunc, "sqrt": math.Sqrt, "exp": math.Exp,
		"log": math.Log, "log2": math.Log2, "log10": math.Log10,
		"sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
		"asin": math.Asin, "acos": math.Acos, "atan": math.Atan,
	}
	for name, f := range unary {
		opcode := "math." + name
		reg.Register(interp.HandlerRecord{
			Name: opcode, MinArity: 1, MaxArity: 1,
			Descriptor: interp.Descriptor{Label: name, Category: "math", Return: "number"},
			Handler:    unaryMath(opcode, f),
		})
	}

	reg.Register(interp.HandlerRecord{
		Name: "math.sign", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "sign", Category: "math", Return: "number"},
		Handler: unaryMath("math.sign", func(n float64) float64 {
			switch {
			case n > 0:
				return 1
			case n < 0:
				return -1
			default:
				return 0
			}
		}),
	})
	reg.Register(interp.HandlerRecord{
		Name: "math.min", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "minimum", Category: "math", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			best, err := argNumber(args, 0, "math.min")
			if err != nil {
				return nil, err
			}
			for i := 1; i < len(args); i++ {
				n, err := argNumber(args, i, "math.min")
				if err != nil {
					return nil, err
				}
				if n < best {
					best = n
				}
			}
			return best, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "math.max", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "maximum", Category: "math", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			best, err := argNumber(args, 0, "math.max")
			if err != nil {
				return nil, err
			}
			for i := 1; i < len(args); i++ {
				n, err := argNumber(args, i, "math.max")
				if err != nil {
					return nil, err
				}
				if n > best {
					best = n
				}
			}
			return best, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "math.clamp", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "clamp to range", Category: "math", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			n, err := argNumber(args, 0, "math.clamp")
			if err != nil {
				return nil, err
			}
			lo, err := argNumber(args, 1, "math.clamp")
			if err != nil {
				return nil, err
			}
			hi, err := argNumber(args, 2, "math.clamp")
			if err != nil {
				return nil, err
			}
			if n < lo {
				return lo, nil
			}
			if n > hi {
				return hi, nil
			}
			return n, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "math.pow", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "power", Category: "math", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			base, err := argNumber(args, 0, "math.pow")
			if err != nil {
				return nil, err
			}
			exp, err := argNumber(args, 1, "math.pow")
			if err != nil {
				return nil, err
			}
			return math.Pow(base, exp), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "math.atan2", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "two-argument arctangent", Category: "math", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			y, err := argNumber(args, 0, "math.atan2")
			if err != nil {
				return nil, err
			}
			x, err := argNumber(args, 1, "math.atan2")
			if err != nil {
				return nil, err
			}
			return math.Atan2(y, x), nil
		},
	})
}
