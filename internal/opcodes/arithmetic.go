package opcodes

import (
	"math"

	"github.com/R3E-Network/worldcore/internal/interp"
)

func registerArithmetic(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "+", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "add", Category: "arithmetic", Return: "number"},
		Handler:    arithFold("+", func(acc, n float64) float64 { return acc + n }),
	})
	reg.Register(interp.HandlerRecord{
		Name: "-", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "subtract", Category: "arithmetic", Return: "number"},
		Handler:    arithFold("-", func(acc, n float64) float64 { return acc - n }),
	})
	reg.Register(interp.HandlerRecord{
		Name: "*", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "multiply", Category: "arithmetic", Return: "number"},
		Handler:    arithFold("*", func(acc, n float64) float64 { return acc * n }),
	})
	reg.Register(interp.HandlerRecord{
		Name: "/", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "divide", Category: "arithmetic", Return: "number"},
		Handler: arithFoldErr("/", func(acc, n float64) (float64, error) {
			if n == 0 {
				return 0, interp.NewError(interp.KindType, "/: division by zero")
			}
			return acc / n, nil
		}),
	})
	reg.Register(interp.HandlerRecord{
		Name: "%", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "modulo", Category: "arithmetic", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			a, err := argNumber(args, 0, "%")
			if err != nil {
				return nil, err
			}
			b, err := argNumber(args, 1, "%")
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return nil, interp.NewError(interp.KindType, "%%: division by zero")
			}
			return math.Mod(a, b), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "^", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "power", Category: "arithmetic", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			// Right-associative power tower: a^b^c = a^(b^c).
			nums := make([]float64, len(args))
			for i := range args {
				n, err := argNumber(args, i, "^")
				if err != nil {
					return nil, err
				}
				nums[i] = n
			}
			result := nums[len(nums)-1]
			for i := len(nums) - 2; i >= 0; i-- {
				result = math.Pow(nums[i], result)
			}
			return result, nil
		},
	})
}

func arithFold(name string, op func(acc, n float64) float64) interp.HandlerFunc {
	return func(args []any, ctx *interp.Context) (any, error) {
		acc, err := argNumber(args, 0, name)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(args); i++ {
			n, err := argNumber(args, i, name)
			if err != nil {
				return nil, err
			}
			acc = op(acc, n)
		}
		return acc, nil
	}
}

func arithFoldErr(name string, op func(acc, n float64) (float64, error)) interp.HandlerFunc {
	return func(args []any, ctx *interp.Context) (any, error) {
		acc, err := argNumber(args, 0, name)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(args); i++ {
			n, err := argNumber(args, i, name)
			if err != nil {
				return nil, err
			}
			acc, err = op(acc, n)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}
