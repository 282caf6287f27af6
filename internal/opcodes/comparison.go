package opcodes

import (
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

func registerComparison(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "==", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "equal", Category: "comparison", Return: "bool"},
		Handler:    chainCompare("==", func(a, b any) bool { return value.Equal(a, b) }),
	})
	reg.Register(interp.HandlerRecord{
		Name: "!=", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "not equal", Category: "comparison", Return: "bool"},
		Handler:    chainCompare("!=", func(a, b any) bool { return !value.Equal(a, b) }),
	})
	reg.Register(interp.HandlerRecord{
		Name: "<", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "less than", Category: "comparison", Return: "bool"},
		Handler:    numericChain("<", func(a, b float64) bool { return a < b }),
	})
	reg.Register(interp.HandlerRecord{
		Name: "<=", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "less or equal", Category: "comparison", Return: "bool"},
		Handler:    numericChain("<=", func(a, b float64) bool { return a <= b }),
	})
	reg.Register(interp.HandlerRecord{
		Name: ">", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "greater than", Category: "comparison", Return: "bool"},
		Handler:    numericChain(">", func(a, b float64) bool { return a > b }),
	})
	reg.Register(interp.HandlerRecord{
		Name: ">=", MinArity: 2, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "greater or equal", Category: "comparison", Return: "bool"},
		Handler:    numericChain(">=", func(a, b float64) bool { return a >= b }),
	})
}

func chainCompare(name string, cmp func(a, b any) bool) interp.HandlerFunc {
	return func(args []any, ctx *interp.Context) (any, error) {
		for i := 0; i < len(args)-1; i++ {
			if !cmp(args[i], args[i+1]) {
				return false, nil
			}
		}
		return true, nil
	}
}

func numericChain(name string, cmp func(a, b float64) bool) interp.HandlerFunc {
	return func(args []any, ctx *interp.Context) (any, error) {
		nums := make([]float64, len(args))
		for i := range args {
			n, err := argNumber(args, i, name)
			if err != nil {
				return nil, err
			}
			nums[i] = n
		}
		for i := 0; i < len(nums)-1; i++ {
			if !cmp(nums[i], nums[i+1]) {
				return false, nil
			}
		}
		return true, nil
	}
}
