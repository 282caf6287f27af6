package opcodes

import (
	"math/rand"

	"github.com/R3E-Network/worldcore/internal/interp"
)

func registerRandom(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "random.number", MinArity: 0, MaxArity: 0,
		Descriptor: interp.Descriptor{Label: "random float in [0,1)", Category: "random", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return rand.Float64(), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "random.between", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "random integer in [lo,hi]", Category: "random", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			lo, err := argNumber(args, 0, "random.between")
			if err != nil {
				return nil, err
			}
			hi, err := argNumber(args, 1, "random.between")
			if err != nil {
				return nil, err
			}
			a, b := int64(lo), int64(hi)
			if b < a {
				a, b = b, a
			}
			return float64(a + rand.Int63n(b-a+1)), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "random.choice", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "random element from list", Category: "random", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			l, err := argList(args, 0, "random.choice")
			if err != nil {
				return nil, err
			}
			if len(l) == 0 {
				return nil, nil
			}
			return l[rand.Intn(len(l))], nil
		},
	})
}
