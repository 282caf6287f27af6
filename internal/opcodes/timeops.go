package opcodes

import (
	"time"

	"github.com/R3E-Network/worldcore/internal/interp"
)

// applyOffset adds amount units to base for the spec.md §4.5 time.offset
// unit names — calendar-aware units (years/months) use
// time.AddDate, clock units use time.Duration arithmetic.
func applyOffset(base time.Time, amount float64, unit string) (time.Time, error) {
	n := int(amount)
	switch unit {
	case "years":
		return base.AddDate(n, 0, 0), nil
	case "months":
		return base.AddDate(0, n, 0), nil
	case "days":
		return base.AddDate(0, 0, n), nil
	case "hours":
		return base.Add(time.Duration(amount) * time.Hour), nil
	case "minutes":
		return base.Add(time.Duration(amount) * time.Minute), nil
	case "seconds":
		return base.Add(time.Duration(amount) * time.Second), nil
	default:
		return time.Time{}, interp.NewError(interp.KindType, "time.offset: unknown unit %q", unit)
	}
}

func registerTime(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "time.now", MinArity: 0, MaxArity: 0,
		Descriptor: interp.Descriptor{Label: "current time", Category: "time", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "time.format", MinArity: 1, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "format timestamp", Category: "time", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "time.format")
			if err != nil {
				return nil, err
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, interp.WrapError(interp.KindType, err, "time.format: invalid timestamp %q", s)
			}
			layout := time.RFC3339
			if len(args) == 2 {
				layout, err = argString(args, 1, "time.format")
				if err != nil {
					return nil, err
				}
			}
			return t.UTC().Format(layout), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "time.parse", MinArity: 1, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "parse timestamp", Category: "time", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "time.parse")
			if err != nil {
				return nil, err
			}
			layout := time.RFC3339
			if len(args) == 2 {
				layout, err = argString(args, 1, "time.parse")
				if err != nil {
					return nil, err
				}
			}
			t, err := time.Parse(layout, s)
			if err != nil {
				return nil, interp.WrapError(interp.KindType, err, "time.parse: cannot parse %q as %q", s, layout)
			}
			return t.UTC().Format(time.RFC3339), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "time.from_timestamp", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "timestamp to time", Category: "time", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			secs, err := argNumber(args, 0, "time.from_timestamp")
			if err != nil {
				return nil, err
			}
			return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "time.to_timestamp", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "time to unix timestamp", Category: "time", Return: "number"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "time.to_timestamp")
			if err != nil {
				return nil, err
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, interp.WrapError(interp.KindType, err, "time.to_timestamp: invalid timestamp %q", s)
			}
			return float64(t.Unix()), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "time.offset", MinArity: 2, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "offset time", Category: "time", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			amount, err := argNumber(args, 0, "time.offset")
			if err != nil {
				return nil, err
			}
			unit, err := argString(args, 1, "time.offset")
			if err != nil {
				return nil, err
			}
			base := time.Now().UTC()
			if len(args) == 3 {
				s, err := argString(args, 2, "time.offset")
				if err != nil {
					return nil, err
				}
				base, err = time.Parse(time.RFC3339, s)
				if err != nil {
					return nil, interp.WrapError(interp.KindType, err, "time.offset: invalid base timestamp %q", s)
				}
			}
			out, err := applyOffset(base, amount, unit)
			if err != nil {
				return nil, err
			}
			return out.UTC().Format(time.RFC3339), nil
		},
	})
}
