package opcodes

import (
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

func registerMeta(reg *interp.Registry, env Env) {
	reg.Register(interp.HandlerRecord{
		Name: "arg", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "nth verb argument", Category: "meta", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			n, err := argNumber(args, 0, "arg")
			if err != nil {
				return nil, err
			}
			i := int(n)
			if i < 0 || i >= len(ctx.Args) {
				return nil, nil
			}
			return ctx.Args[i], nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "args", MinArity: 0, MaxArity: 0,
		Descriptor: interp.Descriptor{Label: "all verb arguments", Category: "meta", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return value.CloneList(ctx.Args), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "caller", MinArity: 0, MaxArity: 0,
		Descriptor: interp.Descriptor{Label: "calling entity", Category: "meta", Return: "entity"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return &value.EntityRef{ID: ctx.Caller}, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "this", MinArity: 0, MaxArity: 0,
		Descriptor: interp.Descriptor{Label: "verb-owning entity", Category: "meta", Return: "entity"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return &value.EntityRef{ID: ctx.This}, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "send", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "send outbound message", Category: "meta", Return: "null"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			channel, err := argString(args, 0, "send")
			if err != nil {
				return nil, err
			}
			if ctx.Send == nil {
				return nil, nil
			}
			if err := ctx.Send(ctx.Go, channel, args[1]); err != nil {
				return nil, interp.WrapError(interp.KindNotFound, err, "send: delivery failed")
			}
			return nil, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "log", MinArity: 1, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "structured log line", Category: "meta", Return: "null"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = stringify(a)
			}
			log := env.Log
			if log == nil {
				log = logrus.NewEntry(logrus.StandardLogger())
			}
			log.WithFields(logrus.Fields{"this": ctx.This, "caller": ctx.Caller}).Info(joinWithSpace(parts))
			return nil, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "warn", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "record a script warning", Category: "meta", Return: "null"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			msg, err := argString(args, 0, "warn")
			if err != nil {
				return nil, err
			}
			ctx.Warn(msg)
			return nil, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "typeof", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "runtime type name", Category: "meta", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return value.TypeName(args[0]), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "schedule", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "schedule a delayed verb call", Category: "meta", Return: "null"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			verbName, err := argString(args, 0, "schedule")
			if err != nil {
				return nil, err
			}
			callArgs, err := argList(args, 1, "schedule")
			if err != nil {
				return nil, err
			}
			delay, err := argNumber(args, 2, "schedule")
			if err != nil {
				return nil, err
			}
			if env.Scheduler == nil {
				return nil, interp.NewError(interp.KindNotFound, "schedule: no scheduler wired")
			}
			env.Scheduler.ScheduleVerb(ctx.This, verbName, value.CloneList(callArgs), int64(delay))
			return nil, nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "host.stats", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "host/process diagnostics", Category: "meta", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			if err := requireCapability(env, ctx, args, 0, 0, "sys.sudo", "host.stats"); err != nil {
				return nil, err
			}
			if env.Host == nil {
				return nil, interp.NewError(interp.KindNotFound, "host.stats: host diagnostics unavailable")
			}
			stats, err := env.Host.Snapshot()
			if err != nil {
				return nil, interp.WrapError(interp.KindNotFound, err, "host.stats: snapshot failed")
			}
			return stats, nil
		},
	})
}

func joinWithSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
