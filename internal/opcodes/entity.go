package opcodes

import (
	"github.com/R3E-Network/worldcore/internal/capability"
	"github.com/R3E-Network/worldcore/internal/domain/capdom"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// capToValue renders a stored capability as the script-visible handle. Only
// the id/type/holder travel into script space — the params stay
// server-side, re-checked on every validate() rather than trusted from a
// script-held copy.
func capToValue(c capdom.Capability) *value.CapabilityRef {
	return &value.CapabilityRef{ID: c.ID, Type: c.Type, Holder: c.HolderID}
}

// entityToValue renders a stored entity as the script-visible object shape:
// core fields under reserved keys plus the instance's own properties,
// mirroring how property reads already surface through resolved lookup.
func entityToValue(e entity.Entity) map[string]any {
	out := map[string]any{
		"id":   &value.EntityRef{ID: e.ID},
		"kind": string(e.Kind),
	}
	if e.Prototype != nil {
		out["prototype"] = &value.EntityRef{ID: *e.Prototype}
	} else {
		out["prototype"] = nil
	}
	if e.Location != nil {
		out["location"] = &value.EntityRef{ID: *e.Location}
	} else {
		out["location"] = nil
	}
	if e.Owner != nil {
		out["owner"] = &value.EntityRef{ID: *e.Owner}
	} else {
		out["owner"] = nil
	}
	props := value.CloneObject(e.Properties)
	out["properties"] = props
	return out
}

// registerEntity wires the read-only entity/verb lookups and the
// capability-mediated privileged operations from spec.md §4.4.
func registerEntity(reg *interp.Registry, env Env) {
	reg.Register(interp.HandlerRecord{
		Name: "entity", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "read entity", Category: "entity", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 0, "entity")
			if err != nil {
				return nil, err
			}
			e, err := env.Repo.GetEntity(ctx.Go, target.ID)
			if err != nil {
				return nil, mapStorageError("entity", err)
			}
			return entityToValue(e), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "get_prototype", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "entity prototype", Category: "entity", Return: "entity"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 0, "get_prototype")
			if err != nil {
				return nil, err
			}
			e, err := env.Repo.GetEntity(ctx.Go, target.ID)
			if err != nil {
				return nil, mapStorageError("get_prototype", err)
			}
			if e.Prototype == nil {
				return nil, nil
			}
			return &value.EntityRef{ID: *e.Prototype}, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "get_property", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "resolved property read", Category: "entity", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 0, "get_property")
			if err != nil {
				return nil, err
			}
			key, err := argString(args, 1, "get_property")
			if err != nil {
				return nil, err
			}
			v, found, err := env.Repo.ResolveProperty(ctx.Go, target.ID, key)
			if err != nil {
				return nil, mapStorageError("get_property", err)
			}
			if !found {
				return nil, nil
			}
			return v, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "verbs", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "list verb names", Category: "entity", Return: "list"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 0, "verbs")
			if err != nil {
				return nil, err
			}
			vs, err := env.Repo.ListVerbs(ctx.Go, target.ID)
			if err != nil {
				return nil, mapStorageError("verbs", err)
			}
			out := make([]any, len(vs))
			for i, v := range vs {
				out[i] = v.Name
			}
			return out, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "move", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "move entity into a new container", Category: "entity", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			thing, err := argEntity(args, 1, "move")
			if err != nil {
				return nil, err
			}
			dest, err := argEntity(args, 2, "move")
			if err != nil {
				return nil, err
			}
			if err := requireCapability(env, ctx, args, 0, thing.ID, "entity.control", "move"); err != nil {
				return nil, err
			}
			e, err := env.Repo.Move(ctx.Go, thing.ID, dest.ID)
			if err != nil {
				return nil, mapStorageError("move", err)
			}
			return entityToValue(e), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "set_entity", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "write entity properties", Category: "entity", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 1, "set_entity")
			if err != nil {
				return nil, err
			}
			updates, err := argObject(args, 2, "set_entity")
			if err != nil {
				return nil, err
			}
			if err := requireCapability(env, ctx, args, 0, target.ID, "entity.control", "set_entity"); err != nil {
				return nil, err
			}
			e, err := env.Repo.UpdateEntity(ctx.Go, target.ID, updates)
			if err != nil {
				return nil, mapStorageError("set_entity", err)
			}
			return entityToValue(e), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "destroy", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "delete entity", Category: "entity", Return: "null"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 1, "destroy")
			if err != nil {
				return nil, err
			}
			if err := requireCapability(env, ctx, args, 0, target.ID, "entity.control", "destroy"); err != nil {
				return nil, err
			}
			if err := env.Repo.DeleteEntity(ctx.Go, target.ID); err != nil {
				return nil, mapStorageError("destroy", err)
			}
			return nil, nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "set_prototype", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "reparent prototype", Category: "entity", Return: "object"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 1, "set_prototype")
			if err != nil {
				return nil, err
			}
			if err := requireCapability(env, ctx, args, 0, target.ID, "entity.control", "set_prototype"); err != nil {
				return nil, err
			}
			var proto *int64
			if protoRef, ok := args[2].(*value.EntityRef); ok {
				id := protoRef.ID
				proto = &id
			} else if args[2] != nil {
				return nil, interp.NewError(interp.KindType, "set_prototype: third argument must be an entity or null")
			}
			e, err := env.Repo.SetPrototype(ctx.Go, target.ID, proto)
			if err != nil {
				return nil, mapStorageError("set_prototype", err)
			}
			return entityToValue(e), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "create", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "create entity", Category: "entity", Return: "entity"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			data, err := argObject(args, 1, "create")
			if err != nil {
				return nil, err
			}
			if err := requireCapability(env, ctx, args, 0, 0, "sys.create", "create"); err != nil {
				return nil, err
			}
			e := entity.Entity{Kind: entity.Kind(stringify(data["kind"])), Properties: map[string]any{}}
			if locRef, ok := data["location"].(*value.EntityRef); ok {
				id := locRef.ID
				e.Location = &id
			}
			if ownerRef, ok := data["owner"].(*value.EntityRef); ok {
				id := ownerRef.ID
				e.Owner = &id
			}
			if protoRef, ok := data["prototype"].(*value.EntityRef); ok {
				id := protoRef.ID
				e.Prototype = &id
			}
			if props, ok := value.AsObject(data["properties"]); ok {
				e.Properties = value.CloneObject(props)
			}
			created, err := env.Repo.CreateEntity(ctx.Go, e)
			if err != nil {
				return nil, mapStorageError("create", err)
			}
			return entityToValue(created), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "sudo", MinArity: 4, MaxArity: -1,
		Descriptor: interp.Descriptor{Label: "privileged verb invocation", Category: "entity", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			target, err := argEntity(args, 1, "sudo")
			if err != nil {
				return nil, err
			}
			verbName, err := argString(args, 2, "sudo")
			if err != nil {
				return nil, err
			}
			if err := requireCapability(env, ctx, args, 0, target.ID, "sys.sudo", "sudo"); err != nil {
				return nil, err
			}
			if ctx.Dispatch == nil {
				return nil, interp.NewError(interp.KindNotFound, "sudo: no verb dispatcher wired")
			}
			return ctx.Dispatch.CallVerb(ctx, target.ID, verbName, args[3:])
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "mint", MinArity: 3, MaxArity: 3,
		Descriptor: interp.Descriptor{Label: "mint capability", Category: "capability", Return: "capability"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			authority, err := argCapability(args, 0, "mint")
			if err != nil {
				return nil, err
			}
			capType, err := argString(args, 1, "mint")
			if err != nil {
				return nil, err
			}
			params, err := argObject(args, 2, "mint")
			if err != nil {
				return nil, err
			}
			c, err := env.Caps.Mint(ctx.Go, authority.ID, ctx.Caller, ctx.Caller, capType, value.CloneObject(params))
			if err != nil {
				return nil, mapCapabilityError("mint", err)
			}
			return capToValue(c), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "give_capability", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "transfer capability", Category: "capability", Return: "capability"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			cap, err := argCapability(args, 0, "give_capability")
			if err != nil {
				return nil, err
			}
			recipient, err := argEntity(args, 1, "give_capability")
			if err != nil {
				return nil, err
			}
			c, err := env.Caps.Give(ctx.Go, cap.ID, ctx.Caller, recipient.ID)
			if err != nil {
				return nil, mapCapabilityError("give_capability", err)
			}
			return capToValue(c), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "delegate", MinArity: 2, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "delegate narrowed capability", Category: "capability", Return: "capability"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			parent, err := argCapability(args, 0, "delegate")
			if err != nil {
				return nil, err
			}
			restrictions, err := argObject(args, 1, "delegate")
			if err != nil {
				return nil, err
			}
			c, err := env.Caps.Delegate(ctx.Go, parent.ID, ctx.Caller, value.CloneObject(restrictions))
			if err != nil {
				return nil, mapCapabilityError("delegate", err)
			}
			return capToValue(c), nil
		},
	})

	reg.Register(interp.HandlerRecord{
		Name: "get_capability", MinArity: 1, MaxArity: 2,
		Descriptor: interp.Descriptor{Label: "look up own capability", Category: "capability", Return: "capability"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			capType, err := argString(args, 0, "get_capability")
			if err != nil {
				return nil, err
			}
			filter := map[string]any{}
			if len(args) == 2 {
				filter, err = argObject(args, 1, "get_capability")
				if err != nil {
					return nil, err
				}
			}
			c, ok, err := env.Caps.Lookup(ctx.Go, ctx.Caller, capType, filter)
			if err != nil {
				return nil, mapCapabilityError("get_capability", err)
			}
			if !ok {
				return nil, nil
			}
			return capToValue(c), nil
		},
	})
}

// requireCapability pulls the presented capability out of args[capIndex]
// and validates it against requiredOp before a privileged opcode proceeds,
// failing PermissionDenied on any mismatch (spec.md §4.4).
func requireCapability(env Env, ctx *interp.Context, args []any, capIndex int, targetID int64, requiredOp, opcode string) error {
	cap, err := argCapability(args, capIndex, opcode)
	if err != nil {
		return err
	}
	if _, err := env.Caps.Validate(ctx.Go, cap.ID, ctx.Caller, targetID, requiredOp); err != nil {
		return interp.WrapError(interp.KindPermissionDenied, err, "%s: capability %s does not authorize this operation", opcode, cap.ID)
	}
	return nil
}

func mapStorageError(opcode string, err error) error {
	if se, ok := interp.AsScriptError(err); ok {
		return se
	}
	return interp.WrapError(interp.KindNotFound, err, "%s: %v", opcode, err)
}

func mapCapabilityError(opcode string, err error) error {
	if err == capability.ErrPermissionDenied {
		return interp.NewError(interp.KindPermissionDenied, "%s: permission denied", opcode)
	}
	return interp.WrapError(interp.KindNotFound, err, "%s: %v", opcode, err)
}
