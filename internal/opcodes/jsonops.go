package opcodes

import (
	"encoding/json"

	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// toJSONValue converts a script value tree to something encoding/json can
// marshal directly, encoding entity/capability refs as the
// {"$entity": id} / {"$capability": id} convention (SPEC_FULL data model,
// Testable Property 4: values round-trip through JSON unchanged).
func toJSONValue(v any) any {
	switch vv := v.(type) {
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = toJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = toJSONValue(item)
		}
		return out
	case *value.EntityRef:
		return map[string]any{"$entity": float64(vv.ID)}
	case *value.CapabilityRef:
		return map[string]any{"$capability": vv.ID}
	default:
		return v
	}
}

// fromJSONValue reverses toJSONValue after a json.Unmarshal into `any`,
// restoring entity/capability ref markers to their script-visible types.
func fromJSONValue(v any) any {
	switch vv := v.(type) {
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = fromJSONValue(item)
		}
		return out
	case map[string]any:
		if id, ok := vv["$entity"]; ok && len(vv) == 1 {
			if n, ok := value.AsNumber(id); ok {
				return &value.EntityRef{ID: int64(n)}
			}
		}
		if id, ok := vv["$capability"]; ok && len(vv) == 1 {
			if s, ok := id.(string); ok {
				return &value.CapabilityRef{ID: s}
			}
		}
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = fromJSONValue(item)
		}
		return out
	default:
		return v
	}
}

func registerJSON(reg *interp.Registry) {
	reg.Register(interp.HandlerRecord{
		Name: "json.parse", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "parse JSON", Category: "json", Return: "value"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			s, err := argString(args, 0, "json.parse")
			if err != nil {
				return nil, err
			}
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, interp.WrapError(interp.KindType, err, "json.parse: invalid JSON")
			}
			return fromJSONValue(out), nil
		},
	})
	reg.Register(interp.HandlerRecord{
		Name: "json.stringify", MinArity: 1, MaxArity: 1,
		Descriptor: interp.Descriptor{Label: "serialize to JSON", Category: "json", Return: "string"},
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			buf, err := json.Marshal(toJSONValue(args[0]))
			if err != nil {
				return nil, interp.WrapError(interp.KindType, err, "json.stringify: unsupported value")
			}
			return string(buf), nil
		},
	})
}
