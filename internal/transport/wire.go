// Package transport is the External Interfaces component of spec.md §6: a
// gorilla/websocket connection per player exchanging length-delimited JSON
// objects, a gorilla/mux router for the handshake and ops surface, and a
// go-redis-backed subscription through which a notification published on a
// room or entity channel reaches every connection watching it. Connections
// only subscribe; nothing in this package or the dispatcher publishes.
//
// Grounded on the teacher's applications/httpapi (plain-mux routing) and
// infrastructure/middleware (metrics/auth middleware wrapping), adapted
// from request/response HTTP handlers to a persistent per-connection
// session driven by dispatcher.Session.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// Request is the client→server wire shape (spec.md §6): a call expecting a
// matching Response.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// Notification is the either-direction, no-response wire shape.
type Notification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// wireError is the error shape nested in a failing Response.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the server→client reply to a Request.
type Response struct {
	ID     int64      `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *wireError `json:"error,omitempty"`
}

// Notification method names recognized server→client (spec.md §6).
const (
	NotifyMessage   = "message"
	NotifyRoom      = "room"
	NotifyInventory = "inventory"
	NotifyItem      = "item"
	NotifyUpdate    = "update"
	NotifyPlayerID  = "player_id"
)

// errorCode maps an interp.Kind to a small stable wire error code. Clients
// branch on code, not on the message text.
func errorCode(kind interp.Kind) int {
	switch kind {
	case interp.KindNotFound:
		return 404
	case interp.KindPermissionDenied:
		return 403
	case interp.KindGasExhausted:
		return 429
	case interp.KindType:
		return 400
	case interp.KindArity:
		return 400
	default:
		return 500
	}
}

// responseFromResult converts a dispatcher.Response into the wire Response
// carrying the request id, plus any warnings notification that should be
// pushed alongside it.
func responseFromResult(id int64, resp dispatcher.Response) (Response, *Notification) {
	switch resp.Kind {
	case dispatcher.ResponseSuccess:
		return Response{ID: id, Result: toWire(resp.Value)}, nil
	case dispatcher.ResponseWarnings:
		return Response{ID: id, Result: toWire(resp.Value)}, &Notification{Method: NotifyUpdate, Params: map[string]any{"warnings": resp.Warnings}}
	default:
		code := errorCode(resp.ErrKind)
		return Response{ID: id, Error: &wireError{Code: code, Message: resp.Error}}, nil
	}
}

// toWire converts a script value into a JSON-marshalable shape. Most values
// (nil, bool, float64, string, []any, map[string]any) already round-trip
// through encoding/json directly; the three pointer-typed script values
// need an explicit tagged-object encoding since client code has no Go types
// to unmarshal into.
func toWire(v any) any {
	switch vv := v.(type) {
	case *value.EntityRef:
		if vv == nil {
			return nil
		}
		return map[string]any{"$entity": vv.ID}
	case *value.CapabilityRef:
		if vv == nil {
			return nil
		}
		return map[string]any{"$capability": vv.ID, "type": vv.Type, "holder": vv.Holder}
	case *value.Lambda:
		if vv == nil {
			return nil
		}
		return map[string]any{"$lambda": true, "params": vv.Params}
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = toWire(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = toWire(item)
		}
		return out
	default:
		return vv
	}
}

// decodeFrame unmarshals one inbound websocket text frame. A frame that
// decodes and carries a method is a Request (its id is not checked); anything
// else is rejected — the
// client never sends bare Notifications in this protocol (spec.md §6 lists
// Notification as either-direction but only the server ever pushes one).
func decodeFrame(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("decode frame: %w", err)
	}
	if req.Method == "" {
		return Request{}, fmt.Errorf("decode frame: missing method")
	}
	return req, nil
}
