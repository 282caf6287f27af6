package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/worldcore/internal/domain/value"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

// Method names the dispatcher understands (spec.md §4.7).
const MethodExecute = "execute"

// ErrMethodNotFound is returned for any inbound method other than "execute".
var ErrMethodNotFound = fmt.Errorf("method not found")

// Request is one inbound transport message: (method, params).
type Request struct {
	Method string
	Params []any
}

// ResponseKind tags the three outcomes a session can push back for a single
// request (spec.md §4.7: warnings notification, error response, success).
type ResponseKind string

const (
	ResponseSuccess  ResponseKind = "success"
	ResponseError    ResponseKind = "error"
	ResponseWarnings ResponseKind = "warnings"
)

// Response is one outbound frame the Session produces for a Request.
type Response struct {
	Kind     ResponseKind
	Value    any
	Error    string
	ErrKind  interp.Kind
	Warnings []string
}

// Session holds per-connection state: the acting player entity and the
// outbound channel verbs reach through send(). It is the single place
// inbound transport messages become script invocations — scripts never see
// the transport, they only ever call ctx.Send (spec.md §4.7).
type Session struct {
	Player int64
	Send   interp.SendFunc

	runner *Runner
	repo   storage.Store
	log    *logrus.Entry
	gas    int64
}

// NewSession constructs a Session for player, dispatching verb calls
// through runner and pushing outbound messages via send.
func NewSession(player int64, runner *Runner, repo storage.Store, send interp.SendFunc, log *logrus.Entry, gas int64) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if gas <= 0 {
		gas = interp.DefaultGas
	}
	return &Session{Player: player, Send: send, runner: runner, repo: repo, log: log, gas: gas}
}

// Handle processes one inbound request and returns the Response to push
// back to the connection (spec.md §4.7).
func (s *Session) Handle(ctx context.Context, req Request) Response {
	if req.Method != MethodExecute {
		return Response{Kind: ResponseError, Error: ErrMethodNotFound.Error()}
	}
	if len(req.Params) == 0 {
		return Response{Kind: ResponseError, Error: "execute: missing verb name"}
	}
	verbName, ok := req.Params[0].(string)
	if !ok {
		return Response{Kind: ResponseError, Error: "execute: verb name must be a string"}
	}
	args := value.CloneList(req.Params[1:])

	verb, foundOn, err := s.resolve(ctx, verbName)
	if err != nil {
		return Response{Kind: ResponseError, Error: err.Error()}
	}
	if !verb.Permissions.Allows(s.Player, foundOn) {
		return Response{Kind: ResponseError, Error: fmt.Sprintf("verb %q is not invokable by this player", verbName), ErrKind: interp.KindPermissionDenied}
	}

	// MaxSubGas is deliberately left unset here: an interactive execute
	// request is a direct call from the acting player, not an externally
	// triggered event, so nested call()/sudo() opcodes inherit the verb's
	// full remaining gas rather than the DefaultSubGas cap (spec.md §9's
	// gas-across-calls note; the cap applies to the scheduler's
	// event-broadcast path — see Runner.InvokeFresh).
	warnings := []string{}
	execCtx := &interp.Context{
		Go:       ctx,
		Registry: s.runner.Registry,
		Caller:   s.Player,
		This:     foundOn,
		Args:     args,
		Gas:      s.gas,
		Warnings: &warnings,
		Scope:    interp.NewScope(),
		Send:     s.Send,
		Dispatch: s.runner,
	}

	v, err := interp.InvokeVerb(verb.Code, execCtx, s.runner.Registry)
	if err != nil {
		se, _ := interp.AsScriptError(err)
		resp := Response{Kind: ResponseError, Error: err.Error(), Warnings: warnings}
		if se != nil {
			resp.ErrKind = se.Kind
		}
		return resp
	}
	if len(warnings) > 0 {
		return Response{Kind: ResponseWarnings, Value: v, Warnings: warnings}
	}
	return Response{Kind: ResponseSuccess, Value: v}
}

// resolve searches, in order, (a) the player's own verbs, (b) the player's
// current location's verbs, (c) verbs on items in that location, (d) verbs
// on items in the player's inventory — the first match wins (spec.md §4.7).
func (s *Session) resolve(ctx context.Context, verbName string) (verbdom.Verb, int64, error) {
	if v, foundOn, err := s.repo.GetVerb(ctx, s.Player, verbName); err == nil {
		return v, foundOn, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return verbdom.Verb{}, 0, err
	}

	player, err := s.repo.GetEntity(ctx, s.Player)
	if err != nil {
		return verbdom.Verb{}, 0, fmt.Errorf("resolve %q: load player: %w", verbName, err)
	}

	if player.Location != nil {
		if v, foundOn, err := s.repo.GetVerb(ctx, *player.Location, verbName); err == nil {
			return v, foundOn, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return verbdom.Verb{}, 0, err
		}
		if v, foundOn, ok, err := s.searchContents(ctx, *player.Location, verbName); err != nil {
			return verbdom.Verb{}, 0, err
		} else if ok {
			return v, foundOn, nil
		}
	}

	if v, foundOn, ok, err := s.searchContents(ctx, s.Player, verbName); err != nil {
		return verbdom.Verb{}, 0, err
	} else if ok {
		return v, foundOn, nil
	}

	return verbdom.Verb{}, 0, interp.NewError(interp.KindNotFound, "no verb %q found for player %d", verbName, s.Player)
}

// searchContents looks for verbName on any entity directly contained in
// containerID, returning the first match.
func (s *Session) searchContents(ctx context.Context, containerID int64, verbName string) (verbdom.Verb, int64, bool, error) {
	items, err := s.repo.ListContents(ctx, containerID)
	if err != nil {
		return verbdom.Verb{}, 0, false, err
	}
	for _, item := range items {
		v, foundOn, err := s.repo.GetVerb(ctx, item.ID, verbName)
		if err == nil {
			return v, foundOn, true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return verbdom.Verb{}, 0, false, err
		}
	}
	return verbdom.Verb{}, 0, false, nil
}
