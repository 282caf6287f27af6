package transport

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

func testRegistry() *interp.Registry {
	reg := interp.NewRegistry()
	reg.Register(interp.HandlerRecord{
		Name: "+", MinArity: 2, MaxArity: 2,
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			return args[0].(float64) + args[1].(float64), nil
		},
	})
	return reg
}

func startTestServer(t *testing.T) (*httptest.Server, int64) {
	t.Helper()
	repo := storage.NewMemory()
	reg := testRegistry()
	runner := dispatcher.NewRunner(repo, reg)

	ctx := context.Background()
	player, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindActor})
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	if _, err := repo.AddVerb(ctx, verbdom.Verb{EntityID: player.ID, Name: "add", Code: []any{"+", 1.0, 2.0}}); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	srv := NewServer(Config{Runner: runner, Repo: repo})
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)
	return ts, player.ID
}

func dial(t *testing.T, ts *httptest.Server, playerID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connect?player=" + strconv.FormatInt(playerID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectSendsPlayerIDHandshake(t *testing.T) {
	ts, playerID := startTestServer(t)
	conn := dial(t, ts, playerID)

	var note Notification
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&note); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if note.Method != NotifyPlayerID {
		t.Fatalf("expected player_id notification, got %+v", note)
	}
}

func TestExecuteRoundTrip(t *testing.T) {
	ts, playerID := startTestServer(t)
	conn := dial(t, ts, playerID)

	var handshake Notification
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&handshake); err != nil {
		t.Fatalf("read handshake: %v", err)
	}

	req := Request{ID: 1, Method: dispatcher.MethodExecute, Params: []any{"add"}}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var resp Response
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.ID != 1 || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Result != 3.0 {
		t.Fatalf("expected result 3, got %v", resp.Result)
	}
}

func TestConnectRejectsMissingIdentity(t *testing.T) {
	ts, _ := startTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connect"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected the handshake to be rejected without a player or token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 Unauthorized, got %+v", resp)
	}
}
