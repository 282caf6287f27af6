package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	core "github.com/R3E-Network/worldcore/internal/core/service"
	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

// Server is the lifecycle-managed HTTP/WS component: a gorilla/mux router
// serving the WS upgrade endpoint and a small ops surface, grounded on the
// teacher's httpapi service (auth middleware, CORS, Prometheus
// instrumentation wrapping) and infrastructure/service.Runner's
// graceful-shutdown shape.
type Server struct {
	Router *mux.Router

	runner *dispatcher.Runner
	repo   storage.Store
	issuer *TokenIssuer
	hub    *Hub
	log    *logrus.Entry
	gas    int64

	upgrader websocket.Upgrader

	httpSrv *http.Server
	addr    string

	descriptors func() []core.Descriptor
}

// Config bundles Server construction parameters.
type Config struct {
	Addr        string
	Runner      *dispatcher.Runner
	Repo        storage.Store
	Issuer      *TokenIssuer
	Hub         *Hub
	Log         *logrus.Entry
	Gas         int64
	Descriptors func() []core.Descriptor
}

// NewServer builds a Server and wires its routes.
func NewServer(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	gas := cfg.Gas
	if gas <= 0 {
		gas = interp.DefaultGas
	}
	s := &Server{
		runner:      cfg.Runner,
		repo:        cfg.Repo,
		issuer:      cfg.Issuer,
		hub:         cfg.Hub,
		log:         log,
		gas:         gas,
		addr:        cfg.Addr,
		descriptors: cfg.Descriptors,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/system/status", s.handleStatus).Methods(http.MethodGet)
	router.Handle("/metrics", MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/connect", s.handleConnect)
	s.Router = router
	return s
}

// Name identifies the transport server as a lifecycle-managed component.
func (s *Server) Name() string { return "transport" }

// Descriptor implements system.DescriptorProvider.
func (s *Server) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.Name(), Layer: core.LayerTransport, Capabilities: []string{"websocket", "http"}}
}

// Start begins serving HTTP.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.Router}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("transport server stopped unexpectedly")
		}
	}()
	s.log.WithField("addr", s.addr).Info("transport server listening")
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.hub != nil {
		if err := s.hub.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var descriptors []core.Descriptor
	if s.descriptors != nil {
		descriptors = s.descriptors()
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"components": descriptors})
}

// handleConnect upgrades to a websocket and resumes or establishes a player
// session. A "token" query parameter resumes an existing identity; a
// "player" query parameter (numeric entity id) establishes a fresh session
// for hosts that mediate their own account login before reaching /connect —
// the wire protocol's player_id notification always confirms which entity
// id ended up bound, regardless of which path was taken.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	playerID, err := s.resolvePlayer(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := newConnection(s, conn, playerID)
	c.run(r.Context())
}

func (s *Server) resolvePlayer(r *http.Request) (int64, error) {
	if token := r.URL.Query().Get("token"); token != "" && s.issuer != nil {
		return s.issuer.Verify(token)
	}
	if raw := r.URL.Query().Get("player"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrInvalidToken
		}
		return id, nil
	}
	return 0, ErrInvalidToken
}

// connection owns one websocket's lifecycle: inbound request processing in
// arrival order (spec.md §5 ordering guarantee), outbound frames serialized
// through a mutex-guarded writer, and a Redis subscription fanning
// room/entity notifications in alongside the session's own ctx.send
// traffic.
type connection struct {
	srv    *Server
	conn   *websocket.Conn
	player int64

	writeMu sync.Mutex
	sub     *Subscription
}

func newConnection(srv *Server, conn *websocket.Conn, player int64) *connection {
	return &connection{srv: srv, conn: conn, player: player}
}

func (c *connection) run(ctx context.Context) {
	connectionsOpen.Inc()
	defer connectionsOpen.Dec()
	defer c.conn.Close()

	sess := dispatcher.NewSession(c.player, c.srv.runner, c.srv.repo, c.send, c.srv.log, c.srv.gas)

	c.sendNotification(Notification{Method: NotifyPlayerID, Params: map[string]any{"player": c.player}})

	if c.srv.hub != nil {
		c.subscribeToPlayer(ctx)
		defer func() {
			if c.sub != nil {
				c.sub.Close()
			}
		}()
		go c.pumpSubscription(ctx)
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := decodeFrame(raw)
		if err != nil {
			c.writeFrame(Response{Error: &wireError{Code: 400, Message: err.Error()}})
			continue
		}
		start := time.Now()
		resp := sess.Handle(ctx, dispatcher.Request{Method: req.Method, Params: req.Params})
		wireResp, note := responseFromResult(req.ID, resp)
		outcome := string(resp.Kind)
		requestsTotal.WithLabelValues(outcome).Inc()
		verbDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		c.writeFrame(wireResp)
		if note != nil {
			c.sendNotification(*note)
		}
		if req.Method == dispatcher.MethodExecute && c.srv.hub != nil {
			c.resubscribeIfMoved(ctx)
		}
	}
}

// send implements interp.SendFunc: a running verb reaches the connection
// only through this, never through the transport directly (spec.md §4.7).
func (c *connection) send(goCtx context.Context, channel string, payload any) error {
	return c.sendNotification(Notification{Method: channel, Params: toWire(payload)})
}

func (c *connection) sendNotification(note Notification) error {
	return c.writeFrame(note)
}

func (c *connection) writeFrame(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *connection) subscribeToPlayer(ctx context.Context) {
	channels := []string{EntityChannel(c.player)}
	if loc, ok := c.playerLocation(ctx); ok {
		channels = append(channels, RoomChannel(loc))
	}
	c.sub = c.srv.hub.Subscribe(ctx, channels...)
}

func (c *connection) playerLocation(ctx context.Context) (int64, bool) {
	e, err := c.srv.repo.GetEntity(ctx, c.player)
	if err != nil || e.Location == nil {
		return 0, false
	}
	return *e.Location, true
}

// resubscribeIfMoved keeps the room subscription in sync after an execute
// request that may have moved the player (e.g. a "go" verb).
func (c *connection) resubscribeIfMoved(ctx context.Context) {
	loc, ok := c.playerLocation(ctx)
	if !ok || c.sub == nil {
		return
	}
	want := RoomChannel(loc)
	_ = c.sub.Subscribe(ctx, want, EntityChannel(c.player))
}

func (c *connection) pumpSubscription(ctx context.Context) {
	if c.sub == nil {
		return
	}
	for msg := range c.sub.C {
		note, err := DecodeNotification(msg.Payload)
		if err != nil {
			c.srv.log.WithError(err).Warn("dropping malformed broadcast notification")
			continue
		}
		c.sendNotification(note)
	}
}
