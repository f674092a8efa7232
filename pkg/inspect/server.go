package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// ChangeEvent is one node change streamed to /watch clients.
type ChangeEvent struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Level  int    `json:"level"`
	Result string `json:"result"`
	Time   int64  `json:"ts"`
}

// nodeJSON is one node in the /graph snapshot.
type nodeJSON struct {
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Level    int      `json:"level"`
	Result   string   `json:"result"`
	Children []uint64 `json:"children"`
}

// Option configures the inspection server.
type Option func(*Server)

// WithInspectLogger sets the server's logger. Defaults to slog.Default().
func WithInspectLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler replaces the /metrics handler. Defaults to
// promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithSendBuffer sets the per-client event buffer. A client that cannot
// keep up is disconnected. Defaults to 64.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// Server serves the inspection routes for one registry.
type Server struct {
	registry *fluxion.Registry
	logger   *slog.Logger

	metricsHandler http.Handler
	sendBuffer     int

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	router chi.Router
}

type client struct {
	conn *websocket.Conn
	send chan ChangeEvent
}

// New creates an inspection server over the given registry.
func New(registry *fluxion.Registry, opts ...Option) *Server {
	s := &Server{
		registry:       registry,
		logger:         slog.Default(),
		metricsHandler: promhttp.Handler(),
		sendBuffer:     64,
		clients:        make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/graph", s.handleGraph)
	r.Get("/watch", s.handleWatch)
	r.Handle("/metrics", s.metricsHandler)
	s.router = r

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the inspection routes on addr. It blocks until the
// listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("inspection server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Hooks returns scheduler hooks that feed the /watch stream: every node
// whose change propagated this round is broadcast to connected clients.
func (s *Server) Hooks() fluxion.RoundHooks {
	return fluxion.RoundHooks{
		NodeChanged: func(node fluxion.Node) {
			ev := ChangeEvent{
				ID:    node.ID(),
				Name:  node.Name(),
				Level: node.Level(),
				Time:  time.Now().UnixMilli(),
			}
			if sig, ok := node.(fluxion.Signal); ok {
				ev.Kind = sig.Kind()
				ev.Result = sig.ResultString()
			}
			s.broadcast(ev)
		},
	}
}

// handleGraph writes a JSON snapshot of every registered node.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	nodes := make([]nodeJSON, 0, s.registry.Len())
	s.registry.Walk(func(n fluxion.Signal) {
		children := n.Children()
		ids := make([]uint64, len(children))
		for i, c := range children {
			ids[i] = c.ID()
		}
		nodes = append(nodes, nodeJSON{
			ID:       n.ID(),
			Name:     n.Name(),
			Kind:     n.Kind(),
			Level:    n.Level(),
			Result:   n.ResultString(),
			Children: ids,
		})
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(nodes); err != nil {
		s.logger.Error("graph encode error", "error", err)
	}
}

// handleWatch upgrades to a WebSocket and streams change events until the
// client disconnects or falls behind.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("watch upgrade error", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan ChangeEvent, s.sendBuffer),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards client messages and detects disconnects.
func (s *Server) readLoop(c *client) {
	defer s.dropClient(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("watch read error", "error", err)
			}
			return
		}
	}
}

// writeLoop pushes queued events to the client.
func (s *Server) writeLoop(c *client) {
	defer s.dropClient(c)

	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(ev); err != nil {
			s.logger.Error("watch write error", "error", err)
			return
		}
	}
}

// broadcast queues ev for every connected client, dropping clients whose
// buffer is full. The non-blocking sends happen under s.mu, the same lock
// dropClient closes send channels under, so a send can never race a
// concurrent disconnect's close.
func (s *Server) broadcast(ev ChangeEvent) {
	var slow []*client

	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.Unlock()

	for _, c := range slow {
		s.logger.Warn("watch client too slow, dropping")
		s.dropClient(c)
	}
}

// dropClient removes c from the client set and closes its send channel in
// one critical section. Membership-guarded, so the read loop, the write
// loop, and a slow-client drop can all race here safely.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}
}
