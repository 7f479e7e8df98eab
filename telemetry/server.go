// Package telemetry serves loop statistics and accepts run-time controls
// over a websocket, next to a Prometheus /metrics endpoint. It never sees
// simulation state.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clothsim/simulation"
)

// StatsSource is read by the broadcast loop. *simulation.Driver implements it.
type StatsSource interface {
	Stats() simulation.Stats
}

// Message is sent to clients.
type Message struct {
	Type     string            `json:"type"`
	ClientID string            `json:"clientId,omitempty"`
	Stats    *simulation.Stats `json:"stats,omitempty"`
}

// Control is received from clients. Absent fields are left unchanged.
type Control struct {
	Paused           *bool `json:"paused,omitempty"`
	MaxStepsPerFrame *int  `json:"maxStepsPerFrame,omitempty"`
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	return c.conn.WriteJSON(v)
}

// Server is the telemetry endpoint.
type Server struct {
	addr     string
	interval time.Duration
	stats    StatsSource
	controls *simulation.Controls
	gatherer prometheus.Gatherer
	log      *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// Options configure a Server.
type Options struct {
	Addr     string
	Interval time.Duration
	Stats    StatsSource
	Controls *simulation.Controls
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func NewServer(opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		addr:     opts.Addr,
		interval: opts.Interval,
		stats:    opts.Stats,
		controls: opts.Controls,
		gatherer: opts.Gatherer,
		log:      opts.Logger,
		upgrader: websocket.Upgrader{
			// Local development tool; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*client),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	s.log.Info("telemetry listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.broadcastLoop(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.closeClients()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{id: uuid.New(), conn: conn}
	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		s.log.Debug("telemetry client left", zap.Stringer("client", c.id))
	}()
	s.log.Debug("telemetry client joined", zap.Stringer("client", c.id))

	if err := c.send(Message{Type: "hello", ClientID: c.id.String()}); err != nil {
		return
	}

	for {
		var ctl Control
		if err := conn.ReadJSON(&ctl); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("telemetry read failed", zap.Stringer("client", c.id), zap.Error(err))
			}
			return
		}
		s.apply(c.id, ctl)
	}
}

func (s *Server) apply(id uuid.UUID, ctl Control) {
	if s.controls == nil {
		return
	}
	if ctl.Paused != nil {
		s.controls.Paused.Store(*ctl.Paused)
		s.log.Info("pause requested", zap.Stringer("client", id), zap.Bool("paused", *ctl.Paused))
	}
	if ctl.MaxStepsPerFrame != nil && *ctl.MaxStepsPerFrame > 0 {
		s.controls.MaxSteps.Store(int64(*ctl.MaxStepsPerFrame))
		s.log.Info("max steps requested", zap.Stringer("client", id), zap.Int("maxStepsPerFrame", *ctl.MaxStepsPerFrame))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	if s.stats == nil {
		return
	}
	st := s.stats.Stats()
	msg := Message{Type: "stats", Stats: &st}

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.log.Debug("dropping telemetry client", zap.Stringer("client", c.id), zap.Error(err))
			c.conn.Close()
		}
	}
}

func (s *Server) closeClients() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.clients {
		conn.Close()
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
