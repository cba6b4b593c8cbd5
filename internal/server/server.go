package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/skyrace/internal/core/events/bus"
	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/core/protocol"
	"github.com/zeusync/skyrace/internal/race"
	"github.com/zeusync/skyrace/internal/terrain"
)

// TileSource is the read side of the terrain manager used for join
// snapshots.
type TileSource interface {
	Tiles() []*terrain.Tile
	Params() terrain.Params
	ViewMode() terrain.ViewMode
}

// Server hosts one race session over websocket. A single loop goroutine
// ticks the session and applies client commands; connections talk to it
// through channels only.
type Server struct {
	config  Config
	hub     *Hub
	session *race.Session
	tiles   TileSource
	events  bus.EventBus
	auth    Authenticator
	logger  log.Log

	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	sub        bus.Subscription

	joins  chan *client
	leaves chan *client
	inputs chan input

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex

	clientCount atomic.Int64
	running     atomic.Bool
	closed      atomic.Bool
}

// NewServer creates a new race server
func NewServer(config Config, hub *Hub, session *race.Session, tiles TileSource, events bus.EventBus, logger log.Log) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch {
	case hub == nil:
		return nil, fmt.Errorf("%w: hub", race.ErrMissingDependency)
	case session == nil:
		return nil, fmt.Errorf("%w: session", race.ErrMissingDependency)
	case tiles == nil:
		return nil, fmt.Errorf("%w: tile source", race.ErrMissingDependency)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		config:  config,
		hub:     hub,
		session: session,
		tiles:   tiles,
		events:  events,
		auth:    TokenAuth{Token: config.Token},
		logger:  logger.With(log.Component("server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		joins:  make(chan *client),
		leaves: make(chan *client),
		inputs: make(chan input, config.SendBuffer),
	}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Duration("tick_rate", config.TickRate),
		log.Int("max_clients", config.MaxClients),
		log.String("auth", s.auth.Name()))

	return s, nil
}

// Handler returns the HTTP routes: /ws for race clients and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start binds the listener and runs the loop and the HTTP server until ctx
// is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("%w: %v", ErrListenerFailed, err)
	}

	if s.events != nil {
		sub, err := s.events.Subscribe(bus.Wildcard, s.hub.Forward)
		if err != nil {
			_ = ln.Close()
			s.running.Store(false)
			return err
		}
		s.sub = sub
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)

	s.mu.Lock()
	s.listener = ln
	s.ctx = gctx
	s.cancel = cancel
	s.group = group
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	group.Go(func() error {
		return s.loop(gctx)
	})
	group.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	s.logger.Info("Server started", log.String("addr", ln.Addr().String()))
	return nil
}

// Wait blocks until the server goroutines exit.
func (s *Server) Wait() error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return ErrServerNotRunning
	}
	return group.Wait()
}

// Stop shuts the server down and waits for its goroutines. A stopped
// server cannot be restarted.
func (s *Server) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !s.running.Load() {
		return nil
	}

	s.logger.Info("Stopping server")
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()

	err := s.Wait()
	if s.sub != nil {
		_ = s.events.Unsubscribe(s.sub)
	}
	s.running.Store(false)
	s.logger.Info("Server stopped")
	return err
}

// Addr reports the bound address, useful with port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.config.ListenAddr
	}
	return s.listener.Addr().String()
}

func (s *Server) IsRunning() bool {
	return s.running.Load() && !s.closed.Load()
}

func (s *Server) ClientCount() int {
	return int(s.clientCount.Load())
}

func (s *Server) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickRate)
	defer func() {
		ticker.Stop()
		s.hub.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-s.joins:
			s.hub.add(c)
			s.hub.welcome(c, s.hello(), s.tiles.Tiles())
		case c := <-s.leaves:
			s.hub.remove(c.id, "disconnected")
		case in := <-s.inputs:
			s.apply(in)
		case <-ticker.C:
			s.session.Tick()
		}
	}
}

func (s *Server) hello() protocol.Hello {
	return protocol.Hello{
		SessionID: s.session.ID(),
		State:     s.session.State().String(),
		Paused:    s.session.Paused(),
		ViewMode:  s.tiles.ViewMode().String(),
		TileSize:  s.tiles.Params().TileSize,
		Course:    s.session.Course(),
	}
}

// apply runs one client command against the session.
func (s *Server) apply(in input) {
	if in.err != nil {
		s.hub.reject(in.client, in.err)
		return
	}

	cmd := in.cmd
	switch cmd.Type {
	case protocol.CommandPress:
		c, _ := race.ParseControl(cmd.Control)
		s.session.Press(c)
	case protocol.CommandRelease:
		c, _ := race.ParseControl(cmd.Control)
		s.session.Release(c)
	case protocol.CommandLook:
		s.session.Look(cmd.DX, cmd.DY)
	case protocol.CommandLock:
		s.session.SetPointerLock(cmd.Locked)
	case protocol.CommandReset:
		s.session.StartOrReset()
	case protocol.CommandView:
		mode, _ := terrain.ParseViewMode(cmd.Mode)
		s.session.SetViewMode(mode)
	case protocol.CommandPause:
		s.session.TogglePause()
	}
	s.logger.Debug("Command applied", log.String("client_id", in.client.id), log.String("type", cmd.Type))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authenticate(r); err != nil {
		s.logger.Warn("Connection rejected",
			log.String("remote_addr", r.RemoteAddr),
			log.String("auth", s.auth.Name()),
			log.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if n := s.clientCount.Add(1); n > int64(s.config.MaxClients) {
		s.clientCount.Add(-1)
		s.logger.Warn("Connection rejected", log.String("remote_addr", r.RemoteAddr), log.Int64("clients", n-1))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.clientCount.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		_ = conn.Close()
		return
	}

	id := uuid.NewString()
	connCtx := log.ContextWith(r.Context(),
		log.String("client_id", id),
		log.String("remote_addr", r.RemoteAddr))
	c := newClient(id, conn, s.config.SendBuffer, s.logger.WithContext(connCtx))
	select {
	case s.joins <- c:
	case <-ctx.Done():
		_ = conn.Close()
		return
	}

	go c.writePump(s.config)
	c.readPump(ctx, s.config, s.inputs, s.leaves)
}

type health struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	if !s.IsRunning() {
		status, code = "stopped", http.StatusServiceUnavailable
	}
	data, err := protocol.JSONCodec{}.Encode(health{Status: status, Clients: s.ClientCount()})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
