package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/fiber/pkg/commitlog"
	"github.com/vango-dev/fiber/pkg/render"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/vdom"
)

// Server exposes a renderer's host tree and commit stream over HTTP.
type Server struct {
	config    *Config
	loop      *scheduler.Loop
	container *vdom.VNode
	commits   *commitlog.Log
	hub       *hub
	router    chi.Router
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	unsubscribe func()
	httpServer  *http.Server
}

// New creates a Server. container must belong to a host driven by loop;
// the server only reads it from the loop goroutine.
func New(config *Config, loop *scheduler.Loop, container *vdom.VNode, commits *commitlog.Log, logger *slog.Logger) *Server {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &Server{
		config:    config,
		loop:      loop,
		container: container,
		commits:   commits,
		hub:       newHub(config, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}
	s.unsubscribe = commits.Subscribe(s.hub.broadcast)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/tree", s.handleTree)
	r.Get("/commits", s.handleCommits)
	r.Get("/ws", s.handleWebSocket)
	if s.config.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the server's router for mounting elsewhere.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// onLoop runs fn on the scheduler loop and waits for it to finish.
func (s *Server) onLoop(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := s.loop.Post(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type health struct {
	Status      string `json:"status"`
	Commits     int    `json:"commits"`
	Clients     int    `json:"clients"`
	Nodes       int    `json:"nodes"`
	Interactive int    `json:"interactive"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	h := health{Status: "ok", Commits: s.commits.Len(), Clients: s.hub.len()}
	code := http.StatusOK
	err := s.onLoop(ctx, func() {
		h.Nodes = len(vdom.CollectHIDs(s.container))
		h.Interactive = vdom.CountInteractive(s.container)
	})
	if err != nil {
		h.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	hid := r.URL.Query().Get("hid")
	var snapshot *vdom.VNode
	err := s.onLoop(r.Context(), func() {
		node := s.container
		if hid != "" {
			node = vdom.FindByHID(node, hid)
		}
		snapshot = node.Clone()
	})
	if err != nil {
		http.Error(w, "renderer unavailable", http.StatusServiceUnavailable)
		return
	}
	if snapshot == nil {
		http.Error(w, "no node with hid "+hid, http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.NewRenderer(render.RendererConfig{Pretty: true}).RenderToWriter(w, snapshot); err != nil {
			s.logger.Error("render tree", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleCommits writes the retained records as JSON lines. ?since=N skips
// records with Seq <= N.
func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	records := s.commits.Records()
	i := 0
	for i < len(records) && records[i].Seq <= since {
		i++
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := commitlog.Encode(w, records[i:]); err != nil {
		s.logger.Error("write commits", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := s.hub.register(conn)
	s.logger.Debug("websocket connected", "remote", conn.RemoteAddr().String())
	go s.hub.writeLoop(c)
	s.hub.readLoop(c)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Run serves on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the commit subscription, disconnects websocket clients
// and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.unsubscribe()
	s.hub.closeAll()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
