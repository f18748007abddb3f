// Package status serves a read-mostly HTTP view of a running runtime:
// health, loaded plugins, bus topics and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leeforge/xrcore/eventbus"
	"github.com/leeforge/xrcore/logging"
	"github.com/leeforge/xrcore/runtime"
	"github.com/leeforge/xrcore/utils"
)

// Source is what the server reports on. *runtime.Runtime implements it.
type Source interface {
	Plugins() []runtime.PluginInfo
	Bus() *eventbus.Bus
	Metrics() *prometheus.Registry
	Stopped() bool
	Stop()
}

// TopicsView is the /topics payload.
type TopicsView struct {
	Topics []eventbus.TopicInfo `json:"topics"`
	Stats  eventbus.Stats       `json:"stats"`
}

// Server is the status HTTP server.
type Server struct {
	addr   string
	src    Source
	logger logging.Logger
	router chi.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	served   chan error
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(addr string, src Source, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		addr:   addr,
		src:    src,
		logger: logger.Named("status"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(TimingMiddleware())
	r.Use(TraceIDMiddleware())
	r.Use(AccessLogMiddleware(s.logger))

	r.Get("/healthz", s.health)
	r.Get("/plugins", s.plugins)
	r.Get("/topics", s.topics)
	r.Post("/stop", s.stop)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.src.Metrics(), promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("status server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.served = make(chan error, 1)

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.served <- err
	}()

	s.logger.Info("status server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Strings("routes", utils.Routes(s.router)))
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, served := s.srv, s.served
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-served
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.src.Stopped() {
		writeError(w, r, http.StatusServiceUnavailable, "stopped")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) plugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.src.Plugins())
}

func (s *Server) topics(w http.ResponseWriter, r *http.Request) {
	bus := s.src.Bus()
	writeJSON(w, r, http.StatusOK, TopicsView{Topics: bus.Topics(), Stats: bus.Stats()})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if s.src.Stopped() {
		writeError(w, r, http.StatusConflict, "already stopped")
		return
	}
	s.logger.Info("stop requested", zap.String("trace_id", GetTraceID(r.Context())))
	go s.src.Stop()
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "stopping"})
}
