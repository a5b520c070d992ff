package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/randalmurphal/taskq/internal/agent"
	"github.com/randalmurphal/taskq/internal/db"
	"github.com/randalmurphal/taskq/internal/events"
	"github.com/randalmurphal/taskq/internal/queue"
)

// Server is the taskq API server.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *slog.Logger

	store    *db.Store
	queue    *queue.Service
	selector *agent.Selector

	// Event publisher for real-time updates
	publisher events.Publisher
	wsHandler *WSHandler
}

// Config holds server configuration.
type Config struct {
	Addr   string
	Logger *slog.Logger
	// Publisher receives queue events and feeds the websocket stream.
	// Defaults to a fresh MemoryPublisher.
	Publisher events.Publisher
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:   "127.0.0.1:8088",
		Logger: slog.Default(),
	}
}

// New creates a new API server over store.
func New(cfg *Config, store *db.Store) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pub := cfg.Publisher
	if pub == nil {
		pub = events.NewMemoryPublisher()
	}

	s := &Server{
		addr:      cfg.Addr,
		mux:       http.NewServeMux(),
		logger:    logger,
		store:     store,
		queue:     queue.NewService(store, queue.WithPublisher(pub), queue.WithLogger(logger)),
		selector:  agent.NewSelector(store, agent.WithPublisher(pub), agent.WithLogger(logger)),
		publisher: pub,
	}
	s.wsHandler = NewWSHandler(pub, logger)

	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			h(w, r)
		}
	}

	// Preflight for every API route
	s.mux.HandleFunc("OPTIONS /api/", cors(func(http.ResponseWriter, *http.Request) {}))

	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Projects and their queues
	s.mux.HandleFunc("GET /api/projects", cors(s.handleListProjects))
	s.mux.HandleFunc("GET /api/projects/{id}/queue", cors(s.handleGetQueue))
	s.mux.HandleFunc("POST /api/projects/{id}/queue/move", cors(s.handleMoveTask))
	s.mux.HandleFunc("POST /api/projects/{id}/queue/renumber", cors(s.handleRenumberQueue))

	// Approval gate
	s.mux.HandleFunc("POST /api/tasks/{id}/approval", cors(s.handleSetApproval))

	// Agent pull protocol
	s.mux.HandleFunc("POST /api/agent/next", cors(s.handleNextTask))

	// WebSocket for queue events
	s.mux.Handle("GET /api/ws", s.wsHandler)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Publisher returns the server's event publisher.
func (s *Server) Publisher() events.Publisher {
	return s.publisher
}

// StartContext serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.wsHandler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("API server shutdown", "error", err)
		}
	}()

	s.logger.Info("starting API server", "addr", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}
