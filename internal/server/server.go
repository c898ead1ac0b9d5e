package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/match"
	"github.com/spigell/locum-chat/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Config holds the externally supplied HTTP settings.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server is the HTTP surface over the deterministic matching core and the
// generative composer boundary.
type Server struct {
	catalog  *catalog.Store
	engine   *match.Engine
	sessions *session.Store
	composer ai.Composer
	logger   *zap.Logger
	origins  []string
	httpSrv  *http.Server
}

func New(cfg Config, store *catalog.Store, engine *match.Engine, sessions *session.Store, composer ai.Composer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		catalog:  store,
		engine:   engine,
		sessions: sessions,
		composer: composer,
		logger:   logger,
		origins:  cfg.AllowedOrigins,
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withRequestLog(s.withCORS(s.routes())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /jobs", s.handleJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleJobByID)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /chat", s.handleChat)
	return mux
}
