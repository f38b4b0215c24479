package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tubewatch/internal/config"
	"tubewatch/internal/logging"
	"tubewatch/internal/metrics"
	"tubewatch/internal/storage"
)

const (
	maxCallbackBody = 1 << 20
	deliveryLockTTL = 10 * time.Second
)

// VideoRunner processes one pushed video id end to end.
type VideoRunner interface {
	Run(ctx context.Context, videoID string) error
}

// Server wires the chi router and the underlying HTTP listener.
type Server struct {
	cfg     *config.Config
	store   *storage.Store
	engine  VideoRunner
	metrics *metrics.Metrics
	logger  *slog.Logger

	httpServer *http.Server
	now        func() time.Time
	startedAt  time.Time
}

// New builds the server. The metrics handler refreshes the active
// subscription gauge on each scrape.
func New(cfg *config.Config, store *storage.Store, engine VideoRunner, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		startedAt: time.Now(),
	}

	guard, err := allowCIDRs(cfg.Server.AllowedCIDRs, logger)
	if err != nil {
		return nil, fmt.Errorf("parse allowed cidrs: %w", err)
	}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Get("/healthz", s.handleHealth)
	router.Group(func(r chi.Router) {
		r.Use(guard)
		r.Get("/callback", s.handleVerification)
		r.Post("/callback", s.handlePush)
		r.Get("/api/status", s.handleStatus)
		r.Method(http.MethodGet, "/metrics", m.Handler(s.refreshGauges))
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logging.String("bind", s.cfg.Server.Bind))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) refreshGauges() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		s.logger.Warn("refresh subscription gauge failed", logging.Error(err))
		return
	}
	s.metrics.SetActiveSubscriptions(len(subs))
}
