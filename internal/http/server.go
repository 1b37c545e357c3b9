// Package http exposes the cash-flow services as a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	applog "cashflow/internal/log"
	"cashflow/internal/services"
)

const (
	defaultRequestsPerMinute = 60
	maxBodyBytes             = 64 << 10
)

// Server wraps http.Server with the routes and middleware of the API.
type Server struct {
	http.Server

	cycles   *services.CycleManager
	checkin  *services.CheckinService
	validate *validator.Validate
	logger   *applog.Logger

	limiter        *clientLimiter
	stopCleanup    chan struct{}
	shutdownOnce   sync.Once
	cleanupEvery   time.Duration
	trustedProxies bool
}

type ServerOption func(*Server)

// WithRateLimit caps mutating requests per client and minute.
func WithRateLimit(requestsPerMinute int) ServerOption {
	return func(s *Server) {
		if requestsPerMinute > 0 {
			s.limiter = newClientLimiter(requestsPerMinute)
		}
	}
}

func WithLogger(logger *applog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithForwardedFor makes the rate limiter key clients by X-Forwarded-For,
// for deployments behind a reverse proxy.
func WithForwardedFor() ServerOption {
	return func(s *Server) { s.trustedProxies = true }
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, cycles *services.CycleManager, checkin *services.CheckinService, opts ...ServerOption) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		cycles:       cycles,
		checkin:      checkin,
		validate:     newValidator(),
		logger:       applog.Default(applog.ComponentHTTP),
		limiter:      newClientLimiter(defaultRequestsPerMinute),
		stopCleanup:  make(chan struct{}),
		cleanupEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /cycle", s.handleGetCycle)
	mux.HandleFunc("POST /cycle", s.handleStartCycle)
	mux.HandleFunc("POST /income", s.handleIncome)
	mux.HandleFunc("POST /spend/extra", s.handleExtraSpend)
	mux.HandleFunc("POST /spend/daily", s.handleDailySpend)
	mux.HandleFunc("GET /spend/logs", s.handleSpendLogs)
	mux.HandleFunc("POST /checkin/confirm", s.handleConfirm)
	mux.HandleFunc("GET /defaults", s.handleGetDefaults)
	mux.HandleFunc("PUT /defaults", s.handleUpdateDefault)

	s.Handler = s.withTracing(s.withSecurityHeaders(s.withRateLimit(mux)))

	go s.startLimiterCleanup()
	return s
}

// startLimiterCleanup drops idle client limiters until shutdown.
func (s *Server) startLimiterCleanup() {
	ticker := time.NewTicker(s.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.limiter.cleanExpired(); removed > 0 {
				s.logger.Debug("Rate limiter cleanup completed", "clients_removed", removed)
			}
		case <-s.stopCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// logFor returns the request-scoped logger set by withTracing.
func (s *Server) logFor(r *http.Request) *applog.Logger {
	if l := applog.FromContext(r.Context()); l.Component() == applog.ComponentHTTP {
		return l
	}
	return s.logger
}
