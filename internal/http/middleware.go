package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cashflow/internal/cache"
	applog "cashflow/internal/log"
)

const (
	requestIDHeader = "X-Request-ID"
	limiterIdleTTL  = 10 * time.Minute
)

// withTracing assigns a request ID, stores a request logger in the context
// and logs start and completion.
func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		logger := s.logger.With(applog.FieldRequestID, requestID)
		ctx := applog.WithContext(r.Context(), logger)
		r = r.WithContext(ctx)
		w.Header().Set(requestIDHeader, requestID)

		logger.DebugContext(ctx, "HTTP request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldQuery, r.URL.RawQuery,
			applog.FieldClientIP, s.clientIP(r),
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		args := []any{
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
		}
		switch {
		case rw.statusCode >= 500:
			logger.ErrorContext(ctx, "HTTP request completed", args...)
		case rw.statusCode >= 400:
			logger.WarnContext(ctx, "HTTP request completed", args...)
		default:
			logger.InfoContext(ctx, "HTTP request completed", args...)
		}
	})
}

// withSecurityHeaders sets the headers a JSON-only API needs.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit throttles state-changing requests per client. Reads are free.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		clientIP := s.clientIP(r)
		if !s.limiter.allow(clientIP) {
			s.logFor(r).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP keys a request by its remote host, or by the first
// X-Forwarded-For hop when the server sits behind a proxy.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustedProxies {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientLimiter keeps one token bucket per client. Buckets idle for longer
// than limiterIdleTTL are forgotten and start full again.
type clientLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters *cache.TTL[*rate.Limiter]
}

func newClientLimiter(requestsPerMinute int) *clientLimiter {
	return &clientLimiter{
		every:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
		limiters: cache.New[*rate.Limiter](limiterIdleTTL),
	}
}

func (c *clientLimiter) allow(client string) bool {
	c.mu.Lock()
	l, ok := c.limiters.Get(client)
	if !ok {
		l = rate.NewLimiter(c.every, c.burst)
	}
	c.limiters.Set(client, l)
	c.mu.Unlock()
	return l.Allow()
}

func (c *clientLimiter) cleanExpired() int {
	return c.limiters.CleanExpired()
}
