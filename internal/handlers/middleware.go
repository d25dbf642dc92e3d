package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"coparent/internal/metrics"
	"coparent/internal/models"
	"coparent/internal/security"
	"coparent/internal/service"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey      ContextKey = "user"
	RequestIDContextKey ContextKey = "request_id"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier *security.TokenVerifier
	identity *service.IdentityService
	metrics  *metrics.Metrics
	limiter  *security.RateLimiter
	clientIP *security.ClientIPResolver
}

// NewMiddleware creates a new middleware instance. limiter guards the public
// invitation preview and may be nil to disable limiting. clientIP keys the
// limiter; a nil resolver keys by peer address.
func NewMiddleware(verifier *security.TokenVerifier, identity *service.IdentityService, m *metrics.Metrics, limiter *security.RateLimiter, clientIP *security.ClientIPResolver) *Middleware {
	return &Middleware{
		verifier: verifier,
		identity: identity,
		metrics:  m,
		limiter:  limiter,
		clientIP: clientIP,
	}
}

// RequireIdentity verifies the bearer token, resolves it to a user and puts
// the user in the request context.
func (m *Middleware) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := security.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		id, err := m.verifier.Verify(raw)
		if err != nil {
			slog.Debug("Rejected bearer token", "request_id", RequestIDFromContext(r.Context()), "error", err)
			respondWithError(w, r, err)
			return
		}

		user, err := m.identity.Resolve(r.Context(), id.Subject, id.Email)
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(m.clientIP.ClientIP(r)) {
			respondWithCode(w, http.StatusTooManyRequests, CodeRateLimited, ErrTooManyRequests)
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the status written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging assigns a request id, then logs and counts each request
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(context.WithValue(r.Context(), RequestIDContextKey, requestID))
		next.ServeHTTP(rec, req)

		elapsed := time.Since(start)
		m.metrics.Request(r.Method, req.Pattern, rec.status, elapsed)
		slog.Info("HTTP request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// RequestIDFromContext returns the request id assigned by Logging
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithCode(w, http.StatusBadRequest, CodeBadRequest, ErrInvalidJSON)
		return false
	}
	return true
}

// pathID parses a numeric path value
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		respondWithCode(w, http.StatusBadRequest, CodeBadRequest, ErrInvalidID)
		return 0, false
	}
	return id, true
}
