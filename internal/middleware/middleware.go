// Package middleware is the HTTP request-path ambient stack: request-ID
// propagation, metrics recording, rate limiting keyed to the IDT
// action's target, and a request body size cap, in that order in the
// chain cmd/trustd builds.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/blackyblack/identity-server/internal/obsv"
)

// IPRateLimiter hands out one token bucket per bucket key. Unlike a
// pure per-IP scheme, a POST to a `/{verb}/{user}` route such as
// vouch/proof/punish is bucketed by its target user alone, so a flood
// aimed at a single identity from rotating source IPs is still bounded:
// the thing under attack in this domain is a user's IDT balance, not a
// listener socket.
type IPRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter creates a bucket-keyed rate limiter allowing
// requestsPerMinute sustained requests per bucket, with a burst of the
// same size.
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	r := rate.Limit(float64(requestsPerMinute) / 60.0)
	return &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    requestsPerMinute,
	}
}

// GetLimiter returns the rate limiter for a given bucket key, creating
// it on first use.
func (ipl *IPRateLimiter) GetLimiter(key string) *rate.Limiter {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	limiter, exists := ipl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(ipl.rate, ipl.burst)
		ipl.limiters[key] = limiter
	}
	return limiter
}

// RateLimit builds rate limiting middleware around limiter. Rejections
// are logged and returned as a JSON error body, matching the rest of
// the HTTP surface's error envelope rather than a bare text response.
func RateLimit(limiter *IPRateLimiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bucketKey(r)
			l := limiter.GetLimiter(key)

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int(l.Tokens())))

			if !l.Allow() {
				log.Warn("rate limit exceeded", slog.String("bucket", key), slog.String("path", r.URL.Path))
				obsv.RecordAction("rate_limit", "rejected")
				writeErrorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userScopedVerbs lists the first path segment of every route shaped
// `/{verb}/{user}`. Rate limiting and metrics run ahead of mux's own
// route matching in the chain (see cmd/trustd/main.go), so the target
// user is read straight off the path here rather than via mux.Vars.
var userScopedVerbs = map[string]bool{
	"vouch":            true,
	"idt":              true,
	"proof":            true,
	"punish":           true,
	"is_moderator":     true,
	"add_moderator":    true,
	"remove_moderator": true,
	"is_admin":         true,
	"add_admin":        true,
	"remove_admin":     true,
}

// pathTarget returns the verb and target user segment of a
// `/{verb}/{user}` request path, if it matches that shape.
func pathTarget(r *http.Request) (verb, user string, ok bool) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) == 2 && userScopedVerbs[segments[0]] {
		return segments[0], segments[1], true
	}
	return "", "", false
}

// bucketKey keys a POST to a `/{verb}/{user}` path by its target user
// alone, so per-user limits on mutating actions survive IP rotation.
// Other requests with a target user are keyed by caller address plus
// user, and the rest by caller address.
func bucketKey(r *http.Request) string {
	ip := clientIP(r)
	if _, user, ok := pathTarget(r); ok {
		if r.Method == http.MethodPost {
			return "user:" + user
		}
		return ip + ":" + user
	}
	return ip
}

// clientIP extracts the client IP, preferring forwarding headers set by a
// reverse proxy over the raw connection address.
func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// BodySizeLimit caps the request body for state-changing methods so a
// single signed action can't exhaust memory decoding it.
func BodySizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

// RequestIDContextKey is the context key under which the request ID is
// stashed.
const RequestIDContextKey contextKey = "requestID"

// RequestID assigns each request a UUID (reusing an inbound X-Request-ID
// if the caller already set one), exposing it via context and response
// header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID stashed by RequestID, or "" if
// none is present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// statusResponseWriter wraps http.ResponseWriter to capture the status
// code written for metrics purposes.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routeLabel collapses a path to its route template ("/vouch/{user}"
// instead of "/vouch/alice") so per-target traffic doesn't fragment the
// metrics label space into one series per identity.
func routeLabel(r *http.Request) string {
	if verb, _, ok := pathTarget(r); ok {
		return "/" + verb + "/{user}"
	}
	return r.URL.Path
}

// Metrics records HTTP request counts and latency into obsv's Prometheus
// vectors, labeled by route template rather than raw path.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		route := routeLabel(r)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		obsv.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		obsv.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
	})
}

// writeErrorJSON writes {"error": msg} with the given status, matching
// the JSON error envelope the rest of the HTTP surface uses.
func writeErrorJSON(w http.ResponseWriter, status int, msg string) {
	body, err := sonic.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Chain applies middlewares in the order given, so Chain(h, A, B) runs
// A before B on the way in (A(B(h))).
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
