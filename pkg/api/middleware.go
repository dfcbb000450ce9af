package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type correlationIDKey struct{}

// CorrelationMiddleware stamps every request/response pair with an
// X-Correlation-Id (reusing the caller's if present) and an
// X-Request-Duration-Ms, matching spec.md §6's "every response carries"
// requirement. Grounded on the teacher's auth.RequestIDMiddleware.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		rw := &durationWriter{ResponseWriter: w, start: start}
		rw.Header().Set("X-Correlation-Id", correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// durationWriter stamps X-Request-Duration-Ms just before the status line
// commits, since headers can no longer be set once WriteHeader has run.
type durationWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (w *durationWriter) stampDuration() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.Header().Set("X-Request-Duration-Ms", strconv.FormatInt(time.Since(w.start).Milliseconds(), 10))
}

func (w *durationWriter) WriteHeader(status int) {
	w.stampDuration()
	w.ResponseWriter.WriteHeader(status)
}

func (w *durationWriter) Write(b []byte) (int, error) {
	w.stampDuration()
	return w.ResponseWriter.Write(b)
}

// CorrelationID extracts the correlation id stamped by CorrelationMiddleware.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GlobalRateLimiter enforces a per-IP token bucket, grounded on the
// teacher's pkg/api.GlobalRateLimiter (golang.org/x/time/rate, visitor map
// with a background cleanup sweep).
type GlobalRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGlobalRateLimiter constructs a limiter allowing rps requests/second
// per IP with the given burst, and starts its background cleanup sweep.
func NewGlobalRateLimiter(rps int, burst int) *GlobalRateLimiter {
	rl := &GlobalRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *GlobalRateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		limiter := rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *GlobalRateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware rejects requests over the per-IP rate with 429 RATE_LIMIT_EXCEEDED.
func (rl *GlobalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.Trim(r.RemoteAddr, "[]")
		}

		if !rl.getVisitor(ip).Allow() {
			WriteRateLimitExceeded(w, CorrelationID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
