package main

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hivechat/swarm/api/handlers"
	"github.com/hivechat/swarm/internal/ctxkeys"
	"github.com/hivechat/swarm/internal/metrics"
	"github.com/hivechat/swarm/types"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestContext assigns a request ID (honoring one supplied by the
// caller) and stashes it with the owner into the request context.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := ctxkeys.WithRequestID(r.Context(), requestID)
		if owner := r.Header.Get("X-Owner-ID"); owner != "" {
			ctx = ctxkeys.WithOwnerID(ctx, owner)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withLogging logs every request and feeds the collector.
func withLogging(next http.Handler, logger *zap.Logger, collector *metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		took := time.Since(start)
		if collector != nil {
			collector.ObserveRequest(r.Method, r.URL.Path, rec.status, took)
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", took),
		}
		if requestID, ok := ctxkeys.RequestID(r.Context()); ok {
			fields = append(fields, zap.String("request_id", requestID))
		}
		if owner, ok := ctxkeys.OwnerID(r.Context()); ok {
			fields = append(fields, zap.String("owner_id", owner))
		}
		logger.Info("request", fields...)
	})
}

// withRecovery turns handler panics into 500 responses.
func withRecovery(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				handlers.WriteError(w, types.NewError(types.ErrInternalError, "internal error"), nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		clients: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (c *clientLimiter) limiterFor(addr string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.clients[addr]; ok {
		return l
	}
	l := rate.NewLimiter(c.rps, c.burst)
	c.clients[addr] = l
	return l
}

// withRateLimit rejects clients over their per-address budget. rps <= 0
// disables limiting.
func withRateLimit(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	limiter := newClientLimiter(rps, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !limiter.limiterFor(host).Allow() {
			handlers.WriteJSON(w, http.StatusTooManyRequests, handlers.Response{
				Success: false,
				Error: &handlers.ErrorInfo{
					Code:      "RATE_LIMITED",
					Message:   "too many requests",
					Retryable: true,
				},
				Timestamp: time.Now(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
