package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/metrics"
	"github.com/renovo/backend/internal/session"
)

// RateLimiter counts requests in Redis when a client is configured and falls
// back to per-instance token buckets when it is not or Redis errors.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	keyFunc  func(*http.Request) string
	log      *slog.Logger
}

func NewRateLimiter(rdb *redis.Client, limit redis_rate.Limit, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		limit:    limit,
		keyFunc:  KeyByUser,
		log:      log,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

// Limit builds a redis_rate limit of requests per window.
func Limit(requests int, window time.Duration, burst int) redis_rate.Limit {
	if burst <= 0 {
		burst = requests
	}
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: window}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyFunc(r)
		res, backend := rl.allow(r.Context(), key)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			metrics.IncRateLimited(backend)
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			h.Set("Retry-After", strconv.Itoa(retry))
			httpx.Error(w, http.StatusTooManyRequests, fmt.Sprintf("rate limit exceeded, retry after %d seconds", retry))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, string) {
	if rl.limiter != nil {
		res, err := rl.limiter.Allow(ctx, key, rl.limit)
		if err == nil {
			return res, "redis"
		}
		rl.log.Warn("redis rate limiter failed, using local limiter", "error", err)
	}
	return rl.fallback.allow(key, rl.limit), "local"
}

// Stop ends the local limiter's cleanup loop.
func (rl *RateLimiter) Stop() { rl.fallback.stop() }

// KeyByUser keys authenticated callers by uid and everyone else by address.
func KeyByUser(r *http.Request) string {
	if sess, ok := session.FromContext(r.Context()); ok {
		return "ratelimit:user:" + sess.UID.String()
	}
	return KeyByIP(r)
}

func KeyByIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ratelimit:ip:" + xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ratelimit:ip:" + ip
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	done     chan struct{}
	once     sync.Once
}

const (
	cleanupInterval = 5 * time.Minute
	entryTTL        = 10 * time.Minute
)

func newLocalLimiter() *localLimiter {
	l := &localLimiter{limiters: make(map[string]*limiterEntry), done: make(chan struct{})}
	go l.cleanup()
	return l
}

func (l *localLimiter) stop() { l.once.Do(func() { close(l.done) }) }

func (l *localLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for k, e := range l.limiters {
				if now.Sub(e.lastAccess) > entryTTL {
					delete(l.limiters, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSec := float64(limit.Rate) / limit.Period.Seconds()

	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.limiters[key] = e
	}
	e.lastAccess = time.Now()
	l.mu.Unlock()

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}
	if e.limiter.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / perSec)
	}
	if remaining := int(e.limiter.Tokens()); remaining > 0 {
		res.Remaining = remaining
	}
	return res
}
