package registryapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/httpserver"
	"github.com/skillnest/registry/internal/telemetry"
)

// RateLimiter limits search requests per subject with a sliding-window
// counter in Redis: the current minute's INCR count plus the previous
// minute's count weighted by how much of it still overlaps the trailing
// minute. It is keyed by the authenticated user id when present, falling
// back to the client IP for anonymous callers.
type RateLimiter struct {
	redis     *redis.Client
	maxPerMin int
}

// NewRateLimiter creates a RateLimiter allowing maxPerMin requests per
// subject per rolling minute window.
func NewRateLimiter(rdb *redis.Client, maxPerMin int) *RateLimiter {
	return &RateLimiter{redis: rdb, maxPerMin: maxPerMin}
}

type rateLimitResult struct {
	allowed   bool
	limit     int
	remaining int
	resetAt   time.Time
}

func (rl *RateLimiter) check(ctx context.Context, subject string) (rateLimitResult, error) {
	now := time.Now()
	window := now.Unix() / 60
	key := fmt.Sprintf("ratelimit:search:%s:%d", subject, window)
	prevKey := fmt.Sprintf("ratelimit:search:%s:%d", subject, window-1)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	prev := pipe.Get(ctx, prevKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return rateLimitResult{}, fmt.Errorf("checking rate limit: %w", err)
	}

	prevCount, _ := prev.Int()
	overlap := 1 - float64(now.Unix()%60)/60
	count := int(incr.Val()) + int(float64(prevCount)*overlap)
	resetAt := now.Truncate(time.Minute).Add(time.Minute)

	if count > rl.maxPerMin {
		return rateLimitResult{allowed: false, limit: rl.maxPerMin, remaining: 0, resetAt: resetAt}, nil
	}
	return rateLimitResult{allowed: true, limit: rl.maxPerMin, remaining: rl.maxPerMin - count, resetAt: resetAt}, nil
}

// Limit applies the rate limiter to every request reaching next, keyed by
// the request's resolved Accessor (falling back to client IP when
// anonymous). On rejection it writes a 429 with Retry-After and
// X-RateLimit-* headers set.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := rateLimitSubject(r)

		result, err := rl.check(r.Context(), subject)
		if err != nil {
			// Fail open: a Redis hiccup should not take the read API down.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.resetAt.Unix(), 10))

		if !result.allowed {
			telemetry.RateLimitRejectionsTotal.Inc()
			retryAfter := int(time.Until(result.resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many search requests, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rateLimitSubject(r *http.Request) string {
	accessor := AccessorFromContext(r.Context())
	if !accessor.IsAnonymous() {
		return "user:" + accessor.UserID.String()
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
