package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTTL evicts limiters for clients not seen for this long.
	IdleTTL time.Duration
	// Skip lists route templates that are never limited, e.g. "/health".
	Skip []string
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		IdleTTL:           10 * time.Minute,
		Skip:              []string{"/health"},
	}
}

// visitors holds one token bucket per client IP
type visitors struct {
	cfg   RateLimitConfig
	mu    sync.Mutex
	byIP  map[string]*visitor
	swept time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (vs *visitors) get(ip string, now time.Time) *rate.Limiter {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if now.Sub(vs.swept) > vs.cfg.IdleTTL {
		for k, v := range vs.byIP {
			if now.Sub(v.lastSeen) > vs.cfg.IdleTTL {
				delete(vs.byIP, k)
			}
		}
		vs.swept = now
	}

	v, ok := vs.byIP[ip]
	if !ok {
		v = &visitor{limiter: newLimiter(vs.cfg)}
		vs.byIP[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	vs := &visitors{cfg: cfg, byIP: make(map[string]*visitor), swept: time.Now()}
	skip := skipSet(cfg.Skip)

	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}
		limit(c, vs.get(c.ClientIP(), time.Now()))
	}
}

// GlobalRateLimit creates a rate limiting middleware shared by all clients.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := newLimiter(cfg)
	skip := skipSet(cfg.Skip)

	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}
		limit(c, limiter)
	}
}

// limit admits the request or rejects it with 429 and a Retry-After hint
func limit(c *gin.Context, limiter *rate.Limiter) {
	r := limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		if delay != rate.InfDuration {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
		})
		return
	}
	c.Next()
}

func newLimiter(cfg RateLimitConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

func skipSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
