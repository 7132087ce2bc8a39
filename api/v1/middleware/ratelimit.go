package middleware

import (
	"sync"

	"agentmesh/internal/httpx"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP. Buckets live in an
// LRU so a flood of distinct addresses cannot grow memory without bound.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache
	limit   rate.Limit
	burst   int
}

// NewIPRateLimiter allows perSec requests per second with the given burst.
// maxClients bounds the number of tracked IPs.
func NewIPRateLimiter(perSec float64, burst, maxClients int) *IPRateLimiter {
	if maxClients <= 0 {
		maxClients = 10000
	}
	cache, _ := lru.New(maxClients)
	return &IPRateLimiter{
		buckets: cache,
		limit:   rate.Limit(perSec),
		burst:   burst,
	}
}

// Allow reports whether ip may proceed now.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	v, ok := l.buckets.Get(ip)
	if !ok {
		v = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(ip, v)
	}
	l.mu.Unlock()
	return v.(*rate.Limiter).Allow()
}

// RateLimit rejects requests over the per-IP budget with RATE_LIMITED.
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l != nil && !l.Allow(c.ClientIP()) {
			httpx.AbortErr(c, httpx.ErrRateLimited("too many requests, slow down"))
			return
		}
		c.Next()
	}
}
