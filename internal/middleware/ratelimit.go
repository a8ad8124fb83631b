package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/pkg/response"
)

const (
	defaultRPS   = 5
	defaultBurst = 10

	// minIdleTTL is the shortest time a bucket is kept after its last use.
	minIdleTTL = 3 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterPool hands out one token bucket per key. Buckets idle for longer than
// it takes them to refill are evicted.
type LimiterPool struct {
	mu        sync.Mutex
	m         map[string]*bucket
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLimiterPool creates a pool of rps/burst buckets. Non-positive values fall
// back to 5 rps with a burst of 10.
func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}

	// a bucket idle this long has refilled
	idleTTL := time.Duration(2 * float64(burst) / rps * float64(time.Second))
	if idleTTL < minIdleTTL {
		idleTTL = minIdleTTL
	}

	return &LimiterPool{
		m:       make(map[string]*bucket),
		rps:     rps,
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= p.idleTTL {
		p.sweep(now)
	}

	if b, ok := p.m[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	b := &bucket{limiter: rate.NewLimiter(rate.Limit(p.rps), p.burst), lastSeen: now}
	p.m[key] = b
	return b.limiter
}

// sweep must be called with mu held.
func (p *LimiterPool) sweep(now time.Time) {
	for key, b := range p.m {
		if now.Sub(b.lastSeen) >= p.idleTTL {
			delete(p.m, key)
		}
	}
	p.lastSweep = now
}

// Allow reports whether key may act now and takes a token if so.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Len returns the number of live buckets.
func (p *LimiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// RateLimit throttles requests per authenticated user, falling back to the client
// IP for anonymous callers.
func RateLimit(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !pool.Allow(key) {
			metrics.RateLimited.Inc()
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
