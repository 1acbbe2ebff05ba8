package transport

import (
	"net"
	"time"

	"golang.org/x/time/rate"
)

// synGuard rate-limits fresh SYN frames (ones with no existing peer)
// per source address bucket, independent of netproto's per-peer
// congestion/backoff machinery which only governs already-established
// peers. Grounded in the teacher's token-bucket rate limiter
// (internal/single/limits/rate_limiter.go), reimplemented on top of
// golang.org/x/time/rate since that is the ecosystem's standard token
// bucket and the teacher already depends on it elsewhere.
type synGuard struct {
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	lastSeen map[string]time.Time
	maxIdle  time.Duration
}

func newSynGuard(perSecond float64, burst int) *synGuard {
	return &synGuard{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		lastSeen: make(map[string]time.Time),
		maxIdle:  5 * time.Minute,
	}
}

// Allow reports whether a fresh SYN from addr may proceed, consuming one
// token if so. Buckets are created lazily and swept of idle entries on
// each call so a scan of ephemeral source addresses cannot grow the
// table without bound.
func (g *synGuard) Allow(addr net.Addr, now time.Time) bool {
	key := addr.String()
	if host, _, err := net.SplitHostPort(key); err == nil {
		key = host
	}
	g.sweep(now)
	lim, ok := g.limiters[key]
	if !ok {
		lim = rate.NewLimiter(g.rate, g.burst)
		g.limiters[key] = lim
	}
	g.lastSeen[key] = now
	return lim.AllowN(now, 1)
}

func (g *synGuard) sweep(now time.Time) {
	for key, last := range g.lastSeen {
		if now.Sub(last) > g.maxIdle {
			delete(g.lastSeen, key)
			delete(g.limiters, key)
		}
	}
}
