package web

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 15 * time.Minute

// ipLimiter is a per-client token bucket refilled perMin times a minute.
type ipLimiter struct {
	mu      sync.Mutex
	perMin  int
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(perMin int) *ipLimiter {
	return &ipLimiter{perMin: max(perMin, 1), buckets: map[string]*bucket{}}
}

func (l *ipLimiter) setRate(perMin int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	perMin = max(perMin, 1)
	if perMin == l.perMin {
		return
	}
	l.perMin = perMin
	l.buckets = map[string]*bucket{}
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.sweep) > limiterIdle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > limiterIdle {
				delete(l.buckets, k)
			}
		}
		l.sweep = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
