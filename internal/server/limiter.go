package server

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultScansPerHour is the per-user receipt scan allowance
const DefaultScansPerHour = 10

// scanLimiter hands out one token bucket per user. Idle buckets expire from the cache.
type scanLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

func newScanLimiter(perHour int) *scanLimiter {
	if perHour <= 0 {
		perHour = DefaultScansPerHour
	}
	return &scanLimiter{
		limiters: cache.New(2*time.Hour, 10*time.Minute),
		limit:    rate.Every(time.Hour / time.Duration(perHour)),
		burst:    perHour,
	}
}

// Allow reports whether userID may scan another receipt now
func (l *scanLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(userID); ok {
		l.limiters.SetDefault(userID, v)
		return v.(*rate.Limiter).Allow()
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.SetDefault(userID, limiter)
	return limiter.Allow()
}
