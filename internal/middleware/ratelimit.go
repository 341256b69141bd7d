package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/scholarai/internal/pkg/errcode"
	"github.com/xxxsen/scholarai/internal/pkg/response"
)

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// rateLimiter keeps one token bucket per caller. Callers are identified by
// user id when authenticated and by client ip otherwise.
type rateLimiter struct {
	mu            sync.Mutex
	limit         rate.Limit
	burst         int
	entries       map[string]*limiterEntry
	idleTTL       time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

// RateLimit allows perMinute requests per caller, with bursts up to the same
// amount. A non-positive value disables limiting.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := &rateLimiter{
		limit:         rate.Limit(float64(perMinute) / 60),
		burst:         perMinute,
		entries:       make(map[string]*limiterEntry),
		idleTTL:       10 * time.Minute,
		sweepInterval: time.Minute,
		now:           time.Now,
	}
	return limiter.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	key := "ip:" + c.ClientIP()
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			key = "user:" + id
		}
	}
	now := l.now()
	if !l.allow(key, now) {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("caller", key),
			zap.String("path", c.Request.URL.Path),
		)
		response.Fail(c, errcode.ErrTooMany)
		c.Abort()
		return
	}
	c.Next()
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
	}
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.seen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *rateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.seen) > l.idleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}
