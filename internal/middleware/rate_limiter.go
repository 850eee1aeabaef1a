package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ally-360/pos-terminal/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window rate limiter ────────────────────────────────────────────────
// Protects the local API from a UI stuck in a retry loop. Keyed by client IP.

type rateEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimiter counts requests per IP in fixed windows.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*rateEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// allow records one request for key and reports whether it is within the
// limit, and if not, how long until the window resets.
func (l *RateLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	if e.count > l.limit {
		return false, e.windowEnd.Sub(now)
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.allow(c.ClientIP())
		if !ok {
			secs := int(wait.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}

// ── Purge goroutine ───────────────────────────────────────────────────────────
// Removes expired entries so IPs that never return do not accumulate.

const purgeInterval = 5 * time.Minute

// StartPurge runs until ctx is cancelled.
func (l *RateLimiter) StartPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.purge(); n > 0 {
					log.Debug().Int("entries_purged", n).Msg("rate limiter purged")
				}
			}
		}
	}()
}

func (l *RateLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	purged := 0
	for key, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, key)
			purged++
		}
	}
	return purged
}
