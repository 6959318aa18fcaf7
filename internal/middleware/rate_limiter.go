package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Skarath13/cards/internal/apierror"
	"github.com/Skarath13/cards/internal/clock"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window limiter ──────────────────────────────────────────────────────

// windowEntry tracks attempts per IP within one window.
type windowEntry struct {
	count     int
	windowEnd time.Time
}

type windowLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	entries map[string]*windowEntry
}

func newWindowLimiter(limit int, window time.Duration, c clock.Clock) *windowLimiter {
	if c == nil {
		c = clock.Real{}
	}
	return &windowLimiter{limit: limit, window: window, clock: c, entries: make(map[string]*windowEntry)}
}

// allow counts one attempt for key. When refused it also returns when the
// window reopens.
func (l *windowLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

// purge drops entries whose window has closed.
func (l *windowLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	purged := 0
	for k, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, k)
			purged++
		}
	}
	return purged
}

func (l *windowLimiter) handler(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, reopens := l.allow(c.ClientIP())
		if !ok {
			wait := int(reopens.Sub(l.clock.Now()).Seconds()) + 1
			if wait < 1 {
				wait = 1
			}
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// ── PIN and API limiters ──────────────────────────────────────────────────────

const (
	pinAttemptsPerMinute = 10
	purgeInterval        = 5 * time.Minute
)

var (
	limitersMu sync.Mutex
	limiters   []*windowLimiter
	purgeOnce  sync.Once
)

func register(l *windowLimiter) *windowLimiter {
	limitersMu.Lock()
	limiters = append(limiters, l)
	limitersMu.Unlock()
	purgeOnce.Do(func() { go purgeExpiredEntries() })
	return l
}

// PinRateLimiter limits PIN attempts to 10 per minute per IP.
func PinRateLimiter() gin.HandlerFunc {
	return register(newWindowLimiter(pinAttemptsPerMinute, time.Minute, nil)).
		handler("Too many PIN attempts. Try again in a minute.")
}

// RateLimiter returns a general-purpose per-IP limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return register(newWindowLimiter(limit, window, nil)).
		handler("Too many requests. Try again shortly.")
}

// purgeExpiredEntries periodically removes closed windows so IPs that never
// return do not accumulate.
func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		limitersMu.Lock()
		all := append([]*windowLimiter(nil), limiters...)
		limitersMu.Unlock()

		purged := 0
		for _, l := range all {
			purged += l.purge()
		}
		if purged > 0 {
			log.Debug().Int("entries_purged", purged).Msg("rate limiter maps purged")
		}
	}
}
