package worker

// reset_cron.go
// Background ticker that enqueues the nightly archive once per business date.
// Runs every 30 seconds and compares the local wall clock with RESET_AT.
// The guard makes sure several instances (or restarts) enqueue only once.

import (
	"context"
	"sync"
	"time"

	"github.com/Skarath13/cards/internal/bizdate"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	resetCronInterval = 30 * time.Second
	resetGuardPrefix  = "cron:daily_reset:"
	resetGuardTTL     = 48 * time.Hour
)

// ResetEnqueuer is the part of Dispatcher the cron needs.
type ResetEnqueuer interface {
	EnqueueDailyReset(ctx context.Context, p DailyResetPayload) error
}

// OnceGuard claims a key exactly once.
type OnceGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// RedisOnceGuard claims keys with SETNX so only one instance wins.
type RedisOnceGuard struct {
	rdb *redis.Client
}

func NewRedisOnceGuard(rdb *redis.Client) *RedisOnceGuard {
	return &RedisOnceGuard{rdb: rdb}
}

func (g *RedisOnceGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, resetGuardPrefix+key, time.Now().UTC().Format(time.RFC3339), resetGuardTTL).Result()
}

// MemoryOnceGuard is a process-local OnceGuard.
type MemoryOnceGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryOnceGuard() *MemoryOnceGuard {
	return &MemoryOnceGuard{seen: make(map[string]struct{})}
}

func (g *MemoryOnceGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = struct{}{}
	return true, nil
}

type ResetCronConfig struct {
	Calendar *bizdate.Calendar
	Queue    ResetEnqueuer
	Guard    OnceGuard
	// ResetAt is HH:MM in the business time zone.
	ResetAt string
}

// StartResetCron launches the ticker goroutine. It stops when ctx is cancelled.
func StartResetCron(ctx context.Context, cfg ResetCronConfig) {
	if cfg.Guard == nil {
		cfg.Guard = NewMemoryOnceGuard()
	}
	go func() {
		ticker := time.NewTicker(resetCronInterval)
		defer ticker.Stop()
		log.Info().Str("reset_at", cfg.ResetAt).Msg("reset_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reset_cron: stopped")
				return
			case <-ticker.C:
				tickReset(ctx, cfg)
			}
		}
	}()
}

// tickReset enqueues today's archive once the local clock passes ResetAt.
func tickReset(ctx context.Context, cfg ResetCronConfig) bool {
	if !shouldEnqueue(cfg.Calendar.LocalTime(), cfg.ResetAt) {
		return false
	}
	date := cfg.Calendar.Today()
	claimed, err := cfg.Guard.Claim(ctx, date)
	if err != nil {
		log.Warn().Err(err).Str("business_date", date).Msg("reset_cron: guard failed")
		return false
	}
	if !claimed {
		return false
	}
	if err := cfg.Queue.EnqueueDailyReset(ctx, DailyResetPayload{BusinessDate: date}); err != nil {
		log.Error().Err(err).Str("business_date", date).Msg("reset_cron: enqueue failed")
		return false
	}
	log.Info().Str("business_date", date).Msg("reset_cron: daily reset enqueued")
	return true
}

// shouldEnqueue reports whether local HH:MM is at or past resetAt.
// Both are zero-padded 24h strings, so string order is time order.
func shouldEnqueue(localHHMM, resetAt string) bool {
	if len(localHHMM) != 5 || len(resetAt) != 5 {
		return false
	}
	return localHHMM >= resetAt
}
