package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisClientName   = "cards-ledger"
	redisPingAttempts = 5
	redisPingTimeout  = 3 * time.Second
)

// NewRedis connects to redisURL and waits for the server to answer, retrying
// the ping with backoff while it starts.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = redisClientName
	}
	rdb := redis.NewClient(opts)
	if err := waitForRedis(context.Background(), rdb, redisPingAttempts, 500*time.Millisecond); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func waitForRedis(ctx context.Context, rdb *redis.Client, attempts int, backoff time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Str("addr", rdb.Options().Addr).Msg("redis: not ready, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("redis: ping %s after %d attempts: %w", rdb.Options().Addr, attempts, err)
}
