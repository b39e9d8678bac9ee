package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "mail-dispatch:ratelimit"
	window    = time.Second
	minWait   = 5 * time.Millisecond
)

// The counter outlives its window so a late INCR never resets a spent window.
var windowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter admits at most limitPerSec sends per mailbox in each wall
// clock second, across every process that shares the Redis instance.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limitPerSec)
	}

	return &RedisRateLimiter{
		client:      client,
		limitPerSec: int64(limitPerSec),
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, mailbox string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	key, err := windowKey(mailbox, r.now())
	if err != nil {
		return false, err
	}

	count, err := windowScript.Run(ctx, r.client, []string{key}, (2 * window).Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return count <= r.limitPerSec, nil
}

// Wait blocks until the mailbox is admitted, sleeping to the start of the next
// window after each rejection.
func (r *RedisRateLimiter) Wait(ctx context.Context, mailbox string) error {
	for {
		allowed, err := r.Allow(ctx, mailbox)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, untilNextWindow(r.now())); err != nil {
			return err
		}
	}
}

func windowKey(mailbox string, at time.Time) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(mailbox))
	if normalized == "" {
		return "", fmt.Errorf("mailbox is required")
	}
	return fmt.Sprintf("%s:%s:%d", keyPrefix, normalized, at.UTC().Unix()), nil
}

func untilNextWindow(now time.Time) time.Duration {
	next := now.Truncate(window).Add(window)
	if d := next.Sub(now); d > minWait {
		return d
	}
	return minWait
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
