package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalRateLimiter)(nil)

// LocalRateLimiter is an in-process token bucket, used when no Redis is
// configured. Every mailbox shares the one bucket: a run sends from one sender.
type LocalRateLimiter struct {
	limiter *rate.Limiter
}

func NewLocalRateLimiter(limitPerSec int) (*LocalRateLimiter, error) {
	if limitPerSec <= 0 {
		return nil, fmt.Errorf("rate limit must be positive (got %d)", limitPerSec)
	}

	return &LocalRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(limitPerSec), limitPerSec),
	}, nil
}

func (l *LocalRateLimiter) Allow(ctx context.Context, mailbox string) (bool, error) {
	if strings.TrimSpace(mailbox) == "" {
		return false, fmt.Errorf("mailbox is required")
	}
	return l.limiter.Allow(), nil
}

func (l *LocalRateLimiter) Wait(ctx context.Context, mailbox string) error {
	if strings.TrimSpace(mailbox) == "" {
		return fmt.Errorf("mailbox is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.limiter.Wait(ctx)
}
