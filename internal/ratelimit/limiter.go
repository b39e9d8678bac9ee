package ratelimit

import "context"

// RateLimiter throttles transport calls per sending mailbox.
type RateLimiter interface {
	Allow(ctx context.Context, mailbox string) (bool, error)
	Wait(ctx context.Context, mailbox string) error
}
