package swap

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of concurrent blocking network calls.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a limiter allowing n concurrent calls. n <= 0 means 16.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = 16
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs fn once a slot is available.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn(ctx)
}
