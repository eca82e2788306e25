package webhooks

import (
	"context"
	"time"
)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialRetryPolicy doubles the delay after each attempt, starting at
// Initial and never exceeding Max.
type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// SenderRetryPolicy waits 2^attempt seconds between outbound attempts.
func SenderRetryPolicy() ExponentialRetryPolicy {
	return ExponentialRetryPolicy{Initial: 2 * time.Second, Max: time.Minute}
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
