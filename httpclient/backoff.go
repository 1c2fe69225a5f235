package httpclient

import (
	"context"
	"time"
)

// BackoffStrategy selects how retry delays grow across attempts.
type BackoffStrategy string

const (
	// BackoffLinear grows the delay linearly with the attempt number.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential doubles the delay on every attempt.
	BackoffExponential BackoffStrategy = "exponential"
)

// maxShift bounds the exponent so the doubling math cannot overflow int64.
const maxShift = 62

// Backoff computes the delay before the given retry attempt (0-based).
//
// Linear: initial * attempt, so attempt 0 yields no delay.
// Exponential: initial * 2^(attempt-1), so attempt 0 yields half the initial
// delay, attempt 1 the initial delay, attempt 2 twice the initial delay.
//
// The result is clamped to max. The function is pure; it never reads the clock.
func Backoff(attempt int, strategy BackoffStrategy, initial, max time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}

	var delay time.Duration
	switch strategy {
	case BackoffExponential:
		if attempt == 0 {
			delay = initial / 2
		} else if attempt-1 >= maxShift {
			delay = max
		} else {
			delay = initial * time.Duration(int64(1)<<(attempt-1))
		}
	default:
		delay = initial * time.Duration(attempt)
	}

	if delay > max || delay < 0 {
		delay = max
	}
	return delay
}

// sleep pauses for d or until the context is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
