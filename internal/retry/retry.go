// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"math"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
//
// The wait before try n+1 is Cooldown * Exponent^n seconds, so the defaults
// of 0.2s and 4.0 wait 0.2s, 0.8s, 3.2s, ...
type Policy struct {
	// MaxTries is the total number of attempts. Values below 1 mean 1.
	MaxTries int

	// Cooldown is the first wait, in seconds.
	Cooldown float64

	// Exponent multiplies the wait after every failed try.
	Exponent float64
}

// Delay returns the wait after the given zero-based failed try.
func (p Policy) Delay(try int) time.Duration {
	cooldown := p.Cooldown * math.Pow(p.Exponent, float64(try))
	return time.Duration(cooldown * float64(time.Second))
}

// Do calls fn until it succeeds, the policy is exhausted, retryable reports
// false, or ctx is done. onRetry, when set, is called before each wait.
// The last error from fn is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, onRetry func(try int, err error), fn func() error) error {
	tries := p.MaxTries
	if tries < 1 {
		tries = 1
	}

	var err error
	for try := 0; try < tries; try++ {
		if err = fn(); err == nil {
			return nil
		}
		if try == tries-1 || (retryable != nil && !retryable(err)) || ctx.Err() != nil {
			return err
		}
		if onRetry != nil {
			onRetry(try, err)
		}
		if !wait(ctx, p.Delay(try)) {
			return err
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
