// Package jobpoll drives client-side polling of the job status endpoint
// with an adaptive schedule: frequent checks while a render is young,
// backing off as it ages. The schedule cooperates with the server's cache
// headers, which mark only terminal reads as cacheable.
package jobpoll

import (
	"context"
	"time"
)

// Status is the minimal view a fetcher must return.
type Status struct {
	Terminal bool
}

// FetchFunc retrieves the current status of one job.
type FetchFunc func(ctx context.Context, jobID string) (Status, error)

// Interval returns the wait before the next poll given how long the job
// has been polled so far.
func Interval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed <= 0:
		return 10 * time.Second
	case elapsed < 3*time.Minute:
		return 15 * time.Second
	case elapsed < 10*time.Minute:
		return 30 * time.Second
	default:
		return time.Minute
	}
}

// Run polls fetch until the job reaches a terminal state or the context is
// cancelled. Transient fetch errors are swallowed; the next tick retries.
func Run(ctx context.Context, jobID string, fetch FetchFunc) error {
	start := time.Now()
	timer := time.NewTimer(Interval(0))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		st, err := fetch(ctx, jobID)
		if err == nil && st.Terminal {
			return nil
		}
		timer.Reset(Interval(time.Since(start)))
	}
}
