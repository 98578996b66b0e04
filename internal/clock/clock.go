// Package clock provides the cancellable waits used at every suspension point.
package clock

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep blocks for d unless ctx is cancelled first, in which case it returns ctx.Err().
// A non-positive duration only checks the context.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recorder is a SleepFunc that never blocks and remembers every requested duration.
// It is meant for tests.
type Recorder struct {
	Calls []time.Duration
}

// Sleep records d and returns ctx.Err().
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.Calls = append(r.Calls, d)
	return ctx.Err()
}

// Total returns the sum of all recorded durations.
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Calls {
		total += d
	}
	return total
}
