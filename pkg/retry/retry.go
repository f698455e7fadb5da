package retry

import (
	"context"
	"time"
)

// Result is the typed outcome of a bounded poll
type Result string

const (
	// Succeeded means the predicate reported true before maxWait elapsed
	Succeeded Result = "succeeded"

	// TimedOut means maxWait elapsed without the predicate reporting true
	TimedOut Result = "timed-out"

	// Aborted means the predicate returned an error or the parent context
	// was cancelled; polling stopped early
	Aborted Result = "aborted"
)

// Outcome describes how a poll ended
type Outcome struct {
	Result   Result
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Predicate is evaluated once per interval. Returning true ends the poll
// successfully; returning an error aborts it.
type Predicate func(ctx context.Context) (bool, error)

// Poll evaluates fn every interval until it reports true, maxWait
// elapses, or the context is cancelled. The first evaluation happens
// immediately, not after the first interval.
func Poll(ctx context.Context, interval, maxWait time.Duration, fn Predicate) Outcome {
	start := time.Now()

	pollCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	attempts := 0
	check := func() (bool, error) {
		attempts++
		return fn(pollCtx)
	}

	if ok, err := check(); err != nil {
		return Outcome{Result: Aborted, Attempts: attempts, Elapsed: time.Since(start), Err: err}
	} else if ok {
		return Outcome{Result: Succeeded, Attempts: attempts, Elapsed: time.Since(start)}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			result := TimedOut
			if ctx.Err() != nil {
				// Parent cancellation, not an elapsed wait
				result = Aborted
			}
			return Outcome{Result: result, Attempts: attempts, Elapsed: time.Since(start), Err: ctx.Err()}
		case <-ticker.C:
			if ok, err := check(); err != nil {
				return Outcome{Result: Aborted, Attempts: attempts, Elapsed: time.Since(start), Err: err}
			} else if ok {
				return Outcome{Result: Succeeded, Attempts: attempts, Elapsed: time.Since(start)}
			}
		}
	}
}
