package service

import (
	"context"
	"fmt"
	"math/rand"
)

// retryPolicy drives a bounded retry loop around one operation. The
// operation receives the zero-based attempt index so it can mutate its
// input between attempts (e.g. derive a fresh username).
type retryPolicy struct {
	maxAttempts int
	retryable   func(error) bool
}

// run executes op until it succeeds, fails with a non-retryable error, or
// the attempt budget is spent. It returns how many attempts were made and
// the last error.
func (p retryPolicy) run(ctx context.Context, op func(attempt int) error) (int, error) {
	attempts := 0
	var err error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempts, err
		}
		attempts++
		err = op(attempt)
		if err == nil || !p.retryable(err) {
			return attempts, err
		}
	}
	return attempts, err
}

// deriveUsername builds a replacement username for a conflict retry: the
// deterministic base plus the attempt index and a random two-digit
// tie-breaker, so two imports colliding on the same base diverge.
func deriveUsername(base string, attempt int) string {
	return fmt.Sprintf("%s-%d%02d", base, attempt, rand.Intn(100))
}
