// Package retry runs an operation a bounded number of times with an
// increasing delay between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do invokes op up to attempts times, sleeping attempt×delay between
// failures. It returns nil on the first success, the context error when
// cancelled mid-wait, and the last error wrapped with the attempt count once
// attempts are exhausted.
func Do(ctx context.Context, attempts int, delay time.Duration, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
