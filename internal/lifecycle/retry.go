package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/hyperwake/hyperwake/internal/hyperv"
)

// retryBackoff is spec.md §7's fixed schedule for TransientHypervisorError:
// up to three retries after the first attempt (four attempts in all),
// waiting 250ms, 1s, then 4s before each retry.
var retryBackoff = []time.Duration{250 * time.Millisecond, time.Second, 4 * time.Second}

// withRetry calls op, retrying only when it fails with a transient
// *hyperv.DriverError, up to len(retryBackoff) additional attempts. Any
// other error (including a permanent or not-found DriverError) returns
// immediately.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		var derr *hyperv.DriverError
		if !errors.As(lastErr, &derr) || derr.Kind != hyperv.FailureTransient {
			return lastErr
		}
		if attempt >= len(retryBackoff) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
}
