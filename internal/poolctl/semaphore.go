package poolctl

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// provisionSemaphore bounds concurrent clone-and-boot operations
// (spec.md §4.2's "at most P concurrent provisions", default 2).
type provisionSemaphore struct {
	weighted *semaphore.Weighted
}

func newProvisionSemaphore(p int) provisionSemaphore {
	if p <= 0 {
		p = 2
	}
	return provisionSemaphore{weighted: semaphore.NewWeighted(int64(p))}
}

func (s provisionSemaphore) acquire(ctx context.Context) error {
	return s.weighted.Acquire(ctx, 1)
}

func (s provisionSemaphore) release() { s.weighted.Release(1) }
