package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &hyperv.DriverError{Kind: hyperv.FailureTransient, Op: "start", Message: "busy"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithRetryGivesUpAfterSchedule(t *testing.T) {
	attempts := 0
	wantErr := &hyperv.DriverError{Kind: hyperv.FailureTransient, Op: "start", Message: "still busy"}
	err := withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, len(retryBackoff)+1, attempts)
}

func TestWithRetryNeverRetriesPermanentFailures(t *testing.T) {
	attempts := 0
	permErr := &hyperv.DriverError{Kind: hyperv.FailurePermanent, Op: "start", Message: "bad config"}
	err := withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return permErr
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestWithRetryPassesThroughNonDriverErrors(t *testing.T) {
	plain := errors.New("boom")
	err := withRetry(context.Background(), func(ctx context.Context) error { return plain })
	require.ErrorIs(t, err, plain)
}
