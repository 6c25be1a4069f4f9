package retry

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyFromEnvFallsBackToDefaults(t *testing.T) {
	for _, key := range []string{"MAX_RETRIES", "BACKOFF_BASE_MS", "BACKOFF_CAP_MS", "RETRY_BUDGET_S"} {
		require.NoError(t, os.Unsetenv(key))
	}
	assert.Equal(t, DefaultPolicy(), PolicyFromEnv(nil))
}

func TestPolicyFromEnvHonorsOverrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "9")
	t.Setenv("BACKOFF_BASE_MS", "50")
	t.Setenv("BACKOFF_CAP_MS", "4000")
	t.Setenv("RETRY_BUDGET_S", "15")

	p := PolicyFromEnv(nil)
	assert.Equal(t, 9, p.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 4000*time.Millisecond, p.MaxDelay)
	assert.Equal(t, 15*time.Second, p.MaxElapsed)
}

func TestDoRetriesOnlyRetryableErrors(t *testing.T) {
	policy := Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3, MaxElapsed: time.Second}

	attempts := 0
	err := Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return Retryable("flaky", errors.New("transient"))
	})
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, attempts, "should exhaust MaxAttempts retrying a RetryableError")

	attempts = 0
	err = Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return Permanent("bad input", errors.New("schema violation"))
	})
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, attempts, "a PermanentError must not be retried")
}
