package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnFailureSucceedsAfterTransientErrors(t *testing.T) {
	h := New[string](Options{Max: 3, MaxBackoff: time.Millisecond}, "test")
	attempts := 0
	err := h.RetryOnFailure(context.Background(), "elem", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryOnFailureDeadLettersAfterExhaustion(t *testing.T) {
	h := New[string](Options{Max: 2, MaxBackoff: time.Millisecond}, "test")
	attempts := 0
	err := h.RetryOnFailure(context.Background(), "elem", func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries

	select {
	case dl := <-h.DeadLetters:
		assert.Equal(t, "elem", dl.Element)
		assert.Error(t, dl.Err)
	default:
		t.Fatal("expected a dead-lettered element")
	}
}

func TestRetryOnSuccessRetriesUntilPredicateTrue(t *testing.T) {
	h := New[int](Options{Max: 5, MaxBackoff: time.Millisecond}, "test")
	calls := 0
	result, err := RetryOnSuccess(h, context.Background(), 42, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, func(r int) bool {
		return r >= 3
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestRetryOnSuccessDeadLettersWhenPredicateNeverTrue(t *testing.T) {
	h := New[int](Options{Max: 2, MaxBackoff: time.Millisecond}, "test")
	_, err := RetryOnSuccess(h, context.Background(), 7, func(ctx context.Context) (int, error) {
		return 0, nil
	}, func(r int) bool {
		return false
	})
	require.NoError(t, err)

	select {
	case dl := <-h.DeadLetters:
		assert.Equal(t, 7, dl.Element)
	default:
		t.Fatal("expected a dead-lettered element")
	}
}

func TestRetryOnSuccessReturnsImmediatelyOnBodyError(t *testing.T) {
	h := New[int](Options{Max: 5, MaxBackoff: time.Millisecond}, "test")
	calls := 0
	_, err := RetryOnSuccess(h, context.Background(), 1, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, func(r int) bool { return true })
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOnFailureRespectsContextCancellation(t *testing.T) {
	h := New[string](Options{Max: 10, MaxBackoff: 50 * time.Millisecond}, "test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := h.RetryOnFailure(ctx, "elem", func(ctx context.Context) error {
		attempts++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "should fail fast on the first backoff wait after a cancelled context")
}
