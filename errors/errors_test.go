package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		err := New(ERR_TX_INVALID, "bad tx")
		assert.Equal(t, ERR_TX_INVALID, err.Code())
		assert.Equal(t, "bad tx", err.Message())
		assert.Nil(t, err.WrappedErr())
		assert.Contains(t, err.Error(), "TX_INVALID")
	})

	t.Run("formatted", func(t *testing.T) {
		err := New(ERR_TX_INVALID, "bad tx at input %d", 3)
		assert.Equal(t, "bad tx at input 3", err.Message())
	})

	t.Run("wraps trailing error", func(t *testing.T) {
		cause := fmt.Errorf("underlying")
		err := New(ERR_NETWORK_ERROR, "fetch failed for %s", "deadbeef", cause)
		assert.Equal(t, "fetch failed for deadbeef", err.Message())
		require.NotNil(t, err.WrappedErr())
		assert.Contains(t, err.WrappedErr().Error(), "underlying")
	})

	t.Run("wraps trailing *Error", func(t *testing.T) {
		cause := NewTxNotFoundError("missing")
		err := NewProcessingError("delivery failed", cause)
		assert.True(t, Is(err, ErrTxNotFound))
	})

	t.Run("invalid code", func(t *testing.T) {
		err := New(ERR(9999), "whatever")
		assert.Equal(t, "invalid error code", err.Message())
	})
}

func TestIs(t *testing.T) {
	err := NewTxInvalidError("transaction output %d satoshis is invalid", 0)
	assert.True(t, Is(err, ErrTxInvalid))
	assert.False(t, Is(err, ErrTxNotFound))

	var nilErr *Error

	assert.False(t, nilErr.Is(ErrTxInvalid))
}

func TestAs(t *testing.T) {
	err := NewThresholdExceededError("download limit %d reached", 10)

	var tErr *Error

	require.True(t, As(err, &tErr))
	assert.Equal(t, ERR_THRESHOLD_EXCEEDED, tErr.Code())
}

func TestUnwrap(t *testing.T) {
	cause := NewNetworkTimeoutError("timed out")
	err := NewServiceError("job failed", cause)
	assert.Equal(t, cause.Error(), Unwrap(err).Error())
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewNetworkTimeoutError("slow")))
	assert.True(t, IsRetryableError(NewServiceUnavailableError("down")))
	assert.False(t, IsRetryableError(NewNetworkInvalidResponseError("garbage")))
	assert.False(t, IsRetryableError(NewTxInvalidError("bad")))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(nil))
}

func TestIsNetworkError(t *testing.T) {
	assert.True(t, IsNetworkError(NewNetworkError("boom")))
	assert.True(t, IsNetworkError(fmt.Errorf("dial tcp 127.0.0.1:80: connection refused")))
	assert.False(t, IsNetworkError(NewTxInvalidError("bad")))
	assert.False(t, IsNetworkError(nil))
}
