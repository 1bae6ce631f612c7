package coreerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorString(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		e := New(KindValidation, "bad input")
		assert.Equal(t, "validation: bad input", e.Error())
	})

	t.Run("with resource", func(t *testing.T) {
		e := New(KindNotFound, "missing dataset").WithResource("ds-1")
		assert.Equal(t, "not_found: missing dataset [ds-1]", e.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		e := Wrap(KindIO, "read failed", errors.New("disk error"))
		assert.Equal(t, "io: read failed: disk error", e.Error())
	})

	t.Run("with resource and cause", func(t *testing.T) {
		e := Wrap(KindIO, "read failed", errors.New("disk error")).WithResource("file.txt")
		assert.Equal(t, "io: read failed [file.txt]: disk error", e.Error())
	})
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := Wrap(KindInternal, "wrapped", cause)
	assert.Equal(t, cause, errors.Unwrap(e))
	assert.True(t, errors.Is(e, cause))
}

func TestIs(t *testing.T) {
	err := New(KindConflict, "already running")
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(errors.New("plain error"), KindConflict))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(New(KindTimeout, "slow")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")), "a non-coreerrors error defaults to internal")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(KindTimeout))
	assert.True(t, Retryable(KindBackpressure))
	assert.True(t, Retryable(KindIO))
	assert.False(t, Retryable(KindValidation))
	assert.False(t, Retryable(KindNotFound))
	assert.False(t, Retryable(KindInternal))
}

func TestIs_WrappedViaFmtErrorf(t *testing.T) {
	base := New(KindAlreadyExists, "dup")
	wrapped := fmt.Errorf("context: %w", base)
	assert.True(t, Is(wrapped, KindAlreadyExists))
}
