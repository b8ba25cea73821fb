package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeConflict, "curp already registered")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeValidation))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		inner := New(CodeUnavailable, "registry unreachable")
		err := fmt.Errorf("verify curp: %w", inner)
		assert.True(t, HasCode(err, CodeUnavailable))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil in nil out", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
	})

	t.Run("preserves cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "phone precheck failed")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, CodeUnavailable, CodeOf(err))
	})
}

func TestCodeOfAndMessageOf(t *testing.T) {
	err := New(CodeValidation, "campo requerido")
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, "campo requerido", MessageOf(err))

	plain := errors.New("boom")
	assert.Equal(t, CodeInternal, CodeOf(plain))
	assert.Equal(t, "internal error", MessageOf(plain))
}
