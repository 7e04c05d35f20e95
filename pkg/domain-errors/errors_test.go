package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestHasCodeWalksWrappedChain(t *testing.T) {
	inner := New(CodeValidation, "bad field")
	outer := Wrap(inner, CodeInternal, "processing failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeValidation))
	assert.False(t, HasCode(outer, CodeConflict))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestHasCodeThroughFmtErrorf(t *testing.T) {
	err := fmt.Errorf("store: %w", New(CodeNotFound, "row missing"))

	assert.True(t, HasCode(err, CodeNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "duplicate")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	wrapped := Wrap(New(CodeValidation, "inner"), CodeConflict, "outer")
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeInternal, "saving record")

	assert.Contains(t, err.Error(), "internal")
	assert.Contains(t, err.Error(), "saving record")
	assert.Contains(t, err.Error(), "disk full")

	var domainErr *Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, cause, domainErr.Unwrap())
}
