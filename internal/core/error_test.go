package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NotFound("workflow missing")
	assert.Equal(t, "workflow missing", err.Error())
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("write failed", cause)
	assert.Equal(t, "write failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestNodeError(t *testing.T) {
	cause := errors.New("boom")
	err := NodeError("n1", cause)
	assert.Equal(t, KindNodeError, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "n1")
}

func TestOfDispatchesOnKind(t *testing.T) {
	assert.Equal(t, KindConflict, Of(Conflict("dup")))
	assert.Equal(t, Kind(""), Of(nil))
	assert.Equal(t, Kind(""), Of(errors.New("plain")))
}

func TestIsMatchesByKind(t *testing.T) {
	a := BadRequest("one message")
	b := BadRequest("a different message")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, NotFound("x")))
}
