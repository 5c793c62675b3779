package fnal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound_ClassifiesOnlyNotFoundKind(t *testing.T) {
	assert.True(t, IsNotFound(notFoundErr("x")))
	assert.False(t, IsNotFound(unavailableErr("x")))
	assert.False(t, IsNotFound(errors.New("plain error")))
}

func TestIsNotFoundWire_MatchesSentinelAndPatterns(t *testing.T) {
	assert.True(t, isNotFoundWire(ErrNotFoundSentinel))
	assert.True(t, isNotFoundWire(errors.New("430 No Such Article Found")))
	assert.True(t, isNotFoundWire(errors.New("article not found")))
	assert.False(t, isNotFoundWire(errors.New("connection reset by peer")))
	assert.False(t, isNotFoundWire(nil))
}

func TestError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("boom")
	e := &Error{Kind: KindTransient, Err: inner}
	assert.Same(t, inner, e.Unwrap())
	assert.Equal(t, "transient: boom", e.Error())
}
