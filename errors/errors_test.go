package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifiedError_Wrapping(t *testing.T) {
	base := stderrors.New("boom")
	err := WrapTransient(base, "StatusClient", "Fetch", "decode response")

	assert.True(t, stderrors.Is(err, base))
	assert.Contains(t, err.Error(), "StatusClient.Fetch")
	assert.Contains(t, err.Error(), "decode response")

	var ce *ClassifiedError
	assert.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "StatusClient", ce.Component)
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrUpstreamUnavailable))
	assert.True(t, IsTransient(fmt.Errorf("fetch: %w", ErrUpstreamUnavailable)))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(stderrors.New("dial tcp: connection refused")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(WrapInvalid(stderrors.New("bad"), "c", "m", "a")))
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrParsingFailed))
	assert.True(t, IsInvalid(WrapInvalid(stderrors.New("bad uuid"), "ProfileClient", "Lookup", "parse uuid")))
	assert.False(t, IsInvalid(ErrUpstreamUnavailable))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrMissingConfig))
	assert.True(t, IsFatal(WrapFatal(stderrors.New("no address"), "Config", "Validate", "server address")))
	assert.False(t, IsFatal(ErrLookupFailed))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidData))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("anything else")))
}
