package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsIdentity(t *testing.T) {
	original := New("original")
	wrapped := Wrapf(original, "publish %s", "raw/run_id=1/raw.parquet")

	assert.Contains(t, wrapped.Error(), "publish raw/run_id=1/raw.parquet")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestMarkSurvivesWrapping(t *testing.T) {
	errWrite := New("write failed")
	cause := New("disk full")

	marked := Mark(Wrap(cause, "encode accepted tier"), errWrite)
	wrapped := Wrap(marked, "run 20250101T000000.000000Z")

	assert.True(t, Is(wrapped, errWrite))
	assert.True(t, Is(wrapped, cause))
	assert.True(t, IsAny(wrapped, ErrTimeout, errWrite))
	assert.False(t, Is(wrapped, ErrTimeout))
	assert.NotContains(t, wrapped.Error(), "write failed", "marks do not change the message")
}

func TestStackTraceIncluded(t *testing.T) {
	err := Wrap(New("boom"), "context")
	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestHintsAndDetails(t *testing.T) {
	err := WithHint(WithDetail(New("error"), "key raw/run_id=1"), "check storage.root permissions")

	require.Len(t, GetAllHints(err), 1)
	assert.Equal(t, "check storage.root permissions", GetAllHints(err)[0])
	assert.Equal(t, "key raw/run_id=1", FlattenDetails(err))
}

func TestSentinelHelpers(t *testing.T) {
	notFound := NewNotFoundError("run %s", "20250101T000000.000000Z")
	assert.True(t, IsNotFoundError(notFound))
	assert.Contains(t, notFound.Error(), "20250101T000000.000000Z")
	assert.False(t, IsNotFoundError(nil))

	invalid := NewInvalidRequestError("unknown source %q", "ftp")
	assert.True(t, IsInvalidRequestError(invalid))
	assert.False(t, IsInvalidRequestError(notFound))
}
