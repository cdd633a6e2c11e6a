package tracing

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/internal/logger"
)

func TestRunRecovered_PanicBecomesError(t *testing.T) {
	err := RunRecovered(logger.NewNopLogger(), func() error {
		var handlers map[string]func() error
		return handlers["monitoring"]()
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovered from panic")
}

func TestRunRecovered_ReturnsError(t *testing.T) {
	want := errors.New("consumer channel closed")

	assert.Equal(t, want, RunRecovered(logger.NewNopLogger(), func() error { return want }))
	assert.NoError(t, RunRecovered(logger.NewNopLogger(), func() error { return nil }))
}
