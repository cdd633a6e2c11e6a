package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/internal/enum"
)

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1431011515123", enum.TimestampMilliseconds)
	require.NoError(t, err)
	assert.Equal(t, int64(1431011515123), ts.Value.UnixMilli())

	ts, err = ParseTimestamp("2015-05-07T15:11:55.123456789Z", enum.TimestampNanoseconds)
	require.NoError(t, err)
	assert.Equal(t, 123456789, ts.Value.Nanosecond())
	assert.Equal(t, "2015-05-07T15:11:55.123456789Z", ts.Raw)

	_, err = ParseTimestamp("", enum.TimestampNanoseconds)
	assert.Error(t, err)
	_, err = ParseTimestamp("12:30", enum.TimestampNanoseconds)
	assert.Error(t, err)
	_, err = ParseTimestamp("1", "s")
	assert.Error(t, err)
}

func TestNewTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 42, time.UTC)
	ts := NewTimestamp(now)
	assert.Equal(t, enum.TimestampNanoseconds, ts.Precision)
	assert.False(t, ts.IsZero())

	parsed, err := ParseTimestamp(ts.Raw, ts.Precision)
	require.NoError(t, err)
	assert.True(t, now.Equal(parsed.Value))
}
