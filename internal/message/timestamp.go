package message

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/internal/enum"
)

// Timestamp keeps the instant a message was produced together with the text
// it was parsed from, so that it can be forwarded unchanged.
type Timestamp struct {
	Value     time.Time
	Precision enum.TimestampPrecision
	Raw       string
}

func (t Timestamp) IsZero() bool {
	return t.Raw == "" && t.Value.IsZero()
}

// NewTimestamp captures now with nanosecond precision.
func NewTimestamp(now time.Time) Timestamp {
	return Timestamp{
		Value:     now.UTC(),
		Precision: enum.TimestampNanoseconds,
		Raw:       strconv.FormatInt(now.UnixNano(), 10),
	}
}

// ParseTimestamp reads raw as an integer count of units since the epoch.
// Nanosecond timestamps may also be given as RFC 3339 text, which some
// producers emit.
func ParseTimestamp(raw string, precision enum.TimestampPrecision) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}, errors.New("empty timestamp")
	}

	switch precision {
	case enum.TimestampMilliseconds:
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Timestamp{}, errors.Wrapf(err, "invalid millisecond timestamp %q", raw)
		}
		return Timestamp{Value: time.UnixMilli(ms).UTC(), Precision: precision, Raw: raw}, nil
	case enum.TimestampNanoseconds:
		if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Timestamp{Value: time.Unix(0, ns).UTC(), Precision: precision, Raw: raw}, nil
		}
		value, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Timestamp{}, errors.Errorf("invalid nanosecond timestamp %q", raw)
		}
		return Timestamp{Value: value.UTC(), Precision: precision, Raw: raw}, nil
	default:
		return Timestamp{}, errors.Errorf("unsupported timestamp precision %q", precision)
	}
}
