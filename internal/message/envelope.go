package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
)

const (
	HeaderProducerID         = "producer_id"
	HeaderProducerVersion    = "producer_version"
	HeaderTimestamp          = "timestamp"
	HeaderTimestampPrecision = "timestamp_precision"
	HeaderCorrelationPrefix  = "correlation_id_"

	MaxCorrelationIDs = 3
)

// Properties is the transport metadata of a message as received from, or
// handed to, the broker.
type Properties struct {
	MessageID       string
	Type            string
	UserID          string
	AppID           string
	ContentType     string
	ContentEncoding string
	Priority        uint8
	DeliveryMode    uint8
	Headers         map[string]string
}

// Envelope is one validated unit of transport. Metadata is fixed at
// construction; Payload is only populated by Decode.
type Envelope struct {
	MessageID       string
	Type            enum.MessageType
	UserID          enum.UserID
	AppID           enum.AppID
	ProducerID      enum.ProducerID
	ProducerVersion string
	ContentType     enum.ContentType
	ContentEncoding enum.ContentEncoding
	Timestamp       Timestamp
	CorrelationIDs  []string
	Headers         map[string]string
	Priority        enum.Priority
	DeliveryMode    enum.DeliveryMode

	Raw     []byte
	Payload interface{}
}

// New validates props against vocab and builds the envelope. Any violation
// is reported as a ValidationError naming the offending field.
func New(vocab *Vocabulary, props Properties, raw []byte) (*Envelope, error) {
	if _, err := uuid.Parse(props.MessageID); err != nil {
		return nil, hermeserrors.NewValidationError("message_id", props.MessageID)
	}
	if !vocab.HasType(enum.MessageType(props.Type)) {
		return nil, hermeserrors.NewValidationError("type", props.Type)
	}
	if !vocab.HasUser(enum.UserID(props.UserID)) {
		return nil, hermeserrors.NewValidationError("user_id", props.UserID)
	}
	if !vocab.HasApp(enum.AppID(props.AppID)) {
		return nil, hermeserrors.NewValidationError("app_id", props.AppID)
	}
	if !vocab.HasContentType(enum.ContentType(props.ContentType)) {
		return nil, hermeserrors.NewValidationError("content_type", props.ContentType)
	}
	if !vocab.HasContentEncoding(enum.ContentEncoding(props.ContentEncoding)) {
		return nil, hermeserrors.NewValidationError("content_encoding", props.ContentEncoding)
	}
	if !vocab.HasDeliveryMode(enum.DeliveryMode(props.DeliveryMode)) {
		return nil, hermeserrors.NewValidationError("delivery_mode", props.DeliveryMode)
	}
	if !vocab.HasPriority(enum.Priority(props.Priority)) {
		return nil, hermeserrors.NewValidationError("priority", props.Priority)
	}

	producerID, ok := props.Headers[HeaderProducerID]
	if !ok || !vocab.HasProducer(enum.ProducerID(producerID)) {
		return nil, hermeserrors.NewValidationError(HeaderProducerID, producerID)
	}
	producerVersion, ok := props.Headers[HeaderProducerVersion]
	if !ok || !IsProducerVersion(producerVersion) {
		return nil, hermeserrors.NewValidationError(HeaderProducerVersion, producerVersion)
	}

	correlationIDs, err := correlationIDsFromHeaders(props.Headers)
	if err != nil {
		return nil, err
	}

	var timestamp Timestamp
	if rawTimestamp, ok := props.Headers[HeaderTimestamp]; ok {
		precision := enum.TimestampPrecision(props.Headers[HeaderTimestampPrecision])
		if precision == "" {
			precision = enum.TimestampNanoseconds
		}
		timestamp, err = ParseTimestamp(rawTimestamp, precision)
		if err != nil {
			return nil, hermeserrors.NewValidationError(HeaderTimestamp, rawTimestamp)
		}
	}

	headers := make(map[string]string, len(props.Headers))
	for k, v := range props.Headers {
		headers[k] = v
	}

	return &Envelope{
		MessageID:       props.MessageID,
		Type:            enum.MessageType(props.Type),
		UserID:          enum.UserID(props.UserID),
		AppID:           enum.AppID(props.AppID),
		ProducerID:      enum.ProducerID(producerID),
		ProducerVersion: producerVersion,
		ContentType:     enum.ContentType(props.ContentType),
		ContentEncoding: enum.ContentEncoding(props.ContentEncoding),
		Timestamp:       timestamp,
		CorrelationIDs:  correlationIDs,
		Headers:         headers,
		Priority:        enum.Priority(props.Priority),
		DeliveryMode:    enum.DeliveryMode(props.DeliveryMode),
		Raw:             raw,
	}, nil
}

// Properties returns the transport metadata to publish the envelope with.
func (e *Envelope) Properties() Properties {
	headers := make(map[string]string, len(e.Headers)+2+len(e.CorrelationIDs))
	for k, v := range e.Headers {
		headers[k] = v
	}
	headers[HeaderProducerID] = e.ProducerID.String()
	headers[HeaderProducerVersion] = e.ProducerVersion
	if !e.Timestamp.IsZero() {
		headers[HeaderTimestamp] = e.Timestamp.Raw
		headers[HeaderTimestampPrecision] = e.Timestamp.Precision.String()
	}
	for i := 0; i < MaxCorrelationIDs; i++ {
		delete(headers, correlationHeader(i))
	}
	for i, id := range e.CorrelationIDs {
		if id != "" {
			headers[correlationHeader(i)] = id
		}
	}

	return Properties{
		MessageID:       e.MessageID,
		Type:            e.Type.String(),
		UserID:          e.UserID.String(),
		AppID:           e.AppID.String(),
		ContentType:     e.ContentType.String(),
		ContentEncoding: e.ContentEncoding.String(),
		Priority:        uint8(e.Priority),
		DeliveryMode:    uint8(e.DeliveryMode),
		Headers:         headers,
	}
}

// CorrelationID returns the correlation id at position n (1 based), or "".
func (e *Envelope) CorrelationID(n int) string {
	if n < 1 || n > len(e.CorrelationIDs) {
		return ""
	}
	return e.CorrelationIDs[n-1]
}

func (e *Envelope) String() string {
	return fmt.Sprintf("%s[%s]", e.Type, e.MessageID)
}

// IsUID reports whether s identifies an entity: either a UUID or the numeric
// UID a mailbox assigns to an email.
func IsUID(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	n, err := strconv.ParseUint(s, 10, 32)
	return err == nil && n > 0
}

// correlationIDsFromHeaders keeps ids at their header position so that an
// absent first id does not shift the others; trailing gaps are trimmed.
func correlationIDsFromHeaders(headers map[string]string) ([]string, error) {
	ids := make([]string, MaxCorrelationIDs)
	last := -1
	for i := 0; i < MaxCorrelationIDs; i++ {
		key := correlationHeader(i)
		id := strings.TrimSpace(headers[key])
		if id == "" {
			continue
		}
		if !IsUID(id) {
			return nil, hermeserrors.NewValidationError(key, id)
		}
		ids[i] = id
		last = i
	}
	if last < 0 {
		return nil, nil
	}
	return ids[:last+1], nil
}

func correlationHeader(i int) string {
	return HeaderCorrelationPrefix + strconv.Itoa(i+1)
}
