package message

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
)

// Decode parses Raw according to ContentType and stores the result in
// Payload. It always starts again from Raw, so repeated calls agree.
func (e *Envelope) Decode() error {
	payload, err := decode(e.ContentType, e.Raw)
	if err != nil {
		return err
	}
	e.Payload = payload
	return nil
}

// Encode writes a structured Payload back to Raw using the inverse of the
// content type's decoder. Payloads that are not JSON objects are left alone.
func (e *Envelope) Encode() error {
	object, ok := e.Payload.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, err := encode(e.ContentType, object)
	if err != nil {
		return err
	}
	e.Raw = raw
	return nil
}

// Unmarshal decodes the envelope body straight into T.
func Unmarshal[T any](e *Envelope) (*T, error) {
	body, err := jsonBody(e.ContentType, e.Raw)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, hermeserrors.NewDecodeError(e.ContentType.String(), e.Raw, err)
	}
	return &result, nil
}

func decode(contentType enum.ContentType, raw []byte) (interface{}, error) {
	switch contentType {
	case enum.ContentTypeJSON:
		return decodeJSON(contentType, raw, raw)
	case enum.ContentTypeBase64:
		return decodeBase64(contentType, raw)
	case enum.ContentTypeBase64JSON:
		body, err := decodeBase64(contentType, raw)
		if err != nil {
			return nil, err
		}
		return decodeJSON(contentType, body, raw)
	default:
		return nil, hermeserrors.NewDecodeError(contentType.String(), raw, errors.New("no decoder registered"))
	}
}

func encode(contentType enum.ContentType, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}
	switch contentType {
	case enum.ContentTypeJSON:
		return body, nil
	case enum.ContentTypeBase64, enum.ContentTypeBase64JSON:
		return []byte(base64.StdEncoding.EncodeToString(body)), nil
	default:
		return nil, errors.Errorf("no encoder registered for %s", contentType)
	}
}

func jsonBody(contentType enum.ContentType, raw []byte) ([]byte, error) {
	switch contentType {
	case enum.ContentTypeJSON:
		return raw, nil
	case enum.ContentTypeBase64, enum.ContentTypeBase64JSON:
		return decodeBase64(contentType, raw)
	default:
		return nil, hermeserrors.NewDecodeError(contentType.String(), raw, errors.New("no decoder registered"))
	}
}

func decodeJSON(contentType enum.ContentType, body, raw []byte) (interface{}, error) {
	if !utf8.Valid(body) {
		return nil, hermeserrors.NewDecodeError(contentType.String(), raw, errors.New("body is not valid UTF-8"))
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload interface{}
	if err := decoder.Decode(&payload); err != nil {
		return nil, hermeserrors.NewDecodeError(contentType.String(), raw, err)
	}
	if decoder.More() {
		return nil, hermeserrors.NewDecodeError(contentType.String(), raw, errors.New("trailing data after JSON value"))
	}
	return payload, nil
}

func decodeBase64(contentType enum.ContentType, raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(decoded, trimmed)
	if err != nil {
		return nil, hermeserrors.NewDecodeError(contentType.String(), raw, err)
	}
	return decoded[:n], nil
}

// Outbound describes a message the platform produces itself.
type Outbound struct {
	// MessageID is generated when empty.
	MessageID       string
	Type            enum.MessageType
	UserID          enum.UserID
	AppID           enum.AppID
	ProducerID      enum.ProducerID
	ProducerVersion string
	ContentType     enum.ContentType
	Priority        enum.Priority
	Timestamp       Timestamp
	CorrelationIDs  []string
	Headers         map[string]string
	Payload         interface{}
}

// Build serializes out.Payload, assigns a message id when none is given and
// validates the result exactly as an inbound message would be.
func Build(vocab *Vocabulary, out Outbound) (*Envelope, error) {
	if out.ContentType == "" {
		out.ContentType = enum.ContentTypeJSON
	}
	if out.Priority == 0 {
		out.Priority = enum.PriorityNormal
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = NewTimestamp(time.Now())
	}
	if out.MessageID == "" {
		out.MessageID = uuid.NewString()
	}

	raw, err := encode(out.ContentType, out.Payload)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(out.Headers)+4+len(out.CorrelationIDs))
	for k, v := range out.Headers {
		headers[k] = v
	}
	headers[HeaderProducerID] = out.ProducerID.String()
	headers[HeaderProducerVersion] = out.ProducerVersion
	headers[HeaderTimestamp] = out.Timestamp.Raw
	headers[HeaderTimestampPrecision] = out.Timestamp.Precision.String()
	for i, id := range out.CorrelationIDs {
		if i >= MaxCorrelationIDs {
			break
		}
		if id != "" {
			headers[correlationHeader(i)] = id
		}
	}

	return New(vocab, Properties{
		MessageID:       out.MessageID,
		Type:            out.Type.String(),
		UserID:          out.UserID.String(),
		AppID:           out.AppID.String(),
		ContentType:     out.ContentType.String(),
		ContentEncoding: enum.ContentEncodingUTF8.String(),
		Priority:        uint8(out.Priority),
		DeliveryMode:    uint8(enum.DeliveryPersistent),
		Headers:         headers,
	}, raw)
}

// HermesVersion is the producer version stamped on platform messages.
const HermesVersion = "1.0.0"

// Internal describes a follow-on message produced by the platform itself.
func Internal(messageType enum.MessageType, app enum.AppID, payload interface{}, correlationIDs ...string) Outbound {
	return Outbound{
		Type:            messageType,
		UserID:          enum.UserHermes,
		AppID:           app,
		ProducerID:      enum.ProducerHermes,
		ProducerVersion: HermesVersion,
		CorrelationIDs:  correlationIDs,
		Payload:         payload,
	}
}
