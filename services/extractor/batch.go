package extractor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/message"
)

// Sub-message fields.
const (
	FieldCode            = "msgCode"
	FieldUID             = "msgUID"
	FieldProducer        = "msgProducer"
	FieldProducerVersion = "msgProducerVersion"
	FieldTimestamp       = "msgTimestamp"
	FieldSimulationUID   = "simuid"
	FieldJobUID          = "jobuid"
	FieldConfiguration   = "configuration"
	FieldMetrics         = "metrics"
)

// subMessage is one decoded line of an email batch.
type subMessage map[string]interface{}

func (m subMessage) text(field string) string {
	switch v := m[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (m subMessage) code() enum.MessageType {
	return enum.MessageType(m.text(FieldCode))
}

func (m subMessage) clone() subMessage {
	c := make(subMessage, len(m)+1)
	for k, v := range m {
		c[k] = v
	}
	return c
}

// splitLines returns the non blank lines of body, trimmed.
func splitLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// decodeBase64Lines decodes every line, returning the decoded lines and the
// number that could not be decoded.
func decodeBase64Lines(lines []string) ([][]byte, int) {
	decoded := make([][]byte, 0, len(lines))
	failed := 0
	for _, line := range lines {
		data, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			failed++
			continue
		}
		decoded = append(decoded, data)
	}
	return decoded, failed
}

// parseJSONLines parses every decoded line as a JSON object. A line that
// does not parse is tried once more with its backslashes removed, as some
// producers escape quotes they should not.
func parseJSONLines(decoded [][]byte) ([]subMessage, int) {
	messages := make([]subMessage, 0, len(decoded))
	failed := 0
	for _, data := range decoded {
		m, err := parseJSON(data)
		if err != nil {
			m, err = parseJSON(bytes.ReplaceAll(data, []byte(`\`), nil))
		}
		if err != nil {
			failed++
			continue
		}
		messages = append(messages, m)
	}
	return messages, failed
}

func parseJSON(data []byte) (subMessage, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var m subMessage
	if err := decoder.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("not a JSON object")
	}
	if decoder.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	return m, nil
}

// exclude drops sub-messages without a producer version or whose type is in
// excluded, returning the survivors and the number dropped.
func exclude(messages []subMessage, excluded map[enum.MessageType]struct{}) ([]subMessage, int) {
	kept := messages[:0]
	dropped := 0
	for _, m := range messages {
		if m.text(FieldProducerVersion) == "" {
			dropped++
			continue
		}
		if _, ok := excluded[m.code()]; ok {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	return kept, dropped
}

// attachmentHandler folds the attachments of an email into its only
// sub-message, possibly fanning it out.
type attachmentHandler func(m subMessage, attachments []dto.Attachment) []subMessage

var attachmentHandlers = map[enum.MessageType]attachmentHandler{
	enum.MessageSimulationConfiguration: attachConfiguration,
	enum.MessagePCMDIMetrics:            attachMetrics,
}

func attachConfiguration(m subMessage, attachments []dto.Attachment) []subMessage {
	m[FieldConfiguration] = string(attachments[0].Content)
	return []subMessage{m}
}

func attachMetrics(m subMessage, attachments []dto.Attachment) []subMessage {
	fanned := make([]subMessage, 0, len(attachments))
	for _, attachment := range attachments {
		c := m.clone()
		c[FieldUID] = uuid.NewString()
		c[FieldMetrics] = base64.StdEncoding.EncodeToString(attachment.Content)
		fanned = append(fanned, c)
	}
	return fanned
}

// mergeAttachments only applies when exactly one sub-message survived: with
// several there is no telling which one the attachments belong to.
func mergeAttachments(messages []subMessage, attachments []dto.Attachment) []subMessage {
	if len(attachments) == 0 || len(messages) != 1 {
		return messages
	}
	handler, ok := attachmentHandlers[messages[0].code()]
	if !ok {
		return messages
	}
	return handler(messages[0], attachments)
}

// envelopeFactory turns sub-messages into outbound envelopes.
type envelopeFactory struct {
	vocab *message.Vocabulary
	appID func(enum.MessageType) (enum.AppID, error)
}

func (f envelopeFactory) build(m subMessage, emailUID uint32) (*message.Envelope, error) {
	messageType := m.code()
	appID, err := f.appID(messageType)
	if err != nil {
		return nil, err
	}

	timestamp, err := message.ParseTimestamp(m.text(FieldTimestamp), enum.TimestampNanoseconds)
	if err != nil {
		return nil, err
	}

	messageID := m.text(FieldUID)
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return message.Build(f.vocab, message.Outbound{
		MessageID:       messageID,
		Type:            messageType,
		UserID:          enum.UserLibIGCM,
		AppID:           appID,
		ProducerID:      enum.ProducerID(m.text(FieldProducer)),
		ProducerVersion: m.text(FieldProducerVersion),
		ContentType:     enum.ContentTypeJSON,
		Timestamp:       timestamp,
		CorrelationIDs: []string{
			m.text(FieldSimulationUID),
			m.text(FieldJobUID),
			fmt.Sprint(emailUID),
		},
		Payload: map[string]interface{}(m),
	})
}

// emailDates reads when the batch was sent (Date) and when it reached the
// mailbox (the newest Received hop). Either may be absent.
func emailDates(headers map[string][]string) (arrival, dispatch *time.Time) {
	if values := headers["Date"]; len(values) > 0 {
		if t, err := mail.ParseDate(strings.TrimSpace(values[0])); err == nil {
			t = t.UTC()
			dispatch = &t
		}
	}
	if values := headers["Received"]; len(values) > 0 {
		if i := strings.LastIndex(values[0], ";"); i >= 0 {
			if t, err := mail.ParseDate(strings.TrimSpace(values[0][i+1:])); err == nil {
				t = t.UTC()
				arrival = &t
			}
		}
	}
	return arrival, dispatch
}
