package smtp

import (
	"bytes"
	"fmt"
	"mime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
)

var priorityHeaders = map[string]string{
	"high":   "1 (Highest)",
	"normal": "3 (Normal)",
	"low":    "5 (Lowest)",
}

// buildMessage renders email as a plain text RFC 5322 message.
func buildMessage(from string, recipients []string, email *dto.OutboundEmail, messageID string) (*bytes.Buffer, error) {
	if messageID == "" {
		return nil, errors.New("message id is required")
	}

	sentAt := email.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	headers := map[string]string{
		"From":                      from,
		"To":                        strings.Join(recipients, ", "),
		"Subject":                   mime.QEncoding.Encode("utf-8", email.Subject),
		"Date":                      sentAt.Format(time.RFC1123Z),
		"Message-ID":                messageID,
		"MIME-Version":              "1.0",
		"Content-Type":              "text/plain; charset=UTF-8",
		"Content-Transfer-Encoding": "8bit",
	}
	if value, ok := priorityHeaders[strings.ToLower(email.Priority)]; ok {
		headers["X-Priority"] = value
	}

	buffer := bytes.NewBuffer(nil)
	writeHeaders(headers, buffer)

	body := strings.ReplaceAll(email.Body, "\r\n", "\n")
	if _, err := buffer.WriteString(strings.ReplaceAll(body, "\n", "\r\n")); err != nil {
		return nil, err
	}
	return buffer, nil
}

// writeHeaders writes headers in a stable order followed by the blank line
// ending the header block.
func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	buffer.WriteString("\r\n")
}
