package imap

import (
	"bytes"

	"github.com/jhillyerd/enmime"

	"github.com/prodiguer/hermes/dto"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
)

// ParseEmail splits a raw RFC 822 message into its plain text body, its
// top level headers and its file parts. Inline parts are only kept when
// they carry a file name.
func ParseEmail(uid uint32, raw []byte) (*dto.RawEmail, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, hermeserrors.NewCollaboratorError("imap", "parse", err)
	}

	email := &dto.RawEmail{
		UID:     uid,
		Raw:     raw,
		Body:    envelope.Text,
		Headers: make(map[string][]string),
	}
	if envelope.Root != nil {
		for key, values := range envelope.Root.Header {
			email.Headers[key] = append([]string(nil), values...)
		}
	}

	for _, part := range envelope.Attachments {
		email.Attachments = append(email.Attachments, attachmentFromPart(part))
	}
	for _, part := range envelope.Inlines {
		if part.FileName != "" {
			email.Attachments = append(email.Attachments, attachmentFromPart(part))
		}
	}

	return email, nil
}

func attachmentFromPart(part *enmime.Part) dto.Attachment {
	return dto.Attachment{
		FileName:    part.FileName,
		ContentType: part.ContentType,
		Content:     part.Content,
	}
}
