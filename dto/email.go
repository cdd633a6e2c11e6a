package dto

import "time"

// RawEmail is one email fetched from the monitored mailbox.
type RawEmail struct {
	UID         uint32
	Raw         []byte
	Body        string
	Headers     map[string][]string
	Attachments []Attachment
}

type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// OutboundEmail is an operator notification.
type OutboundEmail struct {
	To       []string
	Subject  string
	Body     string
	SentAt   time.Time
	Priority string
}
