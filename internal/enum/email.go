package enum

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "startTLS"
)

func (t EmailSecurity) String() string {
	return string(t)
}

// ProcessedEmailAction is what happens to a source email once its batch has
// been published.
type ProcessedEmailAction string

const (
	ProcessedEmailDelete ProcessedEmailAction = "delete"
	ProcessedEmailMove   ProcessedEmailAction = "move"
)

func (t ProcessedEmailAction) String() string {
	return string(t)
}
