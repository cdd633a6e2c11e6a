package imap

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/commands"

	"github.com/prodiguer/hermes/dto"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/tracing"
)

// session is one logged in connection with the monitored folder selected.
// It is scoped to the processing of a single message and is not safe for
// concurrent use.
type session struct {
	client *client.Client
	folder string
	log    logger.Logger

	closeOnce sync.Once
	closed    bool
}

// UIDs lists the emails of the folder that are not flagged for deletion.
func (s *session) UIDs(ctx context.Context) ([]uint32, error) {
	span, _ := tracing.StartTracerSpan(ctx, "IMAPSession.UIDs")
	defer span.Finish()

	if s.closed {
		return nil, hermeserrors.ErrMailSessionClosed
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}
	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "search", err)
	}
	span.LogKV("uids.count", len(uids))
	return uids, nil
}

// Fetch downloads the full RFC 822 message without marking it seen and
// parses it.
func (s *session) Fetch(ctx context.Context, uid uint32) (*dto.RawEmail, error) {
	span, _ := tracing.StartTracerSpan(ctx, "IMAPSession.Fetch")
	defer span.Finish()
	span.SetTag("uid", uid)

	if s.closed {
		return nil, hermeserrors.ErrMailSessionClosed
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := s.client.UidFetch(seqSet, items, messages); err != nil {
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "fetch", err)
	}

	msg, ok := <-messages
	if !ok || msg == nil {
		err := fmt.Errorf("message with UID %d not found", uid)
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "fetch", err)
	}

	body := msg.GetBody(section)
	if body == nil {
		err := fmt.Errorf("message with UID %d has no body", uid)
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "fetch", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "fetch", err)
	}

	email, err := ParseEmail(uid, raw)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("attachments.count", len(email.Attachments))
	return email, nil
}

// expunge is the EXPUNGE command restricted to a sequence set, sent as
// UID EXPUNGE on servers announcing UIDPLUS.
type expunge struct {
	seqSet *imap.SeqSet
}

func (cmd *expunge) Command() *imap.Command {
	return &imap.Command{Name: "EXPUNGE", Arguments: []interface{}{cmd.seqSet}}
}

// uidExpunge removes only the emails of seqSet. Servers without UIDPLUS get
// a plain EXPUNGE, which also removes any other email already flagged
// deleted in the folder.
func (s *session) uidExpunge(seqSet *imap.SeqSet) error {
	supported, err := s.client.Support("UIDPLUS")
	if err != nil {
		return err
	}
	if !supported {
		s.log.Warn("IMAP server lacks UIDPLUS, expunging the whole folder")
		return s.client.Expunge(nil)
	}

	status, err := s.client.Execute(&commands.Uid{Cmd: &expunge{seqSet: seqSet}}, nil)
	if err != nil {
		return err
	}
	return status.Err()
}

// Delete flags the email deleted and expunges it.
func (s *session) Delete(ctx context.Context, uid uint32) error {
	span, _ := tracing.StartTracerSpan(ctx, "IMAPSession.Delete")
	defer span.Finish()
	span.SetTag("uid", uid)

	if s.closed {
		return hermeserrors.ErrMailSessionClosed
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.client.UidStore(seqSet, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("imap", "delete", err)
	}
	if err := s.uidExpunge(seqSet); err != nil {
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("imap", "expunge", err)
	}
	return nil
}

// Move copies the email to folder then deletes it from the monitored folder.
func (s *session) Move(ctx context.Context, uid uint32, folder string) error {
	span, ctx := tracing.StartTracerSpan(ctx, "IMAPSession.Move")
	defer span.Finish()
	span.SetTag("uid", uid)
	span.SetTag("folder", folder)

	if s.closed {
		return hermeserrors.ErrMailSessionClosed
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	if err := s.client.UidCopy(seqSet, folder); err != nil {
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("imap", "copy", err)
	}
	return s.Delete(ctx, uid)
}

// Size is the number of emails in the monitored folder.
func (s *session) Size(ctx context.Context) (int, error) {
	span, _ := tracing.StartTracerSpan(ctx, "IMAPSession.Size")
	defer span.Finish()

	if s.closed {
		return 0, hermeserrors.ErrMailSessionClosed
	}

	status, err := s.client.Select(s.folder, false)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, hermeserrors.NewCollaboratorError("imap", "select", err)
	}
	span.LogKV("mailbox.size", status.Messages)
	return int(status.Messages), nil
}

// Close logs out. It is safe to call more than once.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		if logoutErr := s.client.Logout(); logoutErr != nil && logoutErr != client.ErrAlreadyLoggedOut {
			s.log.Warnf("Error during logout: %v", logoutErr)
			err = hermeserrors.NewCollaboratorError("imap", "logout", logoutErr)
		}
	})
	return err
}
