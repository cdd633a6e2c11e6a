package imap

import (
	"context"
	"strconv"
	"sync"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/tracing"
)

// Poller announces every new email of the monitored mailbox with one
// smtp email arrived message. UIDs already announced by this process are
// remembered until they leave the mailbox.
type Poller struct {
	client    interfaces.MailClient
	publisher interfaces.MessagePublisher
	vocab     *message.Vocabulary
	log       logger.Logger

	mu   sync.Mutex
	seen map[uint32]struct{}
}

func NewPoller(client interfaces.MailClient, publisher interfaces.MessagePublisher, vocab *message.Vocabulary, log logger.Logger) *Poller {
	return &Poller{
		client:    client,
		publisher: publisher,
		vocab:     vocab,
		log:       log,
		seen:      make(map[uint32]struct{}),
	}
}

// Poll runs one polling cycle and returns the number of emails announced.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	span, ctx := tracing.StartTracerSpan(ctx, "Poller.Poll")
	defer span.Finish()
	tracing.TagComponentCronJob(span)
	tracing.TagAgent(span, enum.AgentSMTPRealtime.String())

	mailSession, err := p.client.Connect(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	defer func() {
		if err := mailSession.Close(); err != nil {
			p.log.Warnf("Failed to close mail session: %v", err)
		}
	}()

	uids, err := mailSession.UIDs(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	present := make(map[uint32]struct{}, len(uids))
	var envelopes []*message.Envelope
	var announced []uint32
	for _, uid := range uids {
		present[uid] = struct{}{}
		if _, ok := p.seen[uid]; ok {
			continue
		}
		env, err := message.Build(p.vocab, message.Internal(
			enum.MessageSMTPEmailArrived,
			enum.AppSMTP,
			dto.SMTPEmailArrived{EmailUID: uid},
			strconv.FormatUint(uint64(uid), 10),
		))
		if err != nil {
			tracing.TraceErr(span, err)
			return 0, err
		}
		envelopes = append(envelopes, env)
		announced = append(announced, uid)
	}

	if len(envelopes) > 0 {
		if err := p.publisher.Publish(ctx, envelopes...); err != nil {
			tracing.TraceErr(span, err)
			return 0, err
		}
	}

	for uid := range p.seen {
		if _, ok := present[uid]; !ok {
			delete(p.seen, uid)
		}
	}
	for _, uid := range announced {
		p.seen[uid] = struct{}{}
	}

	span.LogKV("uids.count", len(uids), "announced.count", len(announced))
	if len(announced) > 0 {
		p.log.Infof("Announced %d new emails", len(announced))
	}
	return len(announced), nil
}
