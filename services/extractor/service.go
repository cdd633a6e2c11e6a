package extractor

import (
	"context"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/metrics"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/services/storage"
)

// Email batch line outcomes, as counted by metrics.
const (
	StageIncoming      = "incoming"
	StageBase64Error   = "base64_error"
	StageJSONError     = "json_error"
	StageExcluded      = "excluded"
	StageEncodingError = "encoding_error"
	StageOutgoing      = "outgoing"
)

type Config struct {
	ExcludedTypes   []enum.MessageType
	ProcessedAction enum.ProcessedEmailAction
	ProcessedFolder string
}

// Extractor consumes smtp email arrived messages: it reads the announced
// email, turns every line of its body into a message of its own and
// publishes them as one batch.
type Extractor struct {
	config    Config
	excluded  map[enum.MessageType]struct{}
	mail      interfaces.MailClient
	publisher interfaces.MessagePublisher
	messages  interfaces.MessageRepository
	archive   interfaces.StorageService
	factory   envelopeFactory
	log       logger.Logger
	pipeline  *pipeline.Pipeline[*emailContext]
}

type emailContext struct {
	pipeline.Base
	emailUID  uint32
	session   interfaces.MailSession
	email     *dto.RawEmail
	stats     *models.MessageEmailStats
	lines     []string
	decoded   [][]byte
	messages  []subMessage
	envelopes []*message.Envelope
}

// NewExtractor builds the extraction pipeline. archive may be nil, in which
// case processed emails are not archived.
func NewExtractor(config Config, mail interfaces.MailClient, publisher interfaces.MessagePublisher,
	messages interfaces.MessageRepository, archive interfaces.StorageService,
	vocab *message.Vocabulary, routes *routing.Config, log logger.Logger) *Extractor {
	if config.ProcessedAction == "" {
		config.ProcessedAction = enum.ProcessedEmailDelete
	}

	excluded := make(map[enum.MessageType]struct{}, len(config.ExcludedTypes))
	for _, t := range config.ExcludedTypes {
		excluded[t] = struct{}{}
	}

	e := &Extractor{
		config:    config,
		excluded:  excluded,
		mail:      mail,
		publisher: publisher,
		messages:  messages,
		archive:   archive,
		factory:   envelopeFactory{vocab: vocab, appID: appIDResolver(routes)},
		log:       log,
	}

	e.pipeline = pipeline.New(enum.AgentInternalSMTP.String(), log,
		[]pipeline.Step[*emailContext]{
			{Name: "unpack", Run: e.unpack},
			{Name: "connect", Run: e.connect},
			{Name: "fetch", Run: e.fetch},
			{Name: "init-stats", Run: e.initStats},
			{Name: "split", Run: e.split},
			{Name: "decode-base64", Run: e.decodeBase64},
			{Name: "decode-json", Run: e.decodeJSON},
			{Name: "exclude", Run: e.exclude},
			{Name: "merge-attachments", Run: e.mergeAttachments},
			{Name: "build-envelopes", Run: e.buildEnvelopes},
			{Name: "publish", Run: e.publish},
			{Name: "persist-stats", Run: e.persistStats},
			{Name: "archive", Run: e.archiveEmail},
			{Name: "dispose", Run: e.dispose},
			{Name: "close", Run: e.close},
		},
		[]pipeline.ErrorStep[*emailContext]{
			{Name: "close", Run: func(ctx context.Context, c *emailContext, _ error) error {
				return e.close(ctx, c)
			}},
		},
	)
	return e
}

func (e *Extractor) Handle(ctx context.Context, env *message.Envelope) pipeline.Result {
	return e.pipeline.Run(ctx, &emailContext{Base: pipeline.NewBase(env)})
}

// appIDResolver names messages after the agent consuming them.
func appIDResolver(routes *routing.Config) func(enum.MessageType) (enum.AppID, error) {
	return func(messageType enum.MessageType) (enum.AppID, error) {
		agent, err := routes.AgentFor(messageType)
		if err != nil {
			return "", err
		}
		switch agent {
		case enum.AgentMonitoring:
			return enum.AppMonitoring, nil
		case enum.AgentMetricsPCMDI:
			return enum.AppMetrics, nil
		case enum.AgentConso:
			return enum.AppConso, nil
		default:
			return enum.AppLibIGCM, nil
		}
	}
}

func (e *Extractor) unpack(_ context.Context, c *emailContext) error {
	payload, err := message.Unmarshal[dto.SMTPEmailArrived](c.Message)
	if err != nil {
		return err
	}
	if payload.EmailUID == 0 {
		return errors.New("email uid is missing")
	}
	c.emailUID = payload.EmailUID
	return nil
}

func (e *Extractor) connect(ctx context.Context, c *emailContext) error {
	session, err := e.mail.Connect(ctx)
	if err != nil {
		return err
	}
	c.session = session
	return nil
}

func (e *Extractor) fetch(ctx context.Context, c *emailContext) error {
	email, err := c.session.Fetch(ctx, c.emailUID)
	if err != nil {
		return err
	}
	c.email = email
	return nil
}

func (e *Extractor) initStats(_ context.Context, c *emailContext) error {
	arrival, dispatch := emailDates(c.email.Headers)
	c.stats = &models.MessageEmailStats{
		EmailUID:       c.emailUID,
		ArrivalDate:    arrival,
		DispatchDate:   dispatch,
		OutgoingByType: models.CountMap{},
	}
	return nil
}

func (e *Extractor) split(_ context.Context, c *emailContext) error {
	c.lines = splitLines(c.email.Body)
	c.stats.Incoming = len(c.lines)
	return nil
}

func (e *Extractor) decodeBase64(_ context.Context, c *emailContext) error {
	c.decoded, c.stats.ErrorsDecodingBase64 = decodeBase64Lines(c.lines)
	return nil
}

func (e *Extractor) decodeJSON(_ context.Context, c *emailContext) error {
	c.messages, c.stats.ErrorsDecodingJSON = parseJSONLines(c.decoded)
	return nil
}

func (e *Extractor) exclude(_ context.Context, c *emailContext) error {
	c.messages, c.stats.Excluded = exclude(c.messages, e.excluded)
	return nil
}

func (e *Extractor) mergeAttachments(_ context.Context, c *emailContext) error {
	if len(c.email.Attachments) > 0 && len(c.messages) > 1 {
		e.log.Warnw("attachments not merged into a batch of several messages",
			"email_uid", c.emailUID,
			"messages", len(c.messages),
			"attachments", len(c.email.Attachments))
	}
	c.messages = mergeAttachments(c.messages, c.email.Attachments)
	return nil
}

func (e *Extractor) buildEnvelopes(_ context.Context, c *emailContext) error {
	for _, m := range c.messages {
		env, err := e.factory.build(m, c.emailUID)
		if err != nil {
			c.stats.ErrorsEncodingAMQP++
			e.log.Warnw("sub-message could not be encoded",
				"email_uid", c.emailUID,
				"msg_code", m.text(FieldCode),
				"msg_uid", m.text(FieldUID),
				"error", err.Error())
			continue
		}
		c.envelopes = append(c.envelopes, env)
	}
	return nil
}

func (e *Extractor) publish(ctx context.Context, c *emailContext) error {
	if len(c.envelopes) == 0 {
		e.log.Infow("email carried nothing to dispatch", "email_uid", c.emailUID)
		return nil
	}
	if err := e.publisher.Publish(ctx, c.envelopes...); err != nil {
		return err
	}
	for _, env := range c.envelopes {
		c.stats.OutgoingByType[env.Type.String()]++
	}
	c.stats.Outgoing = len(c.envelopes)
	return nil
}

func (e *Extractor) persistStats(ctx context.Context, c *emailContext) error {
	metrics.EmailBatchLinesTotal.WithLabelValues(StageIncoming).Add(float64(c.stats.Incoming))
	metrics.EmailBatchLinesTotal.WithLabelValues(StageBase64Error).Add(float64(c.stats.ErrorsDecodingBase64))
	metrics.EmailBatchLinesTotal.WithLabelValues(StageJSONError).Add(float64(c.stats.ErrorsDecodingJSON))
	metrics.EmailBatchLinesTotal.WithLabelValues(StageExcluded).Add(float64(c.stats.Excluded))
	metrics.EmailBatchLinesTotal.WithLabelValues(StageEncodingError).Add(float64(c.stats.ErrorsEncodingAMQP))
	metrics.EmailBatchLinesTotal.WithLabelValues(StageOutgoing).Add(float64(c.stats.Outgoing))

	return e.messages.CreateEmailStats(ctx, c.stats)
}

func (e *Extractor) archiveEmail(ctx context.Context, c *emailContext) error {
	if e.archive == nil {
		return nil
	}
	return e.archive.Upload(ctx, storage.EmailKey(c.emailUID), c.email.Raw, storage.EmailContentType)
}

func (e *Extractor) dispose(ctx context.Context, c *emailContext) error {
	if e.config.ProcessedAction == enum.ProcessedEmailMove {
		return c.session.Move(ctx, c.emailUID, e.config.ProcessedFolder)
	}
	return c.session.Delete(ctx, c.emailUID)
}

// close releases the mail session. It runs last on success and as the
// error step on failure, so a session is never leaked.
func (e *Extractor) close(_ context.Context, c *emailContext) error {
	if c.session == nil {
		return nil
	}
	session := c.session
	c.session = nil
	return session.Close()
}
