package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/prodiguer/hermes/config"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/repository"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/services/alerts"
	"github.com/prodiguer/hermes/services/checker"
	"github.com/prodiguer/hermes/services/conso"
	"github.com/prodiguer/hermes/services/events"
	"github.com/prodiguer/hermes/services/extractor"
	"github.com/prodiguer/hermes/services/imap"
	"github.com/prodiguer/hermes/services/monitoring"
	"github.com/prodiguer/hermes/services/notification"
	"github.com/prodiguer/hermes/services/pcmdi"
	"github.com/prodiguer/hermes/services/smtp"
	"github.com/prodiguer/hermes/services/storage"
	"github.com/prodiguer/hermes/services/storage/aws_client"
	"github.com/prodiguer/hermes/services/supervisor"
)

var databaseAgents = map[enum.AgentType]bool{
	enum.AgentMonitoring:   true,
	enum.AgentMetricsPCMDI: true,
	enum.AgentConso:        true,
	enum.AgentSupervisor:   true,
	enum.AgentInternalSMTP: true,
}

// RequiresDatabase reports whether agent reads or writes the relational
// database.
func RequiresDatabase(agent enum.AgentType) bool {
	return databaseAgents[agent]
}

// RequiresMetricsDatabase reports whether agent writes metric documents.
func RequiresMetricsDatabase(agent enum.AgentType) bool {
	return agent == enum.AgentMetricsPCMDI
}

// Services is everything one agent process runs: a queue consumer, or one
// of the two scheduled SMTP jobs.
type Services struct {
	Agent      enum.AgentType
	Events     *events.EventsService
	Subscriber interfaces.MessageSubscriber
	Vocabulary *message.Vocabulary
	Routes     *routing.Config
	Handler    pipeline.Handler
	Poller     *imap.Poller
	Checker    *checker.Checker
	Redis      *redis.Client

	closers []func() error
}

// InitServices builds the services of agent. repos is only used by the
// agents RequiresDatabase names.
func InitServices(ctx context.Context, cfg *config.Config, agent enum.AgentType, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	vocab := message.DefaultVocabulary()
	routes := routing.DefaultConfig()
	if RequiresDatabase(agent) && repos == nil {
		return nil, errors.Errorf("agent %s requires the database", agent)
	}

	publisherConfig := events.DefaultPublisherConfig()
	publisherConfig.Mode = cfg.AppConfig.Mode
	publisherConfig.MessageTTL = time.Duration(cfg.BrokerConfig.MessageTTLHours) * time.Hour
	publisherConfig.MaxRetries = cfg.BrokerConfig.MaxRetries

	subscriberConfig := events.DefaultSubscriberConfig()
	subscriberConfig.Prefetch = cfg.BrokerConfig.Prefetch

	eventsService, err := events.NewEventsService(cfg.BrokerConfig.URL, routes, vocab, log, publisherConfig, subscriberConfig)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Agent:      agent,
		Events:     eventsService,
		Subscriber: eventsService.Subscriber,
		Vocabulary: vocab,
		Routes:     routes,
		closers:    []func() error{eventsService.Close},
	}

	if err := s.initAgent(ctx, cfg, log, repos); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Services) initAgent(ctx context.Context, cfg *config.Config, log logger.Logger, repos *repository.Repositories) error {
	publisher := s.Events.Publisher

	switch s.Agent {
	case enum.AgentMonitoring:
		s.Handler = monitoring.NewService(monitoring.Repositories{
			Simulations:  repos.SimulationRepository,
			Jobs:         repos.JobRepository,
			Supervisions: repos.SupervisionRepository,
			Messages:     repos.MessageRepository,
		}, publisher, s.Vocabulary, log).Handler()

	case enum.AgentMetricsPCMDI:
		if repos.MetricsRepository == nil {
			return errors.New("metrics-pcmdi requires the metrics database")
		}
		s.Handler = pcmdi.NewService(repos.MessageRepository, repos.MetricsRepository, log).Handler()

	case enum.AgentConso:
		s.Handler = conso.NewService(repos.ConsoRepository, repos.MessageRepository, publisher, s.Vocabulary, log).Handler()

	case enum.AgentSupervisor:
		s.Handler = supervisor.NewService(supervisor.Repositories{
			Simulations:  repos.SimulationRepository,
			Jobs:         repos.JobRepository,
			Supervisions: repos.SupervisionRepository,
		}, publisher, s.Vocabulary, log).Handler()

	case enum.AgentFrontEnd:
		client, err := notification.NewRedisClient(ctx, notification.RedisConfig{
			Host:     cfg.RedisConfig.Host,
			Port:     cfg.RedisConfig.Port,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		if err != nil {
			return err
		}
		s.Redis = client
		s.closers = append(s.closers, client.Close)
		relay := notification.NewRedisRelay(client, cfg.RedisConfig.Channel)
		s.Handler = notification.NewService(relay, log).Handler()

	case enum.AgentAlert:
		mailer, err := newMailer(cfg.SMTPConfig, log)
		if err != nil {
			return err
		}
		dispatcher := alerts.NewDispatcher(alerts.Config{Recipients: cfg.SMTPConfig.Recipients}, mailer, log)
		s.Handler = routing.NewDispatcher(s.Agent.String(), log, routing.Handlers{
			enum.MessageOperatorAlert: dispatcher,
		})

	case enum.AgentInternalSMTP:
		archive, err := newArchive(cfg.StorageConfig)
		if err != nil {
			return err
		}
		e := extractor.NewExtractor(extractor.Config{
			ExcludedTypes:   messageTypes(cfg.ExtractorConfig.ExcludedTypes),
			ProcessedAction: enum.ProcessedEmailAction(cfg.IMAPConfig.ProcessedAction),
			ProcessedFolder: cfg.IMAPConfig.ProcessedFolder,
		}, newMailClient(cfg.IMAPConfig, log), publisher, repos.MessageRepository, archive, s.Vocabulary, s.Routes, log)
		s.Handler = routing.NewDispatcher(s.Agent.String(), log, routing.Handlers{
			enum.MessageSMTPEmailArrived: e,
		})

	case enum.AgentSMTPRealtime:
		s.Poller = imap.NewPoller(newMailClient(cfg.IMAPConfig, log), publisher, s.Vocabulary, log)

	case enum.AgentSMTPChecker:
		s.Checker = checker.NewChecker(checker.Config{
			RetryDelay:    time.Duration(cfg.CheckerConfig.RetryDelayInSeconds) * time.Second,
			MaxEmails:     cfg.CheckerConfig.MaxEmails,
			LatencyMaxSec: cfg.CheckerConfig.LatencyMaxSec,
		}, newMailClient(cfg.IMAPConfig, log), publisher, s.Vocabulary, log)

	default:
		return errors.Errorf("unknown agent type %q", s.Agent)
	}
	return nil
}

// Close releases the connections in reverse order of opening.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newMailClient(cfg *config.IMAPConfig, log logger.Logger) interfaces.MailClient {
	return imap.NewClient(imap.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Security: enum.EmailSecurity(cfg.Security),
		Username: cfg.Username,
		Password: cfg.Password,
		Folder:   cfg.Folder,
	}, log)
}

func newMailer(cfg *config.SMTPConfig, log logger.Logger) (interfaces.Mailer, error) {
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("no alert recipients configured")
	}
	return smtp.NewMailer(smtp.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Security: enum.EmailSecurity(cfg.Security),
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, log)
}

// newArchive returns nil when no archive bucket is configured.
func newArchive(cfg *config.StorageConfig) (interfaces.StorageService, error) {
	if cfg.ArchiveBucket == "" {
		return nil, nil
	}
	client, err := aws_client.NewS3Client(aws_client.ClientConfig{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewStorageService(client, storage.StorageConfig{BucketName: cfg.ArchiveBucket}), nil
}

func messageTypes(codes []string) []enum.MessageType {
	types := make([]enum.MessageType, 0, len(codes))
	for _, code := range codes {
		types = append(types, enum.MessageType(code))
	}
	return types
}
