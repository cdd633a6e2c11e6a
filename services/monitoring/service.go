package monitoring

import (
	"context"
	"time"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/services/messagelog"
)

type Repositories struct {
	Simulations  interfaces.SimulationRepository
	Jobs         interfaces.JobRepository
	Supervisions interfaces.SupervisionRepository
	Messages     interfaces.MessageRepository
}

// Service consumes the simulation and job lifecycle messages of the
// monitoring queue. Each message type has a pipeline of its own.
type Service struct {
	repos     Repositories
	publisher interfaces.MessagePublisher
	vocab     *message.Vocabulary
	log       logger.Logger
}

func NewService(repos Repositories, publisher interfaces.MessagePublisher, vocab *message.Vocabulary, log logger.Logger) *Service {
	return &Service{repos: repos, publisher: publisher, vocab: vocab, log: log}
}

// Handler delegates every monitoring message to the pipeline of its type.
func (s *Service) Handler() pipeline.Handler {
	agent := enum.AgentMonitoring.String()

	simulationStart := pipeline.Bind(pipeline.New(agent, s.log, s.simulationStartSteps(), nil), newSimulationStartContext)
	simulationEnd := pipeline.Bind(pipeline.New(agent, s.log, s.simulationEndSteps(), nil), newSimulationEventContext)
	jobStart := pipeline.Bind(pipeline.New(agent, s.log, s.jobStartSteps(), nil), newJobStartContext)
	jobEnd := pipeline.Bind(pipeline.New(agent, s.log, s.jobEndSteps(), nil), newJobEventContext)
	jobError := pipeline.Bind(pipeline.New(agent, s.log, s.jobErrorSteps(), nil), newJobEventContext)
	configuration := pipeline.Bind(pipeline.New(agent, s.log, s.configurationSteps(), nil), newConfigurationContext)

	return routing.NewDelegator(agent, s.log, routing.Handlers{
		enum.MessageSimulationStart:         simulationStart,
		enum.MessageSimulationEnd:           simulationEnd,
		enum.MessageSimulationError:         simulationEnd,
		enum.MessageComputeJobStart:         jobStart,
		enum.MessagePostProcessingJobStart:  jobStart,
		enum.MessageComputeJobEnd:           jobEnd,
		enum.MessagePostProcessingJobEnd:    jobEnd,
		enum.MessageComputeJobError:         jobError,
		enum.MessagePostProcessingJobError:  jobError,
		enum.MessageSimulationConfiguration: configuration,
	})
}

// messageLog wraps steps with the duplicate check and message log.
func messageLog[C pipeline.Context](s *Service, steps ...pipeline.Step[C]) []pipeline.Step[C] {
	return messagelog.Steps[C](s.repos.Messages, s.log, steps...)
}

// notify enqueues the front end notification of a lifecycle event.
func (s *Service) notify(ctx context.Context, env *message.Envelope, event enum.FrontEndEvent, simulationUID, jobUID string, isSimulationStart bool) error {
	at := env.Timestamp.Value
	if at.IsZero() {
		at = time.Now().UTC()
	}
	notification, err := message.Build(s.vocab, message.Internal(
		enum.MessageFrontEndNotification,
		enum.AppMonitoring,
		dto.FrontEndNotification{
			EventType:         event.String(),
			SimulationUID:     simulationUID,
			JobUID:            jobUID,
			IsSimulationStart: isSimulationStart,
			Timestamp:         at.Format(time.RFC3339Nano),
		},
		simulationUID,
		jobUID,
	))
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, notification)
}

// eventDate is when the producer emitted env.
func eventDate(env *message.Envelope) time.Time {
	if env.Timestamp.Value.IsZero() {
		return time.Now().UTC()
	}
	return env.Timestamp.Value
}

// firstNonEmpty picks the correlation header over the payload field.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
