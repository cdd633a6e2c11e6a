package supervisor

import (
	"context"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/internal/utils"
)

type Repositories struct {
	Simulations  interfaces.SimulationRepository
	Jobs         interfaces.JobRepository
	Supervisions interfaces.SupervisionRepository
}

type supervisionContext struct {
	pipeline.Base
	request     *dto.SupervisionRequest
	supervision *models.Supervision
	simulation  *models.Simulation
	job         *models.Job
}

func newSupervisionContext(env *message.Envelope) *supervisionContext {
	return &supervisionContext{Base: pipeline.NewBase(env)}
}

// Service formats the corrective script of a supervision (6000) and then
// records its dispatch (6100).
type Service struct {
	repos     Repositories
	publisher interfaces.MessagePublisher
	vocab     *message.Vocabulary
	log       logger.Logger
}

func NewService(repos Repositories, publisher interfaces.MessagePublisher, vocab *message.Vocabulary, log logger.Logger) *Service {
	return &Service{repos: repos, publisher: publisher, vocab: vocab, log: log}
}

func (s *Service) Handler() pipeline.Handler {
	agent := enum.AgentSupervisor.String()

	format := pipeline.New(agent, s.log, []pipeline.Step[*supervisionContext]{
		{Name: "unpack", Run: unpack},
		{Name: "load-supervision", Run: s.loadSupervision},
		{Name: "load-simulation", Run: s.loadSimulation},
		{Name: "render-script", Run: renderScript},
		{Name: "persist-script", Run: s.persist},
		{Name: "request-dispatch", Run: s.requestDispatch},
	}, nil)
	dispatch := pipeline.New(agent, s.log, []pipeline.Step[*supervisionContext]{
		{Name: "unpack", Run: unpack},
		{Name: "load-supervision", Run: s.loadSupervision},
		{Name: "mark-dispatched", Run: s.markDispatched},
	}, nil)

	return routing.NewDispatcher(agent, s.log, routing.Handlers{
		enum.MessageSupervisionFormat:   pipeline.Bind(format, newSupervisionContext),
		enum.MessageSupervisionDispatch: pipeline.Bind(dispatch, newSupervisionContext),
	})
}

func unpack(_ context.Context, c *supervisionContext) error {
	request, err := message.Unmarshal[dto.SupervisionRequest](c.Message)
	if err != nil {
		return err
	}
	if request.SupervisionID == 0 {
		return hermeserrors.NewValidationError("supervision_id", request.SupervisionID)
	}
	c.request = request
	return nil
}

func (s *Service) loadSupervision(ctx context.Context, c *supervisionContext) error {
	supervision, err := s.repos.Supervisions.RetrieveSupervision(ctx, c.request.SupervisionID)
	if errors.Is(err, hermeserrors.ErrNotFound) {
		s.log.Warnw("unknown supervision ignored", "supervision_id", c.request.SupervisionID)
		c.Abort()
		return nil
	}
	if err != nil {
		return err
	}
	c.supervision = supervision
	return nil
}

func (s *Service) loadSimulation(ctx context.Context, c *supervisionContext) error {
	simulation, err := s.repos.Simulations.RetrieveSimulation(ctx, c.supervision.SimulationUID)
	if err != nil {
		return err
	}
	job, err := s.repos.Jobs.RetrieveJob(ctx, c.supervision.JobUID)
	if err != nil {
		return err
	}
	c.simulation, c.job = simulation, job
	return nil
}

func renderScript(_ context.Context, c *supervisionContext) error {
	script, err := Script(c.supervision, c.simulation, c.job)
	if err != nil {
		return err
	}
	c.supervision.Script = script
	return nil
}

func (s *Service) persist(ctx context.Context, c *supervisionContext) error {
	c.supervision.State = enum.SupervisionFormatted
	c.supervision.FormattedDate = utils.TimePtr(utils.Now())
	return s.repos.Supervisions.UpdateSupervision(ctx, c.supervision)
}

func (s *Service) requestDispatch(ctx context.Context, c *supervisionContext) error {
	env, err := message.Build(s.vocab, message.Internal(
		enum.MessageSupervisionDispatch,
		enum.AppSupervisor,
		dto.SupervisionRequest{
			SupervisionID: c.supervision.ID,
			SimulationUID: c.supervision.SimulationUID,
			JobUID:        c.supervision.JobUID,
		},
		c.supervision.SimulationUID,
		c.supervision.JobUID,
	))
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, env)
}

// markDispatched counts every dispatch attempt, a redelivered 6100 included.
func (s *Service) markDispatched(ctx context.Context, c *supervisionContext) error {
	if c.supervision.State == enum.SupervisionPending {
		s.log.Warnw("dispatching supervision without script", "supervision_id", c.supervision.ID)
	}
	c.supervision.State = enum.SupervisionDispatched
	c.supervision.DispatchedDate = utils.TimePtr(utils.Now())
	c.supervision.DispatchTryCount++
	return s.repos.Supervisions.UpdateSupervision(ctx, c.supervision)
}
