package monitoring

import (
	"context"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
)

type jobStartContext struct {
	pipeline.Base
	payload *dto.JobStart
	job     *models.Job
}

func newJobStartContext(env *message.Envelope) *jobStartContext {
	return &jobStartContext{Base: pipeline.NewBase(env)}
}

type jobEventContext struct {
	pipeline.Base
	payload     *dto.JobEvent
	job         *models.Job
	simulation  *models.Simulation
	supervision *models.Supervision
}

func newJobEventContext(env *message.Envelope) *jobEventContext {
	return &jobEventContext{Base: pipeline.NewBase(env)}
}

// jobType tells compute jobs (1xxx) from post-processing jobs (2xxx).
func jobType(messageType enum.MessageType) enum.JobType {
	switch messageType {
	case enum.MessagePostProcessingJobStart, enum.MessagePostProcessingJobEnd, enum.MessagePostProcessingJobError:
		return enum.JobPostProcessing
	default:
		return enum.JobCompute
	}
}

func (s *Service) jobStartSteps() []pipeline.Step[*jobStartContext] {
	return messageLog(s,
		pipeline.Step[*jobStartContext]{Name: "unpack", Run: func(_ context.Context, c *jobStartContext) error {
			payload, err := message.Unmarshal[dto.JobStart](c.Message)
			if err != nil {
				return err
			}
			payload.SimulationUID = firstNonEmpty(c.Message.CorrelationID(1), payload.SimulationUID)
			payload.JobUID = firstNonEmpty(c.Message.CorrelationID(2), payload.JobUID)
			if payload.JobUID == "" {
				return hermeserrors.NewValidationError("jobuid", payload.JobUID)
			}
			c.payload = payload
			return nil
		}},
		pipeline.Step[*jobStartContext]{Name: "persist-job", Run: func(ctx context.Context, c *jobStartContext) error {
			started := eventDate(c.Message)
			job, err := s.repos.Jobs.PersistJobStart(ctx, &models.Job{
				JobUID:             c.payload.JobUID,
				SimulationUID:      c.payload.SimulationUID,
				Type:               jobType(c.Message.Type),
				SchedulerID:        c.payload.SchedulerID,
				SubmissionPath:     c.payload.SubmissionPath,
				WarningDelay:       atoi(c.payload.WarningDelay.String(), 0),
				ExecutionStartDate: &started,
			})
			if err != nil {
				return err
			}
			c.job = job
			return nil
		}},
		pipeline.Step[*jobStartContext]{Name: "notify", Run: func(ctx context.Context, c *jobStartContext) error {
			return s.notify(ctx, c.Message, enum.FrontEndJobStart, c.payload.SimulationUID, c.payload.JobUID, false)
		}},
	)
}

func (s *Service) jobEndSteps() []pipeline.Step[*jobEventContext] {
	return messageLog(s,
		s.unpackJobEvent(),
		s.persistJobEnd(false),
		pipeline.Step[*jobEventContext]{Name: "notify", Run: func(ctx context.Context, c *jobEventContext) error {
			return s.notify(ctx, c.Message, enum.FrontEndJobComplete, c.payload.SimulationUID, c.payload.JobUID, false)
		}},
	)
}

// jobErrorSteps records the failure and, for a known simulation, opens a
// supervision that the supervisor agent turns into a corrective script.
func (s *Service) jobErrorSteps() []pipeline.Step[*jobEventContext] {
	return messageLog(s,
		s.unpackJobEvent(),
		s.persistJobEnd(true),
		pipeline.Step[*jobEventContext]{Name: "notify", Run: func(ctx context.Context, c *jobEventContext) error {
			return s.notify(ctx, c.Message, enum.FrontEndJobError, c.payload.SimulationUID, c.payload.JobUID, false)
		}},
		pipeline.Step[*jobEventContext]{Name: "load-simulation", Run: func(ctx context.Context, c *jobEventContext) error {
			if c.payload.SimulationUID == "" {
				c.Abort()
				return nil
			}
			simulation, err := s.repos.Simulations.RetrieveSimulation(ctx, c.payload.SimulationUID)
			if err != nil {
				return err
			}
			if simulation == nil {
				s.log.Infow("job error of unknown simulation not supervised",
					"simulation_uid", c.payload.SimulationUID,
					"job_uid", c.payload.JobUID)
				c.Abort()
				return nil
			}
			c.simulation = simulation
			return nil
		}},
		pipeline.Step[*jobEventContext]{Name: "create-supervision", Run: func(ctx context.Context, c *jobEventContext) error {
			supervision, err := s.repos.Supervisions.CreateSupervision(ctx, &models.Supervision{
				SimulationUID: c.simulation.UID,
				JobUID:        c.payload.JobUID,
				TriggerCode:   c.Message.Type.String(),
				TriggerDate:   eventDate(c.Message),
				State:         enum.SupervisionPending,
			})
			if err != nil {
				return err
			}
			c.supervision = supervision
			return nil
		}},
		pipeline.Step[*jobEventContext]{Name: "request-supervision", Run: func(ctx context.Context, c *jobEventContext) error {
			request, err := message.Build(s.vocab, message.Internal(
				enum.MessageSupervisionFormat,
				enum.AppMonitoring,
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
			return s.publisher.Publish(ctx, request)
		}},
	)
}

func (s *Service) unpackJobEvent() pipeline.Step[*jobEventContext] {
	return pipeline.Step[*jobEventContext]{Name: "unpack", Run: func(_ context.Context, c *jobEventContext) error {
		payload, err := message.Unmarshal[dto.JobEvent](c.Message)
		if err != nil {
			return err
		}
		payload.SimulationUID = firstNonEmpty(c.Message.CorrelationID(1), payload.SimulationUID)
		payload.JobUID = firstNonEmpty(c.Message.CorrelationID(2), payload.JobUID)
		if payload.JobUID == "" {
			return hermeserrors.NewValidationError("jobuid", payload.JobUID)
		}
		c.payload = payload
		return nil
	}}
}

func (s *Service) persistJobEnd(isError bool) pipeline.Step[*jobEventContext] {
	return pipeline.Step[*jobEventContext]{Name: "persist-job", Run: func(ctx context.Context, c *jobEventContext) error {
		ended := eventDate(c.Message)
		job, err := s.repos.Jobs.PersistJobEnd(ctx, &models.Job{
			JobUID:           c.payload.JobUID,
			SimulationUID:    c.payload.SimulationUID,
			Type:             jobType(c.Message.Type),
			ExecutionEndDate: &ended,
			IsError:          isError,
			IsComputeEnd:     c.payload.IsComputeEnd,
		})
		if err != nil {
			return err
		}
		c.job = job
		return nil
	}}
}
