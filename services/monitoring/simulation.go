package monitoring

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
)

type simulationStartContext struct {
	pipeline.Base
	payload    *dto.SimulationStart
	simulation *models.Simulation
	job        *models.Job
}

func newSimulationStartContext(env *message.Envelope) *simulationStartContext {
	return &simulationStartContext{Base: pipeline.NewBase(env)}
}

type simulationEventContext struct {
	pipeline.Base
	payload    *dto.SimulationEvent
	simulation *models.Simulation
}

func newSimulationEventContext(env *message.Envelope) *simulationEventContext {
	return &simulationEventContext{Base: pipeline.NewBase(env)}
}

type configurationContext struct {
	pipeline.Base
	payload *dto.SimulationConfiguration
}

func newConfigurationContext(env *message.Envelope) *configurationContext {
	return &configurationContext{Base: pipeline.NewBase(env)}
}

func (s *Service) simulationStartSteps() []pipeline.Step[*simulationStartContext] {
	return messageLog(s,
		pipeline.Step[*simulationStartContext]{Name: "unpack", Run: func(_ context.Context, c *simulationStartContext) error {
			payload, err := message.Unmarshal[dto.SimulationStart](c.Message)
			if err != nil {
				return err
			}
			payload.SimulationUID = firstNonEmpty(c.Message.CorrelationID(1), payload.SimulationUID)
			payload.JobUID = firstNonEmpty(c.Message.CorrelationID(2), payload.JobUID)
			if payload.SimulationUID == "" {
				return hermeserrors.NewValidationError("simuid", payload.SimulationUID)
			}
			c.payload = payload
			return nil
		}},
		pipeline.Step[*simulationStartContext]{Name: "persist-simulation", Run: func(ctx context.Context, c *simulationStartContext) error {
			simulation, err := s.repos.Simulations.PersistSimulationStart(ctx, newSimulation(c.payload, c.Message))
			if err != nil {
				return err
			}
			c.simulation = simulation
			return nil
		}},
		pipeline.Step[*simulationStartContext]{Name: "persist-job", Run: func(ctx context.Context, c *simulationStartContext) error {
			if c.payload.JobUID == "" {
				s.log.Warnw("simulation start without job uid", "simulation_uid", c.payload.SimulationUID)
				return nil
			}
			started := eventDate(c.Message)
			job, err := s.repos.Jobs.PersistJobStart(ctx, &models.Job{
				JobUID:             c.payload.JobUID,
				SimulationUID:      c.payload.SimulationUID,
				Type:               enum.JobCompute,
				SchedulerID:        c.payload.SchedulerID,
				SubmissionPath:     c.payload.SubmissionPath,
				WarningDelay:       atoi(c.payload.WarningDelay.String(), 0),
				ExecutionStartDate: &started,
				IsStartup:          true,
			})
			if err != nil {
				return err
			}
			c.job = job
			return nil
		}},
		pipeline.Step[*simulationStartContext]{Name: "obsolete-previous", Run: func(ctx context.Context, c *simulationStartContext) error {
			count, err := s.repos.Simulations.ObsoleteSimulations(ctx, c.simulation.HashID, c.simulation.UID)
			if err != nil {
				return err
			}
			if count > 0 {
				s.log.Infow("previous simulations obsoleted", "hashid", c.simulation.HashID, "count", count)
			}
			return nil
		}},
		pipeline.Step[*simulationStartContext]{Name: "notify", Run: func(ctx context.Context, c *simulationStartContext) error {
			return s.notify(ctx, c.Message, enum.FrontEndJobStart, c.payload.SimulationUID, c.payload.JobUID, true)
		}},
	)
}

func (s *Service) simulationEndSteps() []pipeline.Step[*simulationEventContext] {
	return messageLog(s,
		pipeline.Step[*simulationEventContext]{Name: "unpack", Run: func(_ context.Context, c *simulationEventContext) error {
			payload, err := message.Unmarshal[dto.SimulationEvent](c.Message)
			if err != nil {
				return err
			}
			payload.SimulationUID = firstNonEmpty(c.Message.CorrelationID(1), payload.SimulationUID)
			if payload.SimulationUID == "" {
				return hermeserrors.NewValidationError("simuid", payload.SimulationUID)
			}
			c.payload = payload
			return nil
		}},
		pipeline.Step[*simulationEventContext]{Name: "persist-simulation", Run: func(ctx context.Context, c *simulationEventContext) error {
			isError := c.Message.Type == enum.MessageSimulationError
			simulation, err := s.repos.Simulations.PersistSimulationEnd(ctx, c.payload.SimulationUID, eventDate(c.Message), isError)
			if errors.Is(err, hermeserrors.ErrNotFound) {
				s.log.Warnw("end of unknown simulation ignored", "simulation_uid", c.payload.SimulationUID, "type", c.Message.Type.String())
				c.Abort()
				return nil
			}
			if err != nil {
				return err
			}
			c.simulation = simulation
			return nil
		}},
		pipeline.Step[*simulationEventContext]{Name: "notify", Run: func(ctx context.Context, c *simulationEventContext) error {
			event := enum.FrontEndSimulationComplete
			if c.simulation.IsError {
				event = enum.FrontEndSimulationError
			}
			return s.notify(ctx, c.Message, event, c.simulation.UID, c.payload.JobUID, false)
		}},
	)
}

func (s *Service) configurationSteps() []pipeline.Step[*configurationContext] {
	return messageLog(s,
		pipeline.Step[*configurationContext]{Name: "unpack", Run: func(_ context.Context, c *configurationContext) error {
			payload, err := message.Unmarshal[dto.SimulationConfiguration](c.Message)
			if err != nil {
				return err
			}
			payload.SimulationUID = firstNonEmpty(c.Message.CorrelationID(1), payload.SimulationUID)
			if payload.SimulationUID == "" {
				return hermeserrors.NewValidationError("simuid", payload.SimulationUID)
			}
			c.payload = payload
			return nil
		}},
		pipeline.Step[*configurationContext]{Name: "persist-configuration", Run: func(ctx context.Context, c *configurationContext) error {
			return s.repos.Simulations.PersistSimulationConfiguration(ctx, c.payload.SimulationUID, c.payload.Configuration)
		}},
	)
}

func newSimulation(payload *dto.SimulationStart, env *message.Envelope) *models.Simulation {
	started := eventDate(env)
	simulation := &models.Simulation{
		UID:                payload.SimulationUID,
		Name:               payload.Name,
		Activity:           payload.Activity,
		Model:              payload.Model,
		Experiment:         payload.Experiment,
		Space:              payload.Space,
		ComputeNode:        payload.ComputeNode,
		ComputeNodeLogin:   payload.ComputeNodeLogin,
		ComputeNodeMachine: payload.ComputeNodeMachine,
		AccountingProject:  payload.AccountingProject,
		OutputPath:         payload.OutputPath,
		TryID:              atoi(payload.TryID.String(), 1),
		ExecutionStartDate: &started,
	}
	simulation.HashID = HashID(simulation)
	return simulation
}

// HashID identifies a simulation across restarts: every try of the same
// run shares it while each try has its own uid.
func HashID(simulation *models.Simulation) string {
	key := strings.Join([]string{
		simulation.Activity,
		simulation.ComputeNode,
		simulation.ComputeNodeLogin,
		simulation.ComputeNodeMachine,
		simulation.Experiment,
		simulation.Model,
		simulation.Name,
		simulation.Space,
	}, "|")
	sum := sha1.Sum([]byte(strings.ToLower(key)))
	return hex.EncodeToString(sum[:])
}

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}
