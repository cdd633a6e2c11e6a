package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/tracing"
)

type simulationRepository struct {
	db *gorm.DB
}

func NewSimulationRepository(db *gorm.DB) interfaces.SimulationRepository {
	return &simulationRepository{db: db}
}

// PersistSimulationStart creates the simulation, or refreshes it when a
// start message for the same uid was already recorded.
func (r *simulationRepository) PersistSimulationStart(ctx context.Context, simulation *models.Simulation) (*models.Simulation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.PersistSimulationStart")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, simulation.UID)

	if simulation.UID == "" {
		return nil, ErrInvalidInput
	}
	simulation.ExecutionState = enum.ExecutionRunning

	result, _, err := createOrUpdate(ctx, r.db, simulation,
		map[string]interface{}{"uid": simulation.UID},
		map[string]interface{}{
			"hashid":               simulation.HashID,
			"name":                 simulation.Name,
			"activity":             simulation.Activity,
			"model":                simulation.Model,
			"experiment":           simulation.Experiment,
			"space":                simulation.Space,
			"compute_node":         simulation.ComputeNode,
			"compute_node_login":   simulation.ComputeNodeLogin,
			"compute_node_machine": simulation.ComputeNodeMachine,
			"accounting_project":   simulation.AccountingProject,
			"output_path":          simulation.OutputPath,
			"try_id":               simulation.TryID,
			"execution_state":      enum.ExecutionRunning,
			"execution_start_date": simulation.ExecutionStartDate,
			"updated_at":           time.Now(),
		})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to persist simulation start: %w", err)
	}

	return result, nil
}

func (r *simulationRepository) PersistSimulationEnd(ctx context.Context, uid string, endDate time.Time, isError bool) (*models.Simulation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.PersistSimulationEnd")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, uid)

	state := enum.ExecutionComplete
	if isError {
		state = enum.ExecutionError
	}

	result := r.db.WithContext(ctx).
		Model(&models.Simulation{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{
			"execution_end_date": endDate,
			"execution_state":    state,
			"is_error":           isError,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to persist simulation end: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrSimulationNotFound
	}

	return r.RetrieveSimulation(ctx, uid)
}

func (r *simulationRepository) RetrieveSimulation(ctx context.Context, uid string) (*models.Simulation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.RetrieveSimulation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, uid)

	var simulation models.Simulation
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&simulation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to retrieve simulation: %w", err)
	}

	return &simulation, nil
}

// RetrieveActiveSimulation returns the most recent simulation with the given
// hashid that has not been made obsolete.
func (r *simulationRepository) RetrieveActiveSimulation(ctx context.Context, hashID string) (*models.Simulation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.RetrieveActiveSimulation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var simulation models.Simulation
	err := r.db.WithContext(ctx).
		Where("hashid = ? AND is_obsolete = ?", hashID, false).
		Order("execution_start_date DESC NULLS LAST, id DESC").
		First(&simulation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to retrieve active simulation: %w", err)
	}

	return &simulation, nil
}

// ObsoleteSimulations flags every other simulation sharing hashID, which
// happens when a simulation is restarted under a new uid.
func (r *simulationRepository) ObsoleteSimulations(ctx context.Context, hashID, exceptUID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.ObsoleteSimulations")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if hashID == "" {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Simulation{}).
		Where("hashid = ? AND uid <> ? AND is_obsolete = ?", hashID, exceptUID, false).
		Updates(map[string]interface{}{
			"is_obsolete":     true,
			"execution_state": enum.ExecutionObsoleted,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to obsolete simulations: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *simulationRepository) PersistSimulationConfiguration(ctx context.Context, simulationUID, card string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.PersistSimulationConfiguration")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, simulationUID)

	_, _, err := createOrUpdate(ctx, r.db,
		&models.SimulationConfiguration{SimulationUID: simulationUID, Card: card},
		map[string]interface{}{"simulation_uid": simulationUID},
		map[string]interface{}{"card": card, "updated_at": time.Now()})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to persist simulation configuration: %w", err)
	}

	return nil
}

// DeleteSimulation removes a simulation together with its jobs,
// configuration, supervisions and logged messages.
func (r *simulationRepository) DeleteSimulation(ctx context.Context, uid string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "simulationRepository.DeleteSimulation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, uid)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("simulation_uid = ?", uid).Delete(&models.Supervision{}).Error; err != nil {
			return err
		}
		if err := tx.Where("simulation_uid = ?", uid).Delete(&models.Job{}).Error; err != nil {
			return err
		}
		if err := tx.Where("simulation_uid = ?", uid).Delete(&models.SimulationConfiguration{}).Error; err != nil {
			return err
		}
		if err := tx.Where("? = ANY(correlation_ids)", uid).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("uid = ?", uid).Delete(&models.Simulation{}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete simulation: %w", err)
	}

	return nil
}
