package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/tracing"
)

type consoRepository struct {
	db *gorm.DB
}

func NewConsoRepository(db *gorm.DB) interfaces.ConsoRepository {
	return &consoRepository{db: db}
}

func (r *consoRepository) PersistAllocation(ctx context.Context, allocation *models.ConsoAllocation) (*models.ConsoAllocation, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "consoRepository.PersistAllocation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, allocation.Project)

	result, created, err := createOrUpdate(ctx, r.db, allocation,
		map[string]interface{}{
			"centre":     allocation.Centre,
			"machine":    allocation.Machine,
			"project":    allocation.Project,
			"start_date": allocation.StartDate,
		},
		map[string]interface{}{
			"end_date":   allocation.EndDate,
			"budget":     allocation.Budget,
			"is_active":  allocation.IsActive,
			"updated_at": time.Now(),
		})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, fmt.Errorf("failed to persist conso allocation: %w", err)
	}

	return result, created, nil
}

func (r *consoRepository) RetrieveAllocation(ctx context.Context, centre, machine, project string, startDate time.Time) (*models.ConsoAllocation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "consoRepository.RetrieveAllocation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, project)

	var allocation models.ConsoAllocation
	err := r.db.WithContext(ctx).
		Where("centre = ? AND machine = ? AND project = ? AND start_date = ?", centre, machine, project, startDate).
		First(&allocation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to retrieve conso allocation: %w", err)
	}

	return &allocation, nil
}

func (r *consoRepository) PersistConsumption(ctx context.Context, consumption *models.ConsoConsumption) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "consoRepository.PersistConsumption")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if consumption.AllocationID == 0 {
		return ErrInvalidInput
	}
	if err := r.db.WithContext(ctx).Create(consumption).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to persist conso consumption: %w", err)
	}

	return nil
}
