package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/tracing"
)

type supervisionRepository struct {
	db *gorm.DB
}

func NewSupervisionRepository(db *gorm.DB) interfaces.SupervisionRepository {
	return &supervisionRepository{db: db}
}

func (r *supervisionRepository) CreateSupervision(ctx context.Context, supervision *models.Supervision) (*models.Supervision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "supervisionRepository.CreateSupervision")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, supervision.JobUID)

	if supervision.State == "" {
		supervision.State = enum.SupervisionPending
	}
	if err := r.db.WithContext(ctx).Create(supervision).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to create supervision: %w", err)
	}

	return supervision, nil
}

func (r *supervisionRepository) RetrieveSupervision(ctx context.Context, id uint) (*models.Supervision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "supervisionRepository.RetrieveSupervision")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var supervision models.Supervision
	err := r.db.WithContext(ctx).First(&supervision, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupervisionNotFound
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to retrieve supervision: %w", err)
	}

	return &supervision, nil
}

func (r *supervisionRepository) UpdateSupervision(ctx context.Context, supervision *models.Supervision) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "supervisionRepository.UpdateSupervision")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Save(supervision).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update supervision: %w", err)
	}

	return nil
}
