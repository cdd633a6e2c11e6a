package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/tracing"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Exists(ctx context.Context, uid string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Exists")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, uid)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to check message: %w", err)
	}

	return count > 0, nil
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, message.UID)

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *messageRepository) CreateEmailStats(ctx context.Context, stats *models.MessageEmailStats) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.CreateEmailStats")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(stats).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create email stats: %w", err)
	}

	return nil
}
