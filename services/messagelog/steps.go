package messagelog

import (
	"context"

	"github.com/lib/pq"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
)

// Steps wraps the steps of an ingest pipeline: a message already in the log
// was delivered twice and is skipped, and a message is only recorded once
// every step succeeded, so a failed message stays eligible for redelivery.
func Steps[C pipeline.Context](repo interfaces.MessageRepository, log logger.Logger, steps ...pipeline.Step[C]) []pipeline.Step[C] {
	wrapped := make([]pipeline.Step[C], 0, len(steps)+2)
	wrapped = append(wrapped, pipeline.Step[C]{Name: "verify-new", Run: func(ctx context.Context, c C) error {
		env := c.Envelope()
		exists, err := repo.Exists(ctx, env.MessageID)
		if err != nil {
			return err
		}
		if exists {
			log.Infow("duplicate message skipped", "message_id", env.MessageID, "type", env.Type.String())
			c.Abort()
		}
		return nil
	}})
	wrapped = append(wrapped, steps...)
	return append(wrapped, pipeline.Step[C]{Name: "log-message", Run: func(ctx context.Context, c C) error {
		return repo.Create(ctx, Record(c.Envelope()))
	}})
}

// Record is the message log row of env.
func Record(env *message.Envelope) *models.Message {
	headers := make(models.JSONMap, len(env.Headers))
	for k, v := range env.Headers {
		headers[k] = v
	}

	record := &models.Message{
		UID:                env.MessageID,
		Type:               env.Type.String(),
		UserID:             env.UserID.String(),
		AppID:              env.AppID.String(),
		ProducerID:         env.ProducerID.String(),
		ProducerVersion:    env.ProducerVersion,
		CorrelationIDs:     pq.StringArray(env.CorrelationIDs),
		Headers:            headers,
		ContentEncoding:    env.ContentEncoding.String(),
		ContentType:        env.ContentType.String(),
		Content:            string(env.Raw),
		TimestampRaw:       env.Timestamp.Raw,
		TimestampPrecision: env.Timestamp.Precision.String(),
	}
	if !env.Timestamp.Value.IsZero() {
		timestamp := env.Timestamp.Value
		record.Timestamp = &timestamp
	}
	return record
}
