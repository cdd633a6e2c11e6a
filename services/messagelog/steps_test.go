package messagelog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/mocks"
	"github.com/prodiguer/hermes/internal/pipeline"
)

type testContext struct {
	pipeline.Base
	ran bool
}

func TestSteps_RecordsThenSkipsDuplicates(t *testing.T) {
	store := mocks.NewStore()
	steps := Steps[*testContext](store, logger.NewNopLogger(), pipeline.Step[*testContext]{
		Name: "work",
		Run: func(_ context.Context, c *testContext) error {
			c.ran = true
			return nil
		},
	})
	p := pipeline.New("test", logger.NewNopLogger(), steps, nil)

	env, err := message.Build(message.DefaultVocabulary(), message.Internal(
		enum.MessageFrontEndNotification, enum.AppMonitoring, dto.FrontEndNotification{EventType: "job_start"}, "", "17"))
	require.NoError(t, err)

	first := &testContext{Base: pipeline.NewBase(env)}
	assert.Equal(t, pipeline.StatusCompleted, p.Run(context.Background(), first).Status)
	assert.True(t, first.ran)

	second := &testContext{Base: pipeline.NewBase(env)}
	assert.Equal(t, pipeline.StatusAborted, p.Run(context.Background(), second).Status)
	assert.False(t, second.ran)

	record := store.Messages[env.MessageID]
	require.NotNil(t, record)
	assert.Equal(t, "8888", record.Type)
	assert.Equal(t, []string{"", "17"}, []string(record.CorrelationIDs))
	assert.Equal(t, string(env.Raw), record.Content)
	assert.NotNil(t, record.Timestamp)
}

func TestSteps_FailedMessageIsNotRecorded(t *testing.T) {
	store := mocks.NewStore()
	failures := 1
	steps := Steps[*testContext](store, logger.NewNopLogger(), pipeline.Step[*testContext]{
		Name: "work",
		Run: func(_ context.Context, c *testContext) error {
			if failures > 0 {
				failures--
				return errors.New("connection reset by peer")
			}
			c.ran = true
			return nil
		},
	})
	p := pipeline.New("test", logger.NewNopLogger(), steps, nil)

	env, err := message.Build(message.DefaultVocabulary(), message.Internal(
		enum.MessageFrontEndNotification, enum.AppMonitoring, dto.FrontEndNotification{EventType: "job_start"}))
	require.NoError(t, err)

	first := &testContext{Base: pipeline.NewBase(env)}
	assert.Equal(t, pipeline.StatusFailed, p.Run(context.Background(), first).Status)
	assert.NotContains(t, store.Messages, env.MessageID)

	redelivered := &testContext{Base: pipeline.NewBase(env)}
	assert.Equal(t, pipeline.StatusCompleted, p.Run(context.Background(), redelivered).Status)
	assert.True(t, redelivered.ran)
	assert.Contains(t, store.Messages, env.MessageID)
}
