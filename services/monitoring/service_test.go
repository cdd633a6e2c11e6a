package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/mocks"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
)

var producedAt = time.Date(2016, 3, 3, 10, 13, 20, 0, time.UTC)

type fixture struct {
	handler   pipeline.Handler
	store     *mocks.Store
	publisher *mocks.Publisher
}

func newFixture() *fixture {
	store := mocks.NewStore()
	publisher := &mocks.Publisher{}
	service := NewService(Repositories{
		Simulations:  store,
		Jobs:         store,
		Supervisions: store,
		Messages:     store,
	}, publisher, message.DefaultVocabulary(), logger.NewNopLogger())
	return &fixture{handler: service.Handler(), store: store, publisher: publisher}
}

func inbound(t *testing.T, messageType enum.MessageType, payload interface{}, correlationIDs ...string) *message.Envelope {
	t.Helper()
	env, err := message.Build(message.DefaultVocabulary(), message.Outbound{
		Type:            messageType,
		UserID:          enum.UserLibIGCM,
		AppID:           enum.AppMonitoring,
		ProducerID:      enum.ProducerLibIGCM,
		ProducerVersion: "2.8",
		Timestamp:       message.NewTimestamp(producedAt),
		CorrelationIDs:  correlationIDs,
		Payload:         payload,
	})
	require.NoError(t, err)
	return env
}

func notification(t *testing.T, env *message.Envelope) *dto.FrontEndNotification {
	t.Helper()
	payload, err := message.Unmarshal[dto.FrontEndNotification](env)
	require.NoError(t, err)
	return payload
}

func simulationStart(simulationUID, jobUID, name string) map[string]interface{} {
	return map[string]interface{}{
		"simuid":            simulationUID,
		"jobuid":            jobUID,
		"activity":          "IPSL",
		"name":              name,
		"experiment":        "piControl",
		"model":             "IPSLCM6",
		"space":             "PROD",
		"centre":            "TGCC",
		"login":             "p86denv",
		"machine":           "curie",
		"accountingProject": "gen0826",
		"tryID":             2,
		"jobSchedulerID":    "4711",
		"jobSubmissionPath": "/ccc/work/Job_piControl",
		"jobWarningDelay":   86400,
	}
}

func TestSimulationStart_PersistsAndNotifiesOnce(t *testing.T) {
	f := newFixture()
	simulationUID, jobUID := uuid.NewString(), uuid.NewString()
	env := inbound(t, enum.MessageSimulationStart, simulationStart(simulationUID, jobUID, "piControl-01"), simulationUID, jobUID)

	result := f.handler.Handle(context.Background(), env)
	require.Equal(t, pipeline.StatusCompleted, result.Status, "%v", result.Err)

	simulation := f.store.Simulations[simulationUID]
	require.NotNil(t, simulation)
	assert.Equal(t, "piControl-01", simulation.Name)
	assert.Equal(t, "TGCC", simulation.ComputeNode)
	assert.Equal(t, 2, simulation.TryID)
	assert.Equal(t, HashID(simulation), simulation.HashID)
	require.NotNil(t, simulation.ExecutionStartDate)
	assert.True(t, producedAt.Equal(*simulation.ExecutionStartDate))

	job := f.store.Jobs[jobUID]
	require.NotNil(t, job)
	assert.True(t, job.IsStartup)
	assert.Equal(t, enum.JobCompute, job.Type)
	assert.Equal(t, 86400, job.WarningDelay)
	assert.Equal(t, simulationUID, job.SimulationUID)

	assert.Contains(t, f.store.Messages, env.MessageID)

	require.Len(t, f.publisher.Envelopes, 1)
	sent := f.publisher.OfType(enum.MessageFrontEndNotification)
	require.Len(t, sent, 1)
	payload := notification(t, sent[0])
	assert.Equal(t, "job_start", payload.EventType)
	assert.Equal(t, simulationUID, payload.SimulationUID)
	assert.Equal(t, jobUID, payload.JobUID)
	assert.True(t, payload.IsSimulationStart)
	assert.Equal(t, []string{simulationUID, jobUID}, sent[0].CorrelationIDs)
}

func TestSimulationStart_DuplicateDeliveryIsSkipped(t *testing.T) {
	f := newFixture()
	simulationUID, jobUID := uuid.NewString(), uuid.NewString()
	env := inbound(t, enum.MessageSimulationStart, simulationStart(simulationUID, jobUID, "piControl-01"), simulationUID, jobUID)

	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), env).Status)
	assert.Equal(t, pipeline.StatusAborted, f.handler.Handle(context.Background(), env).Status)
	assert.Len(t, f.publisher.Envelopes, 1)
}

type flakySimulations struct {
	interfaces.SimulationRepository
	failures int
}

func (f *flakySimulations) PersistSimulationStart(ctx context.Context, simulation *models.Simulation) (*models.Simulation, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset by peer")
	}
	return f.SimulationRepository.PersistSimulationStart(ctx, simulation)
}

func TestSimulationStart_RedeliveryAfterFailureIsProcessed(t *testing.T) {
	store := mocks.NewStore()
	publisher := &mocks.Publisher{}
	handler := NewService(Repositories{
		Simulations:  &flakySimulations{SimulationRepository: store, failures: 1},
		Jobs:         store,
		Supervisions: store,
		Messages:     store,
	}, publisher, message.DefaultVocabulary(), logger.NewNopLogger()).Handler()

	simulationUID, jobUID := uuid.NewString(), uuid.NewString()
	env := inbound(t, enum.MessageSimulationStart, simulationStart(simulationUID, jobUID, "piControl-01"), simulationUID, jobUID)

	first := handler.Handle(context.Background(), env)
	require.Equal(t, pipeline.StatusFailed, first.Status)
	assert.NotContains(t, store.Messages, env.MessageID)

	redelivered := handler.Handle(context.Background(), env)
	require.Equal(t, pipeline.StatusCompleted, redelivered.Status, "%v", redelivered.Err)
	assert.Contains(t, store.Simulations, simulationUID)
	assert.Contains(t, store.Messages, env.MessageID)
	assert.Len(t, publisher.OfType(enum.MessageFrontEndNotification), 1)
}

func TestSimulationStart_RedeliveryAfterPublishFailureNotifies(t *testing.T) {
	f := newFixture()
	simulationUID, jobUID := uuid.NewString(), uuid.NewString()
	env := inbound(t, enum.MessageSimulationStart, simulationStart(simulationUID, jobUID, "piControl-01"), simulationUID, jobUID)

	f.publisher.Err = errors.New("broker unavailable")
	require.Equal(t, pipeline.StatusFailed, f.handler.Handle(context.Background(), env).Status)
	assert.NotContains(t, f.store.Messages, env.MessageID)

	f.publisher.Err = nil
	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), env).Status)
	assert.Len(t, f.publisher.OfType(enum.MessageFrontEndNotification), 1)
	assert.Len(t, f.store.Simulations, 1)
}

func TestSimulationStart_ObsoletesPreviousTry(t *testing.T) {
	f := newFixture()
	firstUID, secondUID := uuid.NewString(), uuid.NewString()

	first := inbound(t, enum.MessageSimulationStart, simulationStart(firstUID, uuid.NewString(), "piControl-01"), firstUID)
	second := inbound(t, enum.MessageSimulationStart, simulationStart(secondUID, uuid.NewString(), "piControl-01"), secondUID)
	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), first).Status)
	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), second).Status)

	assert.True(t, f.store.Simulations[firstUID].IsObsolete)
	assert.False(t, f.store.Simulations[secondUID].IsObsolete)
}

func TestSimulationEnd(t *testing.T) {
	tests := []struct {
		messageType enum.MessageType
		event       string
		isError     bool
	}{
		{enum.MessageSimulationEnd, "simulation_complete", false},
		{enum.MessageSimulationError, "simulation_error", true},
	}
	for _, tt := range tests {
		t.Run(tt.messageType.String(), func(t *testing.T) {
			f := newFixture()
			simulationUID := uuid.NewString()
			f.store.Simulations[simulationUID] = &models.Simulation{ID: 1, UID: simulationUID}

			env := inbound(t, tt.messageType, map[string]interface{}{"simuid": simulationUID}, simulationUID)
			result := f.handler.Handle(context.Background(), env)
			require.Equal(t, pipeline.StatusCompleted, result.Status, "%v", result.Err)

			simulation := f.store.Simulations[simulationUID]
			assert.Equal(t, tt.isError, simulation.IsError)
			require.NotNil(t, simulation.ExecutionEndDate)

			sent := f.publisher.OfType(enum.MessageFrontEndNotification)
			require.Len(t, sent, 1)
			assert.Equal(t, tt.event, notification(t, sent[0]).EventType)
		})
	}
}

func TestSimulationEnd_UnknownSimulationAborts(t *testing.T) {
	f := newFixture()
	simulationUID := uuid.NewString()
	env := inbound(t, enum.MessageSimulationEnd, map[string]interface{}{"simuid": simulationUID}, simulationUID)

	assert.Equal(t, pipeline.StatusAborted, f.handler.Handle(context.Background(), env).Status)
	assert.Empty(t, f.publisher.Envelopes)
}

func TestJobLifecycle(t *testing.T) {
	f := newFixture()
	simulationUID, jobUID := uuid.NewString(), uuid.NewString()

	start := inbound(t, enum.MessagePostProcessingJobStart, map[string]interface{}{"jobSchedulerID": "99"}, simulationUID, jobUID)
	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), start).Status)
	assert.Equal(t, enum.JobPostProcessing, f.store.Jobs[jobUID].Type)
	assert.Equal(t, "99", f.store.Jobs[jobUID].SchedulerID)

	end := inbound(t, enum.MessagePostProcessingJobEnd, map[string]interface{}{"isComputeEnd": true}, simulationUID, jobUID)
	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), end).Status)
	assert.True(t, f.store.Jobs[jobUID].IsComputeEnd)
	assert.False(t, f.store.Jobs[jobUID].IsError)

	sent := f.publisher.OfType(enum.MessageFrontEndNotification)
	require.Len(t, sent, 2)
	assert.Equal(t, "job_start", notification(t, sent[0]).EventType)
	assert.False(t, notification(t, sent[0]).IsSimulationStart)
	assert.Equal(t, "job_complete", notification(t, sent[1]).EventType)
}

func TestJobError_OpensSupervisionForKnownSimulation(t *testing.T) {
	f := newFixture()
	simulationUID, jobUID := uuid.NewString(), uuid.NewString()
	f.store.Simulations[simulationUID] = &models.Simulation{ID: 1, UID: simulationUID}

	env := inbound(t, enum.MessageComputeJobError, map[string]interface{}{}, simulationUID, jobUID)
	result := f.handler.Handle(context.Background(), env)
	require.Equal(t, pipeline.StatusCompleted, result.Status, "%v", result.Err)

	assert.True(t, f.store.Jobs[jobUID].IsError)
	require.Len(t, f.store.Supervisions, 1)
	var supervision *models.Supervision
	for _, s := range f.store.Supervisions {
		supervision = s
	}
	assert.Equal(t, "1999", supervision.TriggerCode)
	assert.Equal(t, enum.SupervisionPending, supervision.State)
	assert.Equal(t, jobUID, supervision.JobUID)

	notifications := f.publisher.OfType(enum.MessageFrontEndNotification)
	require.Len(t, notifications, 1)
	assert.Equal(t, "job_error", notification(t, notifications[0]).EventType)

	requests := f.publisher.OfType(enum.MessageSupervisionFormat)
	require.Len(t, requests, 1)
	request, err := message.Unmarshal[dto.SupervisionRequest](requests[0])
	require.NoError(t, err)
	assert.Equal(t, supervision.ID, request.SupervisionID)
}

func TestJobError_UnknownSimulationIsNotSupervised(t *testing.T) {
	f := newFixture()
	simulationUID, jobUID := uuid.NewString(), uuid.NewString()

	env := inbound(t, enum.MessageComputeJobError, map[string]interface{}{}, simulationUID, jobUID)
	assert.Equal(t, pipeline.StatusAborted, f.handler.Handle(context.Background(), env).Status)

	assert.Empty(t, f.store.Supervisions)
	assert.Len(t, f.publisher.OfType(enum.MessageFrontEndNotification), 1)
	assert.Empty(t, f.publisher.OfType(enum.MessageSupervisionFormat))
}

func TestSimulationConfiguration(t *testing.T) {
	f := newFixture()
	simulationUID := uuid.NewString()

	env := inbound(t, enum.MessageSimulationConfiguration, map[string]interface{}{"configuration": "config.card"}, simulationUID)
	require.Equal(t, pipeline.StatusCompleted, f.handler.Handle(context.Background(), env).Status)
	assert.Equal(t, "config.card", f.store.Configurations[simulationUID])
}

func TestUnroutedTypeFails(t *testing.T) {
	f := newFixture()
	env := inbound(t, enum.MessagePCMDIMetrics, map[string]interface{}{})

	result := f.handler.Handle(context.Background(), env)
	assert.Equal(t, pipeline.StatusFailed, result.Status)
}

func TestHashID_SharedAcrossTries(t *testing.T) {
	a := &models.Simulation{Name: "piControl", Activity: "IPSL", ComputeNode: "TGCC"}
	b := &models.Simulation{Name: "piControl", Activity: "IPSL", ComputeNode: "TGCC", UID: "other", TryID: 3}
	c := &models.Simulation{Name: "historical", Activity: "IPSL", ComputeNode: "TGCC"}

	assert.Equal(t, HashID(a), HashID(b))
	assert.NotEqual(t, HashID(a), HashID(c))
	assert.Len(t, HashID(a), 40)
}
