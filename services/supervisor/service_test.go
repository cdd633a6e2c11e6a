package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/mocks"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
)

type fixture struct {
	handler       pipeline.Handler
	store         *mocks.Store
	publisher     *mocks.Publisher
	simulationUID string
	jobUID        string
	supervisionID uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mocks.NewStore()
	publisher := &mocks.Publisher{}
	f := &fixture{
		store:         store,
		publisher:     publisher,
		simulationUID: uuid.NewString(),
		jobUID:        uuid.NewString(),
	}
	f.handler = NewService(Repositories{Simulations: store, Jobs: store, Supervisions: store},
		publisher, message.DefaultVocabulary(), logger.NewNopLogger()).Handler()

	ctx := context.Background()
	_, err := store.PersistSimulationStart(ctx, &models.Simulation{UID: f.simulationUID, Name: "piControl-01", ComputeNode: "TGCC"})
	require.NoError(t, err)
	_, err = store.PersistJobStart(ctx, &models.Job{JobUID: f.jobUID, SimulationUID: f.simulationUID, SubmissionPath: "/ccc/work/piControl-01/Job_piControl"})
	require.NoError(t, err)
	supervision, err := store.CreateSupervision(ctx, &models.Supervision{
		SimulationUID: f.simulationUID,
		JobUID:        f.jobUID,
		TriggerCode:   "1999",
		TriggerDate:   time.Date(2016, 3, 3, 10, 0, 0, 0, time.UTC),
		State:         enum.SupervisionPending,
	})
	require.NoError(t, err)
	f.supervisionID = supervision.ID
	return f
}

func (f *fixture) request(t *testing.T, messageType enum.MessageType, id uint) *message.Envelope {
	t.Helper()
	env, err := message.Build(message.DefaultVocabulary(), message.Internal(messageType, enum.AppMonitoring,
		dto.SupervisionRequest{SupervisionID: id, SimulationUID: f.simulationUID, JobUID: f.jobUID},
		f.simulationUID, f.jobUID))
	require.NoError(t, err)
	return env
}

func TestFormat_StoresScriptAndRequestsDispatch(t *testing.T) {
	f := newFixture(t)

	result := f.handler.Handle(context.Background(), f.request(t, enum.MessageSupervisionFormat, f.supervisionID))
	require.Equal(t, pipeline.StatusCompleted, result.Status, "%v", result.Err)

	supervision := f.store.Supervisions[f.supervisionID]
	assert.Equal(t, enum.SupervisionFormatted, supervision.State)
	assert.NotNil(t, supervision.FormattedDate)
	assert.Contains(t, supervision.Script, "cd /ccc/work/piControl-01 || exit 1")
	assert.Contains(t, supervision.Script, "ccc_msub Job_piControl")

	sent := f.publisher.OfType(enum.MessageSupervisionDispatch)
	require.Len(t, sent, 1)
	request, err := message.Unmarshal[dto.SupervisionRequest](sent[0])
	require.NoError(t, err)
	assert.Equal(t, f.supervisionID, request.SupervisionID)
	assert.Equal(t, enum.AppSupervisor, sent[0].AppID)
}

func TestDispatch_MarksDispatched(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, pipeline.StatusCompleted,
		f.handler.Handle(context.Background(), f.request(t, enum.MessageSupervisionDispatch, f.supervisionID)).Status)
	require.Equal(t, pipeline.StatusCompleted,
		f.handler.Handle(context.Background(), f.request(t, enum.MessageSupervisionDispatch, f.supervisionID)).Status)

	supervision := f.store.Supervisions[f.supervisionID]
	assert.Equal(t, enum.SupervisionDispatched, supervision.State)
	assert.NotNil(t, supervision.DispatchedDate)
	assert.Equal(t, 2, supervision.DispatchTryCount)
	assert.Empty(t, f.publisher.Envelopes)
}

func TestUnknownSupervisionAborts(t *testing.T) {
	f := newFixture(t)

	result := f.handler.Handle(context.Background(), f.request(t, enum.MessageSupervisionFormat, 9999))
	assert.Equal(t, pipeline.StatusAborted, result.Status)
	assert.Empty(t, f.publisher.Envelopes)
}

func TestScript_WithoutJob(t *testing.T) {
	script, err := Script(&models.Supervision{ID: 7, JobUID: "j", TriggerCode: "2999"}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, script, "resubmit by hand")
	assert.Contains(t, script, "# HERMES supervision 7")
}
