package interfaces

import (
	"context"
	"time"

	"github.com/prodiguer/hermes/internal/models"
)

type SimulationRepository interface {
	PersistSimulationStart(ctx context.Context, simulation *models.Simulation) (*models.Simulation, error)
	PersistSimulationEnd(ctx context.Context, uid string, endDate time.Time, isError bool) (*models.Simulation, error)
	RetrieveSimulation(ctx context.Context, uid string) (*models.Simulation, error)
	RetrieveActiveSimulation(ctx context.Context, hashID string) (*models.Simulation, error)
	ObsoleteSimulations(ctx context.Context, hashID, exceptUID string) (int64, error)
	PersistSimulationConfiguration(ctx context.Context, simulationUID, card string) error
	DeleteSimulation(ctx context.Context, uid string) error
}

type JobRepository interface {
	PersistJobStart(ctx context.Context, job *models.Job) (*models.Job, error)
	PersistJobEnd(ctx context.Context, job *models.Job) (*models.Job, error)
	RetrieveJob(ctx context.Context, uid string) (*models.Job, error)
}

type SupervisionRepository interface {
	CreateSupervision(ctx context.Context, supervision *models.Supervision) (*models.Supervision, error)
	RetrieveSupervision(ctx context.Context, id uint) (*models.Supervision, error)
	UpdateSupervision(ctx context.Context, supervision *models.Supervision) error
}

type ConsoRepository interface {
	// PersistAllocation reports created=true when the allocation was not
	// known before.
	PersistAllocation(ctx context.Context, allocation *models.ConsoAllocation) (result *models.ConsoAllocation, created bool, err error)
	RetrieveAllocation(ctx context.Context, centre, machine, project string, startDate time.Time) (*models.ConsoAllocation, error)
	PersistConsumption(ctx context.Context, consumption *models.ConsoConsumption) error
}

type MessageRepository interface {
	Exists(ctx context.Context, uid string) (bool, error)
	Create(ctx context.Context, message *models.Message) error
	CreateEmailStats(ctx context.Context, stats *models.MessageEmailStats) error
}

// MetricsRepository stores metric documents, one collection per metric group.
type MetricsRepository interface {
	Insert(ctx context.Context, group string, documents []map[string]interface{}) (int, error)
	Groups(ctx context.Context) ([]string, error)
}
