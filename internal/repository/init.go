package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/database"
	"github.com/prodiguer/hermes/internal/models"
)

type Repositories struct {
	SimulationRepository  interfaces.SimulationRepository
	JobRepository         interfaces.JobRepository
	SupervisionRepository interfaces.SupervisionRepository
	ConsoRepository       interfaces.ConsoRepository
	MessageRepository     interfaces.MessageRepository
	MetricsRepository     interfaces.MetricsRepository
	MetricGroupCache      *MetricGroupCache
}

// InitRepositories wires the Postgres repositories and, when a metrics
// database is given, the Mongo metrics repository.
func InitRepositories(hermesDB *gorm.DB, metricsDB *mongo.Database) *Repositories {
	repos := &Repositories{
		SimulationRepository:  NewSimulationRepository(hermesDB),
		JobRepository:         NewJobRepository(hermesDB),
		SupervisionRepository: NewSupervisionRepository(hermesDB),
		ConsoRepository:       NewConsoRepository(hermesDB),
		MessageRepository:     NewMessageRepository(hermesDB),
		MetricGroupCache:      NewMetricGroupCache(),
	}
	if metricsDB != nil {
		repos.MetricsRepository = NewMetricsRepository(metricsDB, repos.MetricGroupCache)
	}
	return repos
}

func MigrateHermesDB(dbConfig *database.DatabaseConfig, hermesDB *gorm.DB) error {
	db, err := hermesDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = hermesDB.AutoMigrate(
		&models.Simulation{},
		&models.SimulationConfiguration{},
		&models.Job{},
		&models.Supervision{},
		&models.ConsoAllocation{},
		&models.ConsoConsumption{},
		&models.Message{},
		&models.MessageEmailStats{},
	)

	if dbConfig.MaxIdleConn > 0 {
		db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	}
	if dbConfig.MaxConn > 0 {
		db.SetMaxOpenConns(dbConfig.MaxConn)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)
	}

	return err
}
