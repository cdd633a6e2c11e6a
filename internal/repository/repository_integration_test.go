//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prodiguer/hermes/internal/database"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/models"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("prodiguer"),
		postgresmodule.WithUsername("hermes"),
		postgresmodule.WithPassword("hermes"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, MigrateHermesDB(&database.DatabaseConfig{}, db))

	return db
}

func TestRepositories_Postgres(t *testing.T) {
	db := setupPostgres(t)
	repos := InitRepositories(db, nil)
	ctx := context.Background()

	t.Run("simulation start is an upsert", func(t *testing.T) {
		uid := uuid.NewString()
		start := time.Now().UTC().Truncate(time.Second)

		first, err := repos.SimulationRepository.PersistSimulationStart(ctx, &models.Simulation{UID: uid, Name: "v3.historical", HashID: "h1", ExecutionStartDate: &start})
		require.NoError(t, err)

		second, err := repos.SimulationRepository.PersistSimulationStart(ctx, &models.Simulation{UID: uid, Name: "v3.historical.restart", HashID: "h1", ExecutionStartDate: &start})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "v3.historical.restart", second.Name)
		assert.Equal(t, enum.ExecutionRunning, second.ExecutionState)
	})

	t.Run("obsolete and active lookups", func(t *testing.T) {
		older, newer := uuid.NewString(), uuid.NewString()
		_, err := repos.SimulationRepository.PersistSimulationStart(ctx, &models.Simulation{UID: older, HashID: "h2"})
		require.NoError(t, err)
		_, err = repos.SimulationRepository.PersistSimulationStart(ctx, &models.Simulation{UID: newer, HashID: "h2"})
		require.NoError(t, err)

		count, err := repos.SimulationRepository.ObsoleteSimulations(ctx, "h2", newer)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		active, err := repos.SimulationRepository.RetrieveActiveSimulation(ctx, "h2")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, newer, active.UID)
	})

	t.Run("job end before start creates the job", func(t *testing.T) {
		jobUID := uuid.NewString()
		end := time.Now().UTC()
		job, err := repos.JobRepository.PersistJobEnd(ctx, &models.Job{JobUID: jobUID, ExecutionEndDate: &end, IsError: true})
		require.NoError(t, err)
		assert.Equal(t, enum.ExecutionError, job.ExecutionState)

		started, err := repos.JobRepository.PersistJobStart(ctx, &models.Job{JobUID: jobUID, SimulationUID: uuid.NewString()})
		require.NoError(t, err)
		assert.Equal(t, job.ID, started.ID)
	})

	t.Run("message log", func(t *testing.T) {
		uid := uuid.NewString()
		exists, err := repos.MessageRepository.Exists(ctx, uid)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, repos.MessageRepository.Create(ctx, &models.Message{UID: uid, Type: "0000"}))
		exists, err = repos.MessageRepository.Exists(ctx, uid)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("conso allocation reports creation once", func(t *testing.T) {
		allocation := func() *models.ConsoAllocation {
			return &models.ConsoAllocation{Centre: "tgcc", Machine: "irene", Project: "gen0826", StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Budget: 1000, IsActive: true}
		}
		_, created, err := repos.ConsoRepository.PersistAllocation(ctx, allocation())
		require.NoError(t, err)
		assert.True(t, created)

		_, created, err = repos.ConsoRepository.PersistAllocation(ctx, allocation())
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("delete simulation cascades", func(t *testing.T) {
		uid := uuid.NewString()
		_, err := repos.SimulationRepository.PersistSimulationStart(ctx, &models.Simulation{UID: uid})
		require.NoError(t, err)
		_, err = repos.JobRepository.PersistJobStart(ctx, &models.Job{JobUID: uuid.NewString(), SimulationUID: uid})
		require.NoError(t, err)
		require.NoError(t, repos.SimulationRepository.PersistSimulationConfiguration(ctx, uid, "[UserChoices]"))

		require.NoError(t, repos.SimulationRepository.DeleteSimulation(ctx, uid))

		simulation, err := repos.SimulationRepository.RetrieveSimulation(ctx, uid)
		require.NoError(t, err)
		assert.Nil(t, simulation)
	})
}
