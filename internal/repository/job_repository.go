package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/tracing"
)

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) interfaces.JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) PersistJobStart(ctx context.Context, job *models.Job) (*models.Job, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "jobRepository.PersistJobStart")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, job.JobUID)

	if job.JobUID == "" {
		return nil, ErrInvalidInput
	}
	job.ExecutionState = enum.ExecutionRunning

	result, _, err := createOrUpdate(ctx, r.db, job,
		map[string]interface{}{"job_uid": job.JobUID},
		map[string]interface{}{
			"simulation_uid":       job.SimulationUID,
			"typeof":               job.Type,
			"scheduler_id":         job.SchedulerID,
			"submission_path":      job.SubmissionPath,
			"warning_delay":        job.WarningDelay,
			"is_startup":           job.IsStartup,
			"execution_start_date": job.ExecutionStartDate,
			"updated_at":           time.Now(),
		})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to persist job start: %w", err)
	}

	return result, nil
}

// PersistJobEnd records completion of a job. End messages may overtake
// their start message, in which case the job row is created here.
func (r *jobRepository) PersistJobEnd(ctx context.Context, job *models.Job) (*models.Job, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "jobRepository.PersistJobEnd")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, job.JobUID)

	if job.JobUID == "" {
		return nil, ErrInvalidInput
	}
	job.ExecutionState = enum.ExecutionComplete
	if job.IsError {
		job.ExecutionState = enum.ExecutionError
	}

	result, _, err := createOrUpdate(ctx, r.db, job,
		map[string]interface{}{"job_uid": job.JobUID},
		map[string]interface{}{
			"execution_end_date": job.ExecutionEndDate,
			"execution_state":    job.ExecutionState,
			"is_error":           job.IsError,
			"is_compute_end":     job.IsComputeEnd,
			"updated_at":         time.Now(),
		})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to persist job end: %w", err)
	}

	return result, nil
}

func (r *jobRepository) RetrieveJob(ctx context.Context, uid string) (*models.Job, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "jobRepository.RetrieveJob")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, uid)

	var job models.Job
	err := r.db.WithContext(ctx).Where("job_uid = ?", uid).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to retrieve job: %w", err)
	}

	return &job, nil
}
