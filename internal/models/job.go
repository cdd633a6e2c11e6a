package models

import (
	"time"

	"github.com/prodiguer/hermes/internal/enum"
)

type Job struct {
	ID                 uint                `gorm:"column:id;primaryKey;autoIncrement"`
	JobUID             string              `gorm:"column:job_uid;type:varchar(63);uniqueIndex;not null"`
	SimulationUID      string              `gorm:"column:simulation_uid;type:varchar(63);index"`
	Type               enum.JobType        `gorm:"column:typeof;type:varchar(63)"`
	SchedulerID        string              `gorm:"column:scheduler_id;type:varchar(63)"`
	SubmissionPath     string              `gorm:"column:submission_path;type:varchar(2047)"`
	WarningDelay       int                 `gorm:"column:warning_delay"`
	ExecutionState     enum.ExecutionState `gorm:"column:execution_state;type:varchar(31);index"`
	ExecutionStartDate *time.Time          `gorm:"column:execution_start_date;type:timestamp"`
	ExecutionEndDate   *time.Time          `gorm:"column:execution_end_date;type:timestamp"`
	IsError            bool                `gorm:"column:is_error;default:false"`
	IsStartup          bool                `gorm:"column:is_startup;default:false"`
	IsComputeEnd       bool                `gorm:"column:is_compute_end;default:false"`
	CreatedAt          time.Time           `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Job) TableName() string {
	return "tbl_job"
}

// Supervision tracks the corrective script raised in reaction to a failed
// job.
type Supervision struct {
	ID               uint                  `gorm:"column:id;primaryKey;autoIncrement"`
	SimulationUID    string                `gorm:"column:simulation_uid;type:varchar(63);index;not null"`
	JobUID           string                `gorm:"column:job_uid;type:varchar(63);index;not null"`
	TriggerCode      string                `gorm:"column:trigger_code;type:varchar(15)"`
	TriggerDate      time.Time             `gorm:"column:trigger_date;type:timestamp"`
	State            enum.SupervisionState `gorm:"column:state;type:varchar(31);index"`
	Script           string                `gorm:"column:script;type:text"`
	FormattedDate    *time.Time            `gorm:"column:formatted_date;type:timestamp"`
	DispatchedDate   *time.Time            `gorm:"column:dispatched_date;type:timestamp"`
	DispatchTryCount int                   `gorm:"column:dispatch_try_count;default:0"`
	CreatedAt        time.Time             `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Supervision) TableName() string {
	return "tbl_supervision"
}
