package models

import (
	"time"

	"github.com/prodiguer/hermes/internal/enum"
)

// Simulation is one run of a climate model, identified by the uid assigned
// by the producing job scheduler.
type Simulation struct {
	ID                 uint                `gorm:"column:id;primaryKey;autoIncrement"`
	UID                string              `gorm:"column:uid;type:varchar(63);uniqueIndex;not null"`
	HashID             string              `gorm:"column:hashid;type:varchar(511);index"`
	Name               string              `gorm:"column:name;type:varchar(511);index"`
	Activity           string              `gorm:"column:activity;type:varchar(127)"`
	Model              string              `gorm:"column:model;type:varchar(127)"`
	Experiment         string              `gorm:"column:experiment;type:varchar(127)"`
	Space              string              `gorm:"column:space;type:varchar(127)"`
	ComputeNode        string              `gorm:"column:compute_node;type:varchar(127)"`
	ComputeNodeLogin   string              `gorm:"column:compute_node_login;type:varchar(127)"`
	ComputeNodeMachine string              `gorm:"column:compute_node_machine;type:varchar(127)"`
	AccountingProject  string              `gorm:"column:accounting_project;type:varchar(511)"`
	OutputPath         string              `gorm:"column:output_path;type:varchar(1023)"`
	TryID              int                 `gorm:"column:try_id;default:1"`
	ExecutionState     enum.ExecutionState `gorm:"column:execution_state;type:varchar(31);index"`
	ExecutionStartDate *time.Time          `gorm:"column:execution_start_date;type:timestamp"`
	ExecutionEndDate   *time.Time          `gorm:"column:execution_end_date;type:timestamp"`
	IsError            bool                `gorm:"column:is_error;default:false"`
	IsObsolete         bool                `gorm:"column:is_obsolete;default:false;index"`
	CreatedAt          time.Time           `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Simulation) TableName() string {
	return "tbl_simulation"
}

// SimulationConfiguration is the configuration card a simulation was
// launched with.
type SimulationConfiguration struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	SimulationUID string    `gorm:"column:simulation_uid;type:varchar(63);uniqueIndex;not null"`
	Card          string    `gorm:"column:card;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (SimulationConfiguration) TableName() string {
	return "tbl_simulation_configuration"
}
