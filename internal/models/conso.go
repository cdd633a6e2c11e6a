package models

import (
	"time"
)

// ConsoAllocation is a compute hour budget granted to a project on a
// machine for a period.
type ConsoAllocation struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Centre    string    `gorm:"column:centre;type:varchar(127);uniqueIndex:idx_conso_allocation"`
	Machine   string    `gorm:"column:machine;type:varchar(127);uniqueIndex:idx_conso_allocation"`
	Project   string    `gorm:"column:project;type:varchar(127);uniqueIndex:idx_conso_allocation"`
	StartDate time.Time `gorm:"column:start_date;type:timestamp;uniqueIndex:idx_conso_allocation"`
	EndDate   time.Time `gorm:"column:end_date;type:timestamp"`
	Budget    float64   `gorm:"column:budget"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (ConsoAllocation) TableName() string {
	return "tbl_conso_allocation"
}

type ConsoConsumption struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	AllocationID uint      `gorm:"column:allocation_id;index;not null"`
	SubProject   string    `gorm:"column:sub_project;type:varchar(127)"`
	Login        string    `gorm:"column:login;type:varchar(127)"`
	Date         time.Time `gorm:"column:date;type:timestamp;index"`
	Total        float64   `gorm:"column:total"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (ConsoConsumption) TableName() string {
	return "tbl_conso_consumption"
}
