package dto

import "encoding/json"

// ConsoAllocation is the payload of a project allocation message. Dates
// are ISO dates, optionally with a time.
type ConsoAllocation struct {
	Centre    string      `json:"centre"`
	Machine   string      `json:"machine"`
	Project   string      `json:"project"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	Budget    json.Number `json:"budget"`
	IsActive  *bool       `json:"isActive,omitempty"`
}

// ConsoConsumption is the payload of a project consumption message. The
// allocation is identified by its centre, machine, project and start date.
type ConsoConsumption struct {
	Centre              string         `json:"centre"`
	Machine             string         `json:"machine"`
	Project             string         `json:"project"`
	AllocationStartDate string         `json:"allocationStartDate"`
	Date                string         `json:"date"`
	Total               json.Number    `json:"total"`
	SubProjects         map[string]any `json:"subProjects,omitempty"`
	Logins              map[string]any `json:"logins,omitempty"`
}
