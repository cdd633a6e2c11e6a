package dto

import "encoding/json"

// SimulationStart is the payload of a simulation start message.
type SimulationStart struct {
	SimulationUID      string      `json:"simuid"`
	JobUID             string      `json:"jobuid"`
	Activity           string      `json:"activity"`
	Name               string      `json:"name"`
	Experiment         string      `json:"experiment"`
	Model              string      `json:"model"`
	Space              string      `json:"space"`
	ComputeNode        string      `json:"centre"`
	ComputeNodeLogin   string      `json:"login"`
	ComputeNodeMachine string      `json:"machine"`
	AccountingProject  string      `json:"accountingProject"`
	OutputPath         string      `json:"outputPath"`
	TryID              json.Number `json:"tryID,omitempty"`
	SchedulerID        string      `json:"jobSchedulerID"`
	SubmissionPath     string      `json:"jobSubmissionPath"`
	WarningDelay       json.Number `json:"jobWarningDelay,omitempty"`
}

// SimulationEvent is the payload of a simulation end or error message.
type SimulationEvent struct {
	SimulationUID string `json:"simuid"`
	JobUID        string `json:"jobuid"`
}

type JobStart struct {
	SimulationUID  string      `json:"simuid"`
	JobUID         string      `json:"jobuid"`
	SchedulerID    string      `json:"jobSchedulerID"`
	SubmissionPath string      `json:"jobSubmissionPath"`
	WarningDelay   json.Number `json:"jobWarningDelay,omitempty"`
}

// JobEvent is the payload of a job end or error message.
type JobEvent struct {
	SimulationUID string `json:"simuid"`
	JobUID        string `json:"jobuid"`
	IsComputeEnd  bool   `json:"isComputeEnd,omitempty"`
}

type SimulationConfiguration struct {
	SimulationUID string `json:"simuid"`
	Configuration string `json:"configuration"`
}

// PCMDIMetrics is the payload of a metrics message; Metrics is the base64
// text of one metrics file.
type PCMDIMetrics struct {
	SimulationUID string `json:"simuid"`
	JobUID        string `json:"jobuid"`
	Metrics       string `json:"metrics"`
}

// MetricSet is a decoded metrics file. Rows are either objects or, when
// Columns is set, arrays of values in column order.
type MetricSet struct {
	Group   string        `json:"group"`
	Columns []string      `json:"columns,omitempty"`
	Metrics []interface{} `json:"metrics"`
}
