package enum

type JobType string

const (
	JobCompute        JobType = "computing"
	JobPostProcessing JobType = "post-processing"
)

func (t JobType) String() string {
	return string(t)
}

type ExecutionState string

const (
	ExecutionQueued    ExecutionState = "queued"
	ExecutionRunning   ExecutionState = "running"
	ExecutionComplete  ExecutionState = "complete"
	ExecutionError     ExecutionState = "error"
	ExecutionObsoleted ExecutionState = "obsolete"
)

func (t ExecutionState) String() string {
	return string(t)
}

type SupervisionState string

const (
	SupervisionPending    SupervisionState = "pending"
	SupervisionFormatted  SupervisionState = "formatted"
	SupervisionDispatched SupervisionState = "dispatched"
)

func (t SupervisionState) String() string {
	return string(t)
}
