package enum

type AlertTrigger string

const (
	AlertSMTPCheckerCount        AlertTrigger = "smtp-checker-count"
	AlertSMTPCheckerLatency      AlertTrigger = "smtp-checker-latency"
	AlertConsoInactiveAllocation AlertTrigger = "conso-inactive-allocation"
	AlertConsoNewAllocation      AlertTrigger = "conso-new-allocation"
)

func (t AlertTrigger) String() string {
	return string(t)
}

// FrontEndEvent is the event_type of a front-end notification.
type FrontEndEvent string

const (
	FrontEndJobStart           FrontEndEvent = "job_start"
	FrontEndJobComplete        FrontEndEvent = "job_complete"
	FrontEndJobError           FrontEndEvent = "job_error"
	FrontEndSimulationComplete FrontEndEvent = "simulation_complete"
	FrontEndSimulationError    FrontEndEvent = "simulation_error"
)

func (t FrontEndEvent) String() string {
	return string(t)
}
