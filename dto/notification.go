package dto

// SMTPEmailArrived is the payload announcing a new email in the mailbox.
type SMTPEmailArrived struct {
	EmailUID uint32 `json:"email_uid"`
}

type Alert struct {
	Trigger string                 `json:"trigger"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

type FrontEndNotification struct {
	EventType         string `json:"event_type"`
	SimulationUID     string `json:"simulation_uid,omitempty"`
	JobUID            string `json:"job_uid,omitempty"`
	IsSimulationStart bool   `json:"is_simulation_start,omitempty"`
	Timestamp         string `json:"event_timestamp,omitempty"`
}

type SupervisionRequest struct {
	SupervisionID uint   `json:"supervision_id"`
	SimulationUID string `json:"simulation_uid"`
	JobUID        string `json:"job_uid"`
}
