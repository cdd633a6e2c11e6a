package enum

// MessageType is the four digit code carried in the type property of every
// message.
type MessageType string

const (
	MessageSimulationStart         MessageType = "0000"
	MessageSimulationEnd           MessageType = "0100"
	MessageSimulationError         MessageType = "0200"
	MessageComputeJobStart         MessageType = "1000"
	MessageComputeJobEnd           MessageType = "1100"
	MessageComputeJobError         MessageType = "1999"
	MessagePostProcessingJobStart  MessageType = "2000"
	MessagePostProcessingJobEnd    MessageType = "2100"
	MessagePostProcessingJobError  MessageType = "2999"
	MessageSupervisionFormat       MessageType = "6000"
	MessageSupervisionDispatch     MessageType = "6100"
	MessageSimulationConfiguration MessageType = "7000"
	MessagePCMDIMetrics            MessageType = "7100"
	MessageConsoProjectAllocation  MessageType = "8000"
	MessageConsoProjectConsumption MessageType = "8100"
	MessageFrontEndNotification    MessageType = "8888"
	MessageSMTPEmailArrived        MessageType = "9000"
	MessageOperatorAlert           MessageType = "9100"
)

func (t MessageType) String() string {
	return string(t)
}

// MessageTypes lists every registered message type.
var MessageTypes = []MessageType{
	MessageSimulationStart,
	MessageSimulationEnd,
	MessageSimulationError,
	MessageComputeJobStart,
	MessageComputeJobEnd,
	MessageComputeJobError,
	MessagePostProcessingJobStart,
	MessagePostProcessingJobEnd,
	MessagePostProcessingJobError,
	MessageSupervisionFormat,
	MessageSupervisionDispatch,
	MessageSimulationConfiguration,
	MessagePCMDIMetrics,
	MessageConsoProjectAllocation,
	MessageConsoProjectConsumption,
	MessageFrontEndNotification,
	MessageSMTPEmailArrived,
	MessageOperatorAlert,
}

// AgentType identifies one consumer process: its queue, its exchange binding
// and its processing pipeline.
type AgentType string

const (
	AgentMonitoring   AgentType = "monitoring"
	AgentMetricsPCMDI AgentType = "metrics-pcmdi"
	AgentConso        AgentType = "conso"
	AgentSupervisor   AgentType = "supervisor"
	AgentFrontEnd     AgentType = "fe"
	AgentInternalSMTP AgentType = "internal-smtp"
	AgentAlert        AgentType = "alert"
	AgentSMTPRealtime AgentType = "smtp-realtime"
	AgentSMTPChecker  AgentType = "smtp-checker"
)

// Agents lists every agent a process can be launched as.
var Agents = []AgentType{
	AgentMonitoring,
	AgentMetricsPCMDI,
	AgentConso,
	AgentSupervisor,
	AgentFrontEnd,
	AgentInternalSMTP,
	AgentAlert,
	AgentSMTPRealtime,
	AgentSMTPChecker,
}

func (t AgentType) String() string {
	return string(t)
}

func ParseAgentType(s string) (AgentType, bool) {
	for _, agent := range Agents {
		if string(agent) == s {
			return agent, true
		}
	}
	return "", false
}

// ContentType is the declared encoding of a message payload.
type ContentType string

const (
	ContentTypeJSON       ContentType = "application/json"
	ContentTypeBase64     ContentType = "application/base64"
	ContentTypeBase64JSON ContentType = "application/base64+json"
)

func (t ContentType) String() string {
	return string(t)
}

type ContentEncoding string

const (
	ContentEncodingUTF8 ContentEncoding = "utf-8"
)

func (t ContentEncoding) String() string {
	return string(t)
}

type UserID string

const (
	UserLibIGCM UserID = "libigcm-mq-user"
	UserHermes  UserID = "hermes-mq-user"
)

func (t UserID) String() string {
	return string(t)
}

type AppID string

const (
	AppHermes     AppID = "hermes"
	AppLibIGCM    AppID = "libigcm"
	AppMonitoring AppID = "monitoring"
	AppMetrics    AppID = "metrics"
	AppConso      AppID = "conso"
	AppSupervisor AppID = "supervisor"
	AppSMTP       AppID = "smtp"
	AppFrontEnd   AppID = "fe"
	AppAlert      AppID = "alert"
)

func (t AppID) String() string {
	return string(t)
}

type ProducerID string

const (
	ProducerLibIGCM     ProducerID = "libigcm"
	ProducerHermes      ProducerID = "hermes"
	ProducerSuperviseur ProducerID = "superviseur"
	ProducerProdiguer   ProducerID = "prodiguer"
)

func (t ProducerID) String() string {
	return string(t)
}

type Priority uint8

const (
	PriorityLowest  Priority = 1
	PriorityLow     Priority = 4
	PriorityNormal  Priority = 7
	PriorityHigh    Priority = 9
	PriorityHighest Priority = 10
)

type DeliveryMode uint8

const (
	DeliveryNonPersistent DeliveryMode = 1
	DeliveryPersistent    DeliveryMode = 2
)

type TimestampPrecision string

const (
	TimestampMilliseconds TimestampPrecision = "ms"
	TimestampNanoseconds  TimestampPrecision = "ns"
)

func (t TimestampPrecision) String() string {
	return string(t)
}
