package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/message"
)

const (
	ExchangeIn         = "hermes-in"
	ExchangeInternal   = "hermes-internal"
	ExchangeDeadLetter = "dead-letter"

	ExchangeKindTopic  = "topic"
	ExchangeKindDirect = "direct"

	queuePrefix         = "q-"
	deadLetterQueueTail = "-dlq"
)

type Exchange struct {
	Name   string
	Kind   string
	Agents []enum.AgentType
}

// Config is the immutable routing table: which exchange each consuming agent
// is bound to and which message types each agent consumes.
type Config struct {
	exchanges     []Exchange
	agentExchange map[enum.AgentType]string
	agentTypes    map[enum.AgentType][]enum.MessageType
	typeAgent     map[enum.MessageType]enum.AgentType
}

// NewConfig checks that every agent is listed by exactly one exchange, that
// every exchange only lists known agents and that no message type is claimed
// by two agents.
func NewConfig(exchanges []Exchange, agentTypes map[enum.AgentType][]enum.MessageType) (*Config, error) {
	cfg := &Config{
		agentExchange: make(map[enum.AgentType]string),
		agentTypes:    make(map[enum.AgentType][]enum.MessageType, len(agentTypes)),
		typeAgent:     make(map[enum.MessageType]enum.AgentType),
	}

	for _, exchange := range exchanges {
		agents := append([]enum.AgentType(nil), exchange.Agents...)
		for _, agent := range agents {
			if _, ok := agentTypes[agent]; !ok {
				return nil, hermeserrors.NewRoutingError(agent.String(), fmt.Sprintf("exchange %s lists an agent with no message types", exchange.Name))
			}
			if other, ok := cfg.agentExchange[agent]; ok {
				return nil, hermeserrors.NewRoutingError(agent.String(), fmt.Sprintf("agent bound to both %s and %s", other, exchange.Name))
			}
			cfg.agentExchange[agent] = exchange.Name
		}
		cfg.exchanges = append(cfg.exchanges, Exchange{Name: exchange.Name, Kind: exchange.Kind, Agents: agents})
	}

	for agent, types := range agentTypes {
		if _, ok := cfg.agentExchange[agent]; !ok {
			return nil, hermeserrors.NewRoutingError(agent.String(), "agent not bound to any exchange")
		}
		for _, messageType := range types {
			if other, ok := cfg.typeAgent[messageType]; ok {
				return nil, hermeserrors.NewRoutingError(messageType.String(), fmt.Sprintf("type consumed by both %s and %s", other, agent))
			}
			cfg.typeAgent[messageType] = agent
		}
		cfg.agentTypes[agent] = append([]enum.MessageType(nil), types...)
	}

	return cfg, nil
}

// DefaultConfig is the platform routing table.
func DefaultConfig() *Config {
	cfg, err := NewConfig(
		[]Exchange{
			{
				Name:   ExchangeIn,
				Kind:   ExchangeKindTopic,
				Agents: []enum.AgentType{enum.AgentMonitoring, enum.AgentMetricsPCMDI, enum.AgentConso},
			},
			{
				Name:   ExchangeInternal,
				Kind:   ExchangeKindTopic,
				Agents: []enum.AgentType{enum.AgentInternalSMTP, enum.AgentSupervisor, enum.AgentFrontEnd, enum.AgentAlert},
			},
		},
		map[enum.AgentType][]enum.MessageType{
			enum.AgentMonitoring: {
				enum.MessageSimulationStart,
				enum.MessageSimulationEnd,
				enum.MessageSimulationError,
				enum.MessageComputeJobStart,
				enum.MessageComputeJobEnd,
				enum.MessageComputeJobError,
				enum.MessagePostProcessingJobStart,
				enum.MessagePostProcessingJobEnd,
				enum.MessagePostProcessingJobError,
				enum.MessageSimulationConfiguration,
			},
			enum.AgentMetricsPCMDI: {enum.MessagePCMDIMetrics},
			enum.AgentConso:        {enum.MessageConsoProjectAllocation, enum.MessageConsoProjectConsumption},
			enum.AgentSupervisor:   {enum.MessageSupervisionFormat, enum.MessageSupervisionDispatch},
			enum.AgentFrontEnd:     {enum.MessageFrontEndNotification},
			enum.AgentInternalSMTP: {enum.MessageSMTPEmailArrived},
			enum.AgentAlert:        {enum.MessageOperatorAlert},
		},
	)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Exchanges() []Exchange {
	return append([]Exchange(nil), c.exchanges...)
}

// Agents returns the consuming agents in a stable order.
func (c *Config) Agents() []enum.AgentType {
	agents := make([]enum.AgentType, 0, len(c.agentTypes))
	for agent := range c.agentTypes {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i] < agents[j] })
	return agents
}

func (c *Config) IsConsumer(agent enum.AgentType) bool {
	_, ok := c.agentTypes[agent]
	return ok
}

func (c *Config) MessageTypes(agent enum.AgentType) []enum.MessageType {
	return append([]enum.MessageType(nil), c.agentTypes[agent]...)
}

func (c *Config) AgentFor(messageType enum.MessageType) (enum.AgentType, error) {
	agent, ok := c.typeAgent[messageType]
	if !ok {
		return "", hermeserrors.NewRoutingError(messageType.String(), "unknown message type")
	}
	return agent, nil
}

func (c *Config) ExchangeFor(agent enum.AgentType) (string, error) {
	exchange, ok := c.agentExchange[agent]
	if !ok {
		return "", hermeserrors.NewRoutingError(agent.String(), "agent not bound to any exchange")
	}
	return exchange, nil
}

// Route resolves the queue and exchange an envelope is delivered through.
func (c *Config) Route(env *message.Envelope) (queue string, exchange string, err error) {
	agent, err := c.AgentFor(env.Type)
	if err != nil {
		return "", "", err
	}
	exchange, err = c.ExchangeFor(agent)
	if err != nil {
		return "", "", err
	}
	return QueueName(agent), exchange, nil
}

// BindingKeys are the topic patterns binding an agent's queue to its
// exchange, one per consumed message type.
func (c *Config) BindingKeys(agent enum.AgentType) []string {
	types := c.agentTypes[agent]
	keys := make([]string, 0, len(types))
	for _, messageType := range types {
		keys = append(keys, "#."+strings.ToLower(messageType.String()))
	}
	return keys
}

func QueueName(agent enum.AgentType) string {
	return queuePrefix + agent.String()
}

func DeadLetterQueueName(agent enum.AgentType) string {
	return QueueName(agent) + deadLetterQueueTail
}

// RoutingKey is {mode}.{user_id}.{producer_id}.{app_id}.{type}, lower cased.
func RoutingKey(mode string, env *message.Envelope) string {
	return strings.ToLower(strings.Join([]string{
		mode,
		env.UserID.String(),
		env.ProducerID.String(),
		env.AppID.String(),
		env.Type.String(),
	}, "."))
}
