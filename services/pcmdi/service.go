package pcmdi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/services/messagelog"
)

// Provenance fields added to every stored metric document.
const (
	FieldSimulationUID = "_simulation_uid"
	FieldJobUID        = "_job_uid"
	FieldMessageID     = "_message_id"
)

type metricsContext struct {
	pipeline.Base
	payload   *dto.PCMDIMetrics
	set       *dto.MetricSet
	documents []map[string]interface{}
	inserted  int
}

func newMetricsContext(env *message.Envelope) *metricsContext {
	return &metricsContext{Base: pipeline.NewBase(env)}
}

// Service stores PCMDI metric files in the metrics database, one
// collection per metric group.
type Service struct {
	messages interfaces.MessageRepository
	metrics  interfaces.MetricsRepository
	log      logger.Logger
}

func NewService(messages interfaces.MessageRepository, metrics interfaces.MetricsRepository, log logger.Logger) *Service {
	return &Service{messages: messages, metrics: metrics, log: log}
}

func (s *Service) Handler() pipeline.Handler {
	agent := enum.AgentMetricsPCMDI.String()
	steps := messagelog.Steps[*metricsContext](s.messages, s.log,
		pipeline.Step[*metricsContext]{Name: "unpack", Run: unpack},
		pipeline.Step[*metricsContext]{Name: "decode-metrics", Run: decodeMetrics},
		pipeline.Step[*metricsContext]{Name: "build-documents", Run: buildDocuments},
		pipeline.Step[*metricsContext]{Name: "persist-metrics", Run: s.persist},
	)
	return routing.NewDispatcher(agent, s.log, routing.Handlers{
		enum.MessagePCMDIMetrics: pipeline.Bind(pipeline.New(agent, s.log, steps, nil), newMetricsContext),
	})
}

func unpack(_ context.Context, c *metricsContext) error {
	payload, err := message.Unmarshal[dto.PCMDIMetrics](c.Message)
	if err != nil {
		return err
	}
	if payload.Metrics == "" {
		return hermeserrors.NewValidationError("metrics", payload.Metrics)
	}
	payload.SimulationUID = firstNonEmpty(c.Message.CorrelationID(1), payload.SimulationUID)
	payload.JobUID = firstNonEmpty(c.Message.CorrelationID(2), payload.JobUID)
	c.payload = payload
	return nil
}

func decodeMetrics(_ context.Context, c *metricsContext) error {
	raw, err := base64.StdEncoding.DecodeString(c.payload.Metrics)
	if err != nil {
		return hermeserrors.NewDecodeError(enum.ContentTypeBase64.String(), []byte(c.payload.Metrics), err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var set dto.MetricSet
	if err := decoder.Decode(&set); err != nil {
		return hermeserrors.NewDecodeError(enum.ContentTypeJSON.String(), raw, err)
	}
	if set.Group == "" {
		return hermeserrors.NewValidationError("group", set.Group)
	}
	c.set = &set
	return nil
}

func buildDocuments(_ context.Context, c *metricsContext) error {
	documents, err := Documents(c.set)
	if err != nil {
		return err
	}
	for _, document := range documents {
		document[FieldSimulationUID] = c.payload.SimulationUID
		document[FieldJobUID] = c.payload.JobUID
		document[FieldMessageID] = c.Message.MessageID
	}
	c.documents = documents
	return nil
}

func (s *Service) persist(ctx context.Context, c *metricsContext) error {
	inserted, err := s.metrics.Insert(ctx, c.set.Group, c.documents)
	if err != nil {
		return hermeserrors.NewCollaboratorError("mongo", "insert "+c.set.Group, err)
	}
	c.inserted = inserted
	s.log.Infow("metrics stored", "group", c.set.Group, "count", inserted, "message_id", c.Message.MessageID)
	return nil
}

// Documents turns the rows of set into one document each.
func Documents(set *dto.MetricSet) ([]map[string]interface{}, error) {
	documents := make([]map[string]interface{}, 0, len(set.Metrics))
	for i, row := range set.Metrics {
		switch v := row.(type) {
		case map[string]interface{}:
			documents = append(documents, v)
		case []interface{}:
			if len(v) != len(set.Columns) {
				return nil, errors.Errorf("metric row %d has %d values for %d columns", i, len(v), len(set.Columns))
			}
			document := make(map[string]interface{}, len(v))
			for j, column := range set.Columns {
				document[column] = v[j]
			}
			documents = append(documents, document)
		default:
			return nil, errors.Errorf("metric row %d is neither an object nor an array", i)
		}
	}
	return documents, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
