package conso

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/models"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/services/alerts"
	"github.com/prodiguer/hermes/services/messagelog"
)

const dateLayout = "2006-01-02"

type allocationContext struct {
	pipeline.Base
	allocation *models.ConsoAllocation
	created    bool
}

type consumptionContext struct {
	pipeline.Base
	payload      *dto.ConsoConsumption
	date         time.Time
	allocation   *models.ConsoAllocation
	consumptions []*models.ConsoConsumption
}

// Service records compute allocations and their consumption. New and
// inactive allocations are brought to the operators' attention.
type Service struct {
	conso     interfaces.ConsoRepository
	messages  interfaces.MessageRepository
	publisher interfaces.MessagePublisher
	vocab     *message.Vocabulary
	log       logger.Logger
}

func NewService(conso interfaces.ConsoRepository, messages interfaces.MessageRepository, publisher interfaces.MessagePublisher, vocab *message.Vocabulary, log logger.Logger) *Service {
	return &Service{conso: conso, messages: messages, publisher: publisher, vocab: vocab, log: log}
}

func (s *Service) Handler() pipeline.Handler {
	agent := enum.AgentConso.String()

	allocation := pipeline.New(agent, s.log,
		messagelog.Steps[*allocationContext](s.messages, s.log,
			pipeline.Step[*allocationContext]{Name: "unpack", Run: unpackAllocation},
			pipeline.Step[*allocationContext]{Name: "persist-allocation", Run: s.persistAllocation},
			pipeline.Step[*allocationContext]{Name: "alert", Run: s.alert},
		), nil)
	consumption := pipeline.New(agent, s.log,
		messagelog.Steps[*consumptionContext](s.messages, s.log,
			pipeline.Step[*consumptionContext]{Name: "unpack", Run: unpackConsumption},
			pipeline.Step[*consumptionContext]{Name: "load-allocation", Run: s.loadAllocation},
			pipeline.Step[*consumptionContext]{Name: "split-consumption", Run: splitConsumption},
			pipeline.Step[*consumptionContext]{Name: "persist-consumption", Run: s.persistConsumption},
		), nil)

	return routing.NewDispatcher(agent, s.log, routing.Handlers{
		enum.MessageConsoProjectAllocation: pipeline.Bind(allocation, func(env *message.Envelope) *allocationContext {
			return &allocationContext{Base: pipeline.NewBase(env)}
		}),
		enum.MessageConsoProjectConsumption: pipeline.Bind(consumption, func(env *message.Envelope) *consumptionContext {
			return &consumptionContext{Base: pipeline.NewBase(env)}
		}),
	})
}

func unpackAllocation(_ context.Context, c *allocationContext) error {
	payload, err := message.Unmarshal[dto.ConsoAllocation](c.Message)
	if err != nil {
		return err
	}
	allocation, err := Allocation(payload)
	if err != nil {
		return err
	}
	c.allocation = allocation
	return nil
}

func (s *Service) persistAllocation(ctx context.Context, c *allocationContext) error {
	allocation, created, err := s.conso.PersistAllocation(ctx, c.allocation)
	if err != nil {
		return err
	}
	c.allocation, c.created = allocation, created
	return nil
}

func (s *Service) alert(ctx context.Context, c *allocationContext) error {
	payload := alertPayload(c.allocation)

	var raised []*message.Envelope
	if c.created {
		env, err := message.Build(s.vocab, alerts.New(enum.AlertConsoNewAllocation, enum.AppConso, payload))
		if err != nil {
			return err
		}
		raised = append(raised, env)
	}
	if !c.allocation.IsActive {
		env, err := message.Build(s.vocab, alerts.New(enum.AlertConsoInactiveAllocation, enum.AppConso, payload))
		if err != nil {
			return err
		}
		raised = append(raised, env)
	}
	if len(raised) == 0 {
		return nil
	}
	return s.publisher.Publish(ctx, raised...)
}

func unpackConsumption(_ context.Context, c *consumptionContext) error {
	payload, err := message.Unmarshal[dto.ConsoConsumption](c.Message)
	if err != nil {
		return err
	}
	date, err := parseDate(payload.Date)
	if err != nil {
		return hermeserrors.NewValidationError("date", payload.Date)
	}
	c.payload, c.date = payload, date
	return nil
}

func (s *Service) loadAllocation(ctx context.Context, c *consumptionContext) error {
	startDate, err := parseDate(c.payload.AllocationStartDate)
	if err != nil {
		return hermeserrors.NewValidationError("allocationStartDate", c.payload.AllocationStartDate)
	}
	allocation, err := s.conso.RetrieveAllocation(ctx, c.payload.Centre, c.payload.Machine, c.payload.Project, startDate)
	if err != nil {
		return err
	}
	if allocation == nil {
		s.log.Warnw("consumption of unknown allocation ignored",
			"centre", c.payload.Centre,
			"machine", c.payload.Machine,
			"project", c.payload.Project)
		c.Abort()
		return nil
	}
	c.allocation = allocation
	return nil
}

// splitConsumption yields the project total plus one row per sub project
// and per login.
func splitConsumption(_ context.Context, c *consumptionContext) error {
	total, err := c.payload.Total.Float64()
	if err != nil {
		return hermeserrors.NewValidationError("total", c.payload.Total.String())
	}
	rows := []*models.ConsoConsumption{{AllocationID: c.allocation.ID, Date: c.date, Total: total}}

	subProjects, err := amounts("subProjects", c.payload.SubProjects)
	if err != nil {
		return err
	}
	for _, name := range sortedKeys(subProjects) {
		rows = append(rows, &models.ConsoConsumption{AllocationID: c.allocation.ID, SubProject: name, Date: c.date, Total: subProjects[name]})
	}

	logins, err := amounts("logins", c.payload.Logins)
	if err != nil {
		return err
	}
	for _, login := range sortedKeys(logins) {
		rows = append(rows, &models.ConsoConsumption{AllocationID: c.allocation.ID, Login: login, Date: c.date, Total: logins[login]})
	}

	c.consumptions = rows
	return nil
}

func (s *Service) persistConsumption(ctx context.Context, c *consumptionContext) error {
	for _, consumption := range c.consumptions {
		if err := s.conso.PersistConsumption(ctx, consumption); err != nil {
			return err
		}
	}
	return nil
}

// Allocation validates payload into an allocation row. An allocation is
// active unless the payload says otherwise.
func Allocation(payload *dto.ConsoAllocation) (*models.ConsoAllocation, error) {
	if payload.Centre == "" || payload.Machine == "" || payload.Project == "" {
		return nil, hermeserrors.NewValidationError("project", payload.Project)
	}
	startDate, err := parseDate(payload.StartDate)
	if err != nil {
		return nil, hermeserrors.NewValidationError("startDate", payload.StartDate)
	}
	endDate, err := parseDate(payload.EndDate)
	if err != nil {
		return nil, hermeserrors.NewValidationError("endDate", payload.EndDate)
	}
	if endDate.Before(startDate) {
		return nil, hermeserrors.NewValidationError("endDate", payload.EndDate)
	}
	budget, err := payload.Budget.Float64()
	if err != nil {
		return nil, hermeserrors.NewValidationError("budget", payload.Budget.String())
	}

	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}

	return &models.ConsoAllocation{
		Centre:    payload.Centre,
		Machine:   payload.Machine,
		Project:   payload.Project,
		StartDate: startDate,
		EndDate:   endDate,
		Budget:    budget,
		IsActive:  isActive,
	}, nil
}

func alertPayload(allocation *models.ConsoAllocation) map[string]interface{} {
	return map[string]interface{}{
		"centre":     allocation.Centre,
		"machine":    allocation.Machine,
		"project":    allocation.Project,
		"start_date": allocation.StartDate.Format(dateLayout),
		"end_date":   allocation.EndDate.Format(dateLayout),
		"budget":     strconv.FormatFloat(allocation.Budget, 'f', -1, 64),
	}
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid date %q", value)
	}
	return t.UTC(), nil
}

func amounts(field string, values map[string]any) (map[string]float64, error) {
	result := make(map[string]float64, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case float64:
			result[key] = v
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, hermeserrors.NewValidationError(field, v)
			}
			result[key] = f
		default:
			return nil, hermeserrors.NewValidationError(field, value)
		}
	}
	return result, nil
}

func sortedKeys(values map[string]float64) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
