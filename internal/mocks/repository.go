package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/models"
)

// Store is an in-memory implementation of every relational repository,
// keyed by the same natural keys as the database.
type Store struct {
	mu             sync.Mutex
	Simulations    map[string]*models.Simulation
	Configurations map[string]string
	Jobs           map[string]*models.Job
	Supervisions   map[uint]*models.Supervision
	Allocations    []*models.ConsoAllocation
	Consumptions   []*models.ConsoConsumption
	Messages       map[string]*models.Message
	EmailStats     []*models.MessageEmailStats
	Documents      map[string][]map[string]interface{}

	// Err, when set, fails every write.
	Err error

	nextID uint
}

func NewStore() *Store {
	return &Store{
		Simulations:    make(map[string]*models.Simulation),
		Configurations: make(map[string]string),
		Jobs:           make(map[string]*models.Job),
		Supervisions:   make(map[uint]*models.Supervision),
		Messages:       make(map[string]*models.Message),
		Documents:      make(map[string][]map[string]interface{}),
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) PersistSimulationStart(_ context.Context, simulation *models.Simulation) (*models.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	stored := *simulation
	if existing, ok := s.Simulations[simulation.UID]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = s.id()
	}
	s.Simulations[simulation.UID] = &stored
	result := stored
	return &result, nil
}

func (s *Store) PersistSimulationEnd(_ context.Context, uid string, endDate time.Time, isError bool) (*models.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	simulation, ok := s.Simulations[uid]
	if !ok {
		return nil, errors.Wrapf(hermeserrors.ErrNotFound, "simulation %s", uid)
	}
	simulation.ExecutionEndDate = &endDate
	simulation.IsError = isError
	simulation.ExecutionState = enum.ExecutionComplete
	if isError {
		simulation.ExecutionState = enum.ExecutionError
	}
	result := *simulation
	return &result, nil
}

func (s *Store) RetrieveSimulation(_ context.Context, uid string) (*models.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	simulation, ok := s.Simulations[uid]
	if !ok {
		return nil, nil
	}
	result := *simulation
	return &result, nil
}

func (s *Store) RetrieveActiveSimulation(_ context.Context, hashID string) (*models.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, simulation := range s.Simulations {
		if simulation.HashID == hashID && !simulation.IsObsolete {
			result := *simulation
			return &result, nil
		}
	}
	return nil, nil
}

func (s *Store) ObsoleteSimulations(_ context.Context, hashID, exceptUID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	var count int64
	for uid, simulation := range s.Simulations {
		if uid != exceptUID && simulation.HashID == hashID && !simulation.IsObsolete {
			simulation.IsObsolete = true
			count++
		}
	}
	return count, nil
}

func (s *Store) PersistSimulationConfiguration(_ context.Context, simulationUID, card string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Configurations[simulationUID] = card
	return nil
}

func (s *Store) DeleteSimulation(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	delete(s.Simulations, uid)
	delete(s.Configurations, uid)
	for jobUID, job := range s.Jobs {
		if job.SimulationUID == uid {
			delete(s.Jobs, jobUID)
		}
	}
	for id, supervision := range s.Supervisions {
		if supervision.SimulationUID == uid {
			delete(s.Supervisions, id)
		}
	}
	return nil
}

func (s *Store) PersistJobStart(_ context.Context, job *models.Job) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	stored := *job
	if existing, ok := s.Jobs[job.JobUID]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = s.id()
	}
	s.Jobs[job.JobUID] = &stored
	result := stored
	return &result, nil
}

func (s *Store) PersistJobEnd(_ context.Context, job *models.Job) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	stored, ok := s.Jobs[job.JobUID]
	if !ok {
		copied := *job
		copied.ID = s.id()
		stored = &copied
		s.Jobs[job.JobUID] = stored
	}
	stored.ExecutionEndDate = job.ExecutionEndDate
	stored.ExecutionState = job.ExecutionState
	stored.IsError = job.IsError
	stored.IsComputeEnd = job.IsComputeEnd
	if job.SimulationUID != "" {
		stored.SimulationUID = job.SimulationUID
	}
	result := *stored
	return &result, nil
}

func (s *Store) RetrieveJob(_ context.Context, uid string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.Jobs[uid]
	if !ok {
		return nil, nil
	}
	result := *job
	return &result, nil
}

func (s *Store) CreateSupervision(_ context.Context, supervision *models.Supervision) (*models.Supervision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	stored := *supervision
	stored.ID = s.id()
	s.Supervisions[stored.ID] = &stored
	result := stored
	return &result, nil
}

func (s *Store) RetrieveSupervision(_ context.Context, id uint) (*models.Supervision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supervision, ok := s.Supervisions[id]
	if !ok {
		return nil, errors.Wrapf(hermeserrors.ErrNotFound, "supervision %d", id)
	}
	result := *supervision
	return &result, nil
}

func (s *Store) UpdateSupervision(_ context.Context, supervision *models.Supervision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	stored := *supervision
	s.Supervisions[supervision.ID] = &stored
	return nil
}

func (s *Store) PersistAllocation(_ context.Context, allocation *models.ConsoAllocation) (*models.ConsoAllocation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, false, s.Err
	}

	for _, existing := range s.Allocations {
		if existing.Centre == allocation.Centre && existing.Machine == allocation.Machine &&
			existing.Project == allocation.Project && existing.StartDate.Equal(allocation.StartDate) {
			id := existing.ID
			*existing = *allocation
			existing.ID = id
			result := *existing
			return &result, false, nil
		}
	}

	stored := *allocation
	stored.ID = s.id()
	s.Allocations = append(s.Allocations, &stored)
	result := stored
	return &result, true, nil
}

func (s *Store) RetrieveAllocation(_ context.Context, centre, machine, project string, startDate time.Time) (*models.ConsoAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.Allocations {
		if existing.Centre == centre && existing.Machine == machine &&
			existing.Project == project && existing.StartDate.Equal(startDate) {
			result := *existing
			return &result, nil
		}
	}
	return nil, nil
}

func (s *Store) PersistConsumption(_ context.Context, consumption *models.ConsoConsumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	stored := *consumption
	stored.ID = s.id()
	s.Consumptions = append(s.Consumptions, &stored)
	return nil
}

func (s *Store) Exists(_ context.Context, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.Messages[uid]
	return ok, nil
}

func (s *Store) Create(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	stored := *message
	stored.ID = s.id()
	s.Messages[message.UID] = &stored
	return nil
}

func (s *Store) CreateEmailStats(_ context.Context, stats *models.MessageEmailStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	stored := *stats
	stored.ID = s.id()
	s.EmailStats = append(s.EmailStats, &stored)
	return nil
}

func (s *Store) Insert(_ context.Context, group string, documents []map[string]interface{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	s.Documents[group] = append(s.Documents[group], documents...)
	return len(documents), nil
}

func (s *Store) Groups(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]string, 0, len(s.Documents))
	for group := range s.Documents {
		groups = append(groups, group)
	}
	return groups, nil
}
