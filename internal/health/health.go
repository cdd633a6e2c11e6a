package health

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const checkTimeout = 5 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Checker probes one collaborator of the agent.
type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Agent     string                 `json:"agent"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Registry struct {
	agent    string
	checkers []Checker
}

func NewRegistry(agent string) *Registry {
	return &Registry{agent: agent}
}

func (r *Registry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.checkers))
	for _, checker := range r.checkers {
		names = append(names, checker.Name())
	}
	sort.Strings(names)
	return names
}

// Check runs every checker; one failing checker makes the agent unhealthy.
func (r *Registry) Check(ctx context.Context) Health {
	health := Health{
		Status: StatusHealthy,
		Agent:  r.agent,
		Checks: make(map[string]CheckResult, len(r.checkers)),
	}

	for _, checker := range r.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checker.Check(checkCtx)
		cancel()

		result := CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			health.Status = StatusUnhealthy
		}
		health.Checks[checker.Name()] = result
	}

	health.Timestamp = time.Now()
	return health
}

type PostgresChecker struct {
	db *sql.DB
}

func NewPostgresChecker(db *sql.DB) *PostgresChecker {
	return &PostgresChecker{db: db}
}

func (c *PostgresChecker) Name() string {
	return "postgres"
}

func (c *PostgresChecker) Check(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type MongoChecker struct {
	client *mongo.Client
}

func NewMongoChecker(client *mongo.Client) *MongoChecker {
	return &MongoChecker{client: client}
}

func (c *MongoChecker) Name() string {
	return "mongodb"
}

func (c *MongoChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

type connection interface {
	IsConnected() bool
}

// BrokerChecker reports the publisher connection; it does not dial.
type BrokerChecker struct {
	conn connection
}

func NewBrokerChecker(conn connection) *BrokerChecker {
	return &BrokerChecker{conn: conn}
}

func (c *BrokerChecker) Name() string {
	return "rabbitmq"
}

func (c *BrokerChecker) Check(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}
