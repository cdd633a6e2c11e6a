package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/prodiguer/hermes/api"
	"github.com/prodiguer/hermes/config"
	"github.com/prodiguer/hermes/internal/cron"
	"github.com/prodiguer/hermes/internal/database"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/health"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/repository"
	"github.com/prodiguer/hermes/internal/tracing"
	"github.com/prodiguer/hermes/services"
)

const shutdownTimeout = 15 * time.Second

// Server runs one agent: its queue consumer or scheduled job, plus the
// operational HTTP endpoints.
type Server struct {
	config       *config.Config
	agent        enum.AgentType
	limit        int
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	health       *health.Registry
	cron         *cron.CronManager
	hermesDB     *gorm.DB
	metricsDB    *mongo.Client
	tracerCloser io.Closer
}

// NewServer connects the collaborators agent needs. limit bounds the number
// of deliveries a queue consumer handles; zero means no bound.
func NewServer(ctx context.Context, cfg *config.Config, agent enum.AgentType, limit int) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	log := appLogger.With("agent", agent.String())

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, agent.String(), appLogger)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)

	s := &Server{
		config:       cfg,
		agent:        agent,
		limit:        limit,
		log:          log,
		health:       health.NewRegistry(agent.String()),
		tracerCloser: closer,
	}

	repos, err := s.initRepositories(ctx)
	if err != nil {
		s.closeConnections()
		return nil, err
	}

	svcs, err := services.InitServices(ctx, cfg, agent, log, repos)
	if err != nil {
		s.closeConnections()
		return nil, err
	}
	s.services = svcs
	s.registerHealthChecks()

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	api.RegisterRoutes(s.router, agent.String(), s.health)
	s.httpServer = &http.Server{
		Addr:    ":" + cfg.AppConfig.Port,
		Handler: s.router,
	}

	return s, nil
}

func (s *Server) initRepositories(ctx context.Context) (*repository.Repositories, error) {
	if !services.RequiresDatabase(s.agent) {
		return nil, nil
	}

	db, err := database.InitHermesDatabase(s.config.HermesDatabase())
	if err != nil {
		return nil, err
	}
	s.hermesDB = db

	var metricsDB *mongo.Database
	if services.RequiresMetricsDatabase(s.agent) {
		client, mdb, err := database.InitMetricsDatabase(ctx, s.config.MetricsDatabase())
		if err != nil {
			return nil, err
		}
		s.metricsDB, metricsDB = client, mdb
	}

	return repository.InitRepositories(db, metricsDB), nil
}

func (s *Server) registerHealthChecks() {
	s.health.Register(health.NewBrokerChecker(s.services.Events.Publisher))
	if s.hermesDB != nil {
		if sqlDB, err := s.hermesDB.DB(); err == nil {
			s.health.Register(health.NewPostgresChecker(sqlDB))
		}
	}
	if s.metricsDB != nil {
		s.health.Register(health.NewMongoChecker(s.metricsDB))
	}
	if s.services.Redis != nil {
		s.health.Register(health.NewRedisChecker(s.services.Redis))
	}
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cronManager := cron.NewCronManager(*s.config.CronConfig, s.agent.String(), s.log, s.poller())
	if s.services.Checker != nil {
		cronManager.WithChecker(s.services.Checker, s.services.Checker.Interval())
	}
	if err := cronManager.StartCron(); err != nil {
		s.services.Close()
		s.closeConnections()
		return errors.Wrap(err, "failed to start cron")
	}
	s.cron = cronManager

	go func() {
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.log.Infof("Starting HTTP server on port %s", s.config.AppConfig.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- tracing.RunRecovered(s.log, func() error {
			return s.runAgent(ctx)
		})
	}()

	s.log.Infof("Agent %s is running", s.agent)
	return s.waitForShutdown(cancel, done)
}

// poller is nil unless the agent polls the mailbox.
func (s *Server) poller() cron.Poller {
	if s.services.Poller == nil {
		return nil
	}
	return s.services.Poller
}

// runAgent blocks until ctx is done or the consumer reached its limit.
// Scheduled agents do their work on the cron manager.
func (s *Server) runAgent(ctx context.Context) error {
	switch {
	case s.services.Checker != nil, s.services.Poller != nil:
		<-ctx.Done()
		return nil
	default:
		return s.services.Subscriber.Consume(ctx, s.agent, s.services.Handler, s.limit)
	}
}

func (s *Server) waitForShutdown(cancel context.CancelFunc, done <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		s.log.Infof("Received %s, shutting down", sig)
		cancel()
		select {
		case runErr = <-done:
		case <-time.After(shutdownTimeout):
			s.log.Warn("Agent did not stop in time")
		}
	case runErr = <-done:
		s.log.Info("Agent stopped, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	if err := s.services.Close(); err != nil {
		s.log.Errorf("Failed to close services: %v", err)
	}
	s.closeConnections()

	return runErr
}

func (s *Server) closeConnections() {
	if s.metricsDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.metricsDB.Disconnect(ctx); err != nil {
			s.log.Errorf("Failed to disconnect metrics database: %v", err)
		}
	}
	if s.hermesDB != nil {
		if sqlDB, err := s.hermesDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}
}
