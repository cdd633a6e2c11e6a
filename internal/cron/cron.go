package cron

import (
	"context"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"

	cron_config "github.com/prodiguer/hermes/internal/cron/config"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/tracing"
)

const (
	JobHeartbeat  = "heartbeat"
	JobSMTPPoller = "smtp_poller"
	JobSMTPCheck  = "smtp_check"
)

// Poller runs one mailbox polling cycle.
type Poller interface {
	Poll(ctx context.Context) (int, error)
}

// Checker runs one mailbox health cycle.
type Checker interface {
	Cycle(ctx context.Context) bool
}

type CronManager struct {
	cfg        cron_config.Config
	agent      string
	log        logger.Logger
	cron       *cronv3.Cron
	poller     Poller
	pollMu     sync.Mutex
	checker    Checker
	checkEvery time.Duration
	stopCh     chan struct{}
	jobIDs     map[string]cronv3.EntryID
}

// NewCronManager schedules the jobs of one agent process. poller may be
// nil, in which case only the heartbeat runs.
func NewCronManager(cfg cron_config.Config, agent string, log logger.Logger, poller Poller) *CronManager {
	return &CronManager{
		cfg:    cfg,
		agent:  agent,
		log:    log,
		poller: poller,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
	}
}

// WithChecker schedules a health cycle of checker at a fixed interval.
func (cm *CronManager) WithChecker(checker Checker, every time.Duration) *CronManager {
	cm.checker = checker
	cm.checkEvery = every
	return cm
}

// Stop waits for running jobs to finish.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	if cm.cfg.CronScheduleHeartbeat != "" {
		id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from agent: %s", cm.agent)
		})
		if err != nil {
			return err
		}
		cm.jobIDs[JobHeartbeat] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	}

	if cm.poller != nil && cm.cfg.CronScheduleSMTPPoller != "" {
		id, err := c.AddFunc(cm.cfg.CronScheduleSMTPPoller, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.pollMu.Lock()
			defer cm.pollMu.Unlock()
			cm.pollMailbox()
		})
		if err != nil {
			return err
		}
		cm.jobIDs[JobSMTPPoller] = id
		cm.log.Infof("Registered smtp poller job with schedule: %s", cm.cfg.CronScheduleSMTPPoller)
	}

	if cm.checker != nil && cm.checkEvery > 0 {
		cm.jobIDs[JobSMTPCheck] = c.Schedule(cronv3.Every(cm.checkEvery), cronv3.FuncJob(func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.checker.Cycle(context.Background())
		}))
		cm.log.Infof("Registered smtp check job every %v", cm.checkEvery)
	}
	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

func (cm *CronManager) pollMailbox() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.pollMailbox")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	announced, err := cm.poller.Poll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to poll mailbox: %v", err)
		return
	}
	if announced > 0 {
		cm.log.Infof("Announced %d new emails", announced)
	}
}
