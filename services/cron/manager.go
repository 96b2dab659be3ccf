package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/course-storefront/services"
	"gorm.io/gorm"
)

const (
	TriggerSchedule = "schedule"
	TriggerHTTP     = "http"

	// JobCleanup removes stale accounts and expired credentials.
	JobCleanup = "cleanup"
	// JobPurgeTokens only purges expired verification tokens.
	JobPurgeTokens = "purge_expired_tokens"

	jobTimeout = 5 * time.Minute
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron    *cron.Cron
	runner  *JobRunner
	cleanup *services.CleanupService
	tokens  *services.TokenService
}

func NewCronManager(db *gorm.DB, cleanup *services.CleanupService, tokens *services.TokenService) *CronManager {
	return &CronManager{
		cron:    cron.New(cron.WithSeconds()),
		runner:  NewJobRunner(db),
		cleanup: cleanup,
		tokens:  tokens,
	}
}

// Start registers the jobs and starts the scheduler.
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop waits for running jobs to finish.
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

func (m *CronManager) registerJobs() error {
	// Daily at 3 AM: full cleanup
	if _, err := m.cron.AddFunc("0 0 3 * * *", m.scheduled(JobCleanup, CleanupJob(m.cleanup))); err != nil {
		return err
	}

	// Hourly: expired auto-login and verification tokens
	if _, err := m.cron.AddFunc("0 15 * * * *", m.scheduled(JobPurgeTokens, m.purgeTokens)); err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

func (m *CronManager) scheduled(name string, job JobFunc) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		m.runner.Run(ctx, name, TriggerSchedule, job)
	}
}
