package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobFunc does the work of one job and returns a summary message and
// optional metadata stored with the run.
type JobFunc func(ctx context.Context) (string, interface{}, error)

// JobRunner executes jobs and records each run in cron_job_logs, whether it
// was triggered by the scheduler or over HTTP.
type JobRunner struct {
	db *gorm.DB
}

func NewJobRunner(db *gorm.DB) *JobRunner {
	return &JobRunner{db: db}
}

// Run executes job and returns the metadata it produced.
func (r *JobRunner) Run(ctx context.Context, name, trigger string, job JobFunc) (interface{}, error) {
	started := time.Now().UTC()
	log.Printf("[CRON] Starting job: %s (%s)", name, trigger)

	entry := model.CronJobLog{
		JobName:   name,
		Trigger:   trigger,
		Status:    model.CronStatusStarted,
		StartedAt: started,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("[CRON] Failed to record start of %s: %v", name, err)
	}

	message, metadata, err := job(ctx)

	completed := time.Now().UTC()
	updates := map[string]interface{}{
		"completed_at": completed,
		"duration":     completed.Sub(started).Milliseconds(),
		"message":      message,
	}
	if metadata != nil {
		if raw, mErr := json.Marshal(metadata); mErr == nil {
			updates["metadata"] = datatypes.JSON(raw)
		}
	}

	if err != nil {
		log.Printf("[CRON] Error in job: %s - %v", name, err)
		updates["status"] = model.CronStatusFailed
		updates["error_msg"] = err.Error()
	} else {
		log.Printf("[CRON] Completed job: %s - %s", name, message)
		updates["status"] = model.CronStatusCompleted
	}

	if entry.ID != 0 {
		if uErr := r.db.Model(&model.CronJobLog{}).Where("id = ?", entry.ID).Updates(updates).Error; uErr != nil {
			log.Printf("[CRON] Failed to record result of %s: %v", name, uErr)
		}
	}

	return metadata, err
}

// purgeTokens removes expired verification tokens only.
func (m *CronManager) purgeTokens(ctx context.Context) (string, interface{}, error) {
	deleted, err := m.tokens.PurgeExpired(ctx)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("purged %d expired tokens", deleted), map[string]int64{"deletedTokens": deleted}, nil
}

// CleanupJob adapts the cleanup service to a JobFunc. The HTTP maintenance
// endpoint uses the same function so both paths log identically.
func CleanupJob(cleanup *services.CleanupService) JobFunc {
	return func(ctx context.Context) (string, interface{}, error) {
		result, err := cleanup.Run(ctx)
		if err != nil {
			return "", nil, err
		}
		msg := fmt.Sprintf("removed %d unverified users and %d expired tokens", result.DeletedUsers, result.DeletedTokens)
		return msg, result, nil
	}
}
