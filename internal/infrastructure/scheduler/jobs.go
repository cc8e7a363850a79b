package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// Job names
const (
	JobSessionCleanup = "session_cleanup"
	JobAutoSync       = "auto_sync"
)

// SessionCleaner deletes sessions past the maximum age
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// AutoSyncer syncs every credential with auto sync enabled
type AutoSyncer interface {
	RunAutoSync(ctx context.Context) (int, error)
}

// CleanupJob wraps a SessionCleaner as a job
func CleanupJob(cleaner SessionCleaner, logger *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		deleted, err := cleaner.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		logger.Info("Expired sessions removed", zap.Int64("deleted", deleted))
		return nil
	}
}

// AutoSyncJob wraps an AutoSyncer as a job
func AutoSyncJob(syncer AutoSyncer, logger *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		keys, err := syncer.RunAutoSync(ctx)
		if err != nil {
			return err
		}
		logger.Info("Scheduled sync finished", zap.Int("keys", keys))
		return nil
	}
}

// RegisterJobs registers the cleanup job and, when autoSyncCron is set, the
// scheduled sync job
func RegisterJobs(s *Scheduler, cleanupCron, autoSyncCron string, cleaner SessionCleaner, syncer AutoSyncer) error {
	if err := s.Register(JobSessionCleanup, cleanupCron, CleanupJob(cleaner, s.logger)); err != nil {
		return err
	}
	if autoSyncCron == "" || syncer == nil {
		return nil
	}
	return s.Register(JobAutoSync, autoSyncCron, AutoSyncJob(syncer, s.logger))
}
