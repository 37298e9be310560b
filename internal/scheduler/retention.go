package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parley/internal/domain"
)

// RetentionJobName identifies the built-in stale-chat sweep.
const RetentionJobName = "retention-sweep"

// timeNow is swapped in tests to pin the sweep cutoff.
var timeNow = time.Now

// NewRetentionJob builds the stale-chat sweep: each firing deletes chats
// whose last activity is older than cfg.MaxAge days. The job's schedule is
// cfg.Schedule; registration validates it. The store must not be nil.
func NewRetentionJob(st domain.Store, cfg domain.RetentionConfig, logger *slog.Logger) (Job, error) {
	if st == nil {
		panic("scheduler: store must not be nil")
	}
	if cfg.MaxAge < 1 {
		return Job{}, fmt.Errorf("scheduler: retention max age must be at least 1 day, got %d", cfg.MaxAge)
	}
	if logger == nil {
		logger = slog.Default()
	}

	maxAge := time.Duration(cfg.MaxAge) * 24 * time.Hour
	return Job{
		Name:     RetentionJobName,
		CronExpr: cfg.Schedule,
		Run: func(ctx context.Context) error {
			cutoff := timeNow().Add(-maxAge)
			removed, err := st.DeleteStale(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("retention sweep: %w", err)
			}
			logger.Info("retention sweep complete",
				"removed", removed,
				"cutoff", cutoff.Format(time.RFC3339),
			)
			return nil
		},
	}, nil
}
