package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	"github.com/presenta/presenta/internal/attendance"
)

// BadgeSyncJob pulls badge scans and reconciles them into presence rows.
// A pass already in flight makes a new invocation a logged no-op; the
// reader connection tolerates only one pass at a time.
type BadgeSyncJob struct {
	Service *attendance.Service
	Source  attendance.BadgeSource
	Logger  *slog.Logger

	running atomic.Bool
	clock   func() time.Time
}

// NewBadgeSyncJob initialises the badge sync handler.
func NewBadgeSyncJob(service *attendance.Service, source attendance.BadgeSource, logger *slog.Logger) *BadgeSyncJob {
	return &BadgeSyncJob{
		Service: service,
		Source:  source,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one badge reconciliation pass.
func (j *BadgeSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil || j.Source == nil {
		return errors.New("badge sync: handler not configured")
	}
	var payload BadgeSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil && len(t.Payload()) > 0 {
		return asynq.SkipRetry
	}
	if !j.running.CompareAndSwap(false, true) {
		j.logger().Warn("badge sync already running, skipping")
		return nil
	}
	defer j.running.Store(false)

	day, err := payload.Day(j.clock())
	if err != nil {
		j.logger().Error("badge sync payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	start := j.clock()
	logger := j.logger().With(slog.String("day", day.Format("2006-01-02")))
	logger.Info("starting badge sync")
	if err := j.Service.RunBadgeSync(ctx, j.Source, day); err != nil {
		logger.Error("badge sync failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed badge sync", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *BadgeSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
