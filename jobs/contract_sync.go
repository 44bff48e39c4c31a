package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	"github.com/presenta/presenta/internal/attendance"
)

// ContractSyncJob pulls the personnel contract list and reconciles it into
// the store. Like badge sync, at most one pass runs at a time.
type ContractSyncJob struct {
	Service *attendance.Service
	Source  attendance.ContractSource
	Logger  *slog.Logger

	running atomic.Bool
	clock   func() time.Time
}

// NewContractSyncJob initialises the contract sync handler.
func NewContractSyncJob(service *attendance.Service, source attendance.ContractSource, logger *slog.Logger) *ContractSyncJob {
	return &ContractSyncJob{
		Service: service,
		Source:  source,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one contract reconciliation pass.
func (j *ContractSyncJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Service == nil || j.Source == nil {
		return errors.New("contract sync: handler not configured")
	}
	if !j.running.CompareAndSwap(false, true) {
		j.logger().Warn("contract sync already running, skipping")
		return nil
	}
	defer j.running.Store(false)

	start := j.clock()
	j.logger().Info("starting contract sync")
	if err := j.Service.RunContractSync(ctx, j.Source); err != nil {
		j.logger().Error("contract sync failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("completed contract sync", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ContractSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
