package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBadgeSync reconciles badge reader scans into presence records.
	TaskBadgeSync = "attendance:badge_sync"
	// TaskContractSync reconciles personnel contracts into the store.
	TaskContractSync = "attendance:contract_sync"
)

// BadgeSyncPayload selects the day whose scans get reconciled. An empty
// Date means the day the task runs.
type BadgeSyncPayload struct {
	Date string `json:"date,omitempty"`
}

// Day resolves the payload date against the given fallback.
func (p BadgeSyncPayload) Day(fallback time.Time) (time.Time, error) {
	if p.Date == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", p.Date)
}

// NewBadgeSyncTask constructs the badge sync task.
func NewBadgeSyncTask(payload BadgeSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBadgeSync, data), nil
}

// NewContractSyncTask constructs the contract sync task.
func NewContractSyncTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskContractSync, nil), nil
}
