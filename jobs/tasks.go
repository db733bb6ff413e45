package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ams/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries notification delivery.
	QueueCritical = "critical"

	// TaskNotificationDeliver persists a notification.
	TaskNotificationDeliver = "notification:deliver"
	// TaskBillingOverdueScan flags unsettled invoices and bills past due.
	TaskBillingOverdueScan = "billing:overdue_scan"
	// TaskLedgerIntegrity recomputes every ledger balance.
	TaskLedgerIntegrity = "ledger:integrity"
)

// OverdueScanPayload pins the scan date; zero means today in UTC.
type OverdueScanPayload struct {
	Today string `json:"today,omitempty"`
}

// NewNotificationTask constructs a delivery task for n.
func NewNotificationTask(n shared.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDeliver, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// NewOverdueScanTask constructs an overdue scan task. An empty today scans
// relative to the worker clock.
func NewOverdueScanTask(today string) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{Today: today})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingOverdueScan, data, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}

// NewLedgerIntegrityTask constructs a ledger integrity task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil, asynq.MaxRetry(1), asynq.Timeout(15*time.Minute))
}
