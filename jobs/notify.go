package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ams/internal/jobs"
	"github.com/odyssey-erp/ams/internal/notifications"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Enqueuer submits tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier is the shared.Notifier that hands notifications to the worker.
// Enqueue failures are logged and dropped.
type Notifier struct {
	client Enqueuer
	logger *slog.Logger
}

// NewNotifier constructs Notifier.
func NewNotifier(client Enqueuer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

// Notify implements shared.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg shared.Notification) {
	task, err := NewNotificationTask(msg)
	if err == nil {
		_, err = n.client.EnqueueContext(ctx, task, asynq.Queue(QueueCritical))
	}
	if err != nil {
		n.logger.Warn("notification enqueue failed", slog.String("level", msg.Level), slog.Any("error", err))
	}
}

// NotificationStore persists delivered notifications.
type NotificationStore interface {
	Deliver(ctx context.Context, n shared.Notification) (notifications.Notification, error)
}

// NotificationJob stores notifications pulled from the queue.
type NotificationJob struct {
	Store   NotificationStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskNotificationDeliver tasks.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("notification job: handler not configured")
	}
	tracker := j.Metrics.Track(TaskNotificationDeliver)
	defer func() { err = tracker.End(err) }()

	var payload shared.Notification
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := j.Store.Deliver(ctx, payload); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
