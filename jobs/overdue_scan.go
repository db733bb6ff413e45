package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ams/internal/billing"
	jobmetrics "github.com/odyssey-erp/ams/internal/jobs"
)

// OverdueMarker flags unsettled documents past due.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, today time.Time) (billing.OverdueResult, error)
}

// OverdueScanJob runs the scheduled overdue scan.
type OverdueScanJob struct {
	Billing OverdueMarker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskBillingOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Billing == nil {
		return errors.New("overdue scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskBillingOverdueScan)
	defer func() { err = tracker.End(err) }()

	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	var today time.Time
	if payload.Today != "" {
		if today, err = time.ParseInLocation("2006-01-02", payload.Today, time.UTC); err != nil {
			return fmt.Errorf("parse today: %v: %w", err, asynq.SkipRetry)
		}
	}
	res, err := j.Billing.MarkOverdue(ctx, today)
	if err != nil {
		return err
	}
	j.Metrics.AddOverdue("invoice", len(res.Invoices))
	j.Metrics.AddOverdue("bill", len(res.Bills))
	if j.Logger != nil {
		j.Logger.Info("overdue scan executed",
			slog.String("job", TaskBillingOverdueScan),
			slog.Int("invoices", len(res.Invoices)),
			slog.Int("bills", len(res.Bills)))
	}
	return nil
}
