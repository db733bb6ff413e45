package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ams/internal/shared"
)

const recordTimeout = 5 * time.Second

// Writer appends audit entries.
type Writer interface {
	Insert(ctx context.Context, l shared.AuditLog) error
}

// Recorder is the best-effort shared.AuditSink backed by a Writer.
type Recorder struct {
	writer Writer
	logger *slog.Logger
}

// NewRecorder constructs Recorder.
func NewRecorder(writer Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, logger: logger}
}

// Record stores l. Failures are logged and never reach the caller.
func (r *Recorder) Record(ctx context.Context, l shared.AuditLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.writer.Insert(ctx, l); err != nil {
		r.logger.Error("audit record failed",
			slog.String("action", l.Action),
			slog.String("entity_type", l.EntityType),
			slog.String("entity_id", l.EntityID),
			slog.Any("error", err))
	}
}
