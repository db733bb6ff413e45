package shared

import (
	"context"
	"time"
)

// Audit actions recorded by the core services.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]any
	At         time.Time
}

// AuditSink receives audit records after a mutation commits. Implementations
// must never fail the caller's operation.
type AuditSink interface {
	Record(ctx context.Context, log AuditLog)
}

// NopAudit discards audit records.
type NopAudit struct{}

// Record implements AuditSink.
func (NopAudit) Record(context.Context, AuditLog) {}
