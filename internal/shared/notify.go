package shared

import "context"

// Notification levels.
const (
	NotifyInfo     = "info"
	NotifyWarning  = "warning"
	NotifyCritical = "critical"
)

// Notification is a message for one user or, with a nil UserID, for all
// admins and managers.
type Notification struct {
	UserID  *int64 `json:"user_id,omitempty"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

// Notifier delivers notifications on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Notification) {}
