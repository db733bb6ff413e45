// Package notifications stores and serves user-facing notifications.
package notifications

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/ams/internal/shared"
)

// Notification is a stored message. A nil UserID is a broadcast.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotificationNotFound indicates an unknown notification id.
var ErrNotificationNotFound = fmt.Errorf("%w: notification", shared.ErrNotFound)

// Scope selects whose notifications are visible.
type Scope struct {
	// All lists every notification including broadcasts; otherwise only
	// those addressed to UserID.
	All    bool
	UserID int64
}

// Filter narrows notification listings.
type Filter struct {
	Scope  Scope
	Unread bool
	IsRead *bool
	Level  string
	Search string
	Page   shared.Page
}

// Owns reports whether n is addressed to the scope's user or the scope
// covers every notification.
func (s Scope) Owns(n Notification) bool {
	return s.All || (n.UserID != nil && *n.UserID == s.UserID)
}

// ValidLevel reports whether level is a known notification level.
func ValidLevel(level string) bool {
	switch level {
	case shared.NotifyInfo, shared.NotifyWarning, shared.NotifyCritical:
		return true
	}
	return false
}
