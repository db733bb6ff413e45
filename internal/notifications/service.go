package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/ams/internal/shared"
)

// RepositoryPort abstracts notification persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, n shared.Notification) (Notification, error)
	List(ctx context.Context, f Filter) ([]Notification, error)
	MarkAllRead(ctx context.Context, s Scope) (int64, error)
	Get(ctx context.Context, id int64) (Notification, error)
	SetRead(ctx context.Context, id int64, read bool) (Notification, error)
	Delete(ctx context.Context, id int64) error
}

// Service stores and lists notifications.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Deliver persists a notification produced by a domain service.
func (s *Service) Deliver(ctx context.Context, n shared.Notification) (Notification, error) {
	n.Message = strings.TrimSpace(n.Message)
	if n.Message == "" {
		return Notification{}, shared.Invalid("message", "this field is required")
	}
	if n.Level == "" {
		n.Level = shared.NotifyInfo
	}
	if !ValidLevel(n.Level) {
		return Notification{}, shared.Invalid("level", "%q is not a valid choice", n.Level)
	}
	out, err := s.repo.Insert(ctx, n)
	if err != nil {
		return Notification{}, err
	}
	s.logger.Debug("notification stored", slog.Int64("id", out.ID), slog.String("level", out.Level))
	return out, nil
}

// List returns notifications visible in f.Scope.
func (s *Service) List(ctx context.Context, f Filter) ([]Notification, error) {
	f.Level = strings.TrimSpace(f.Level)
	if f.Level != "" && !ValidLevel(f.Level) {
		return nil, shared.Invalid("level", "%q is not a valid choice", f.Level)
	}
	return s.repo.List(ctx, f)
}

// MarkRead sets the read flag of one notification. Only its recipient or a
// scope covering every notification may change it.
func (s *Service) MarkRead(ctx context.Context, scope Scope, id int64, read bool) (Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if !scope.Owns(n) {
		return Notification{}, fmt.Errorf("%w: notification %d belongs to another user", shared.ErrForbidden, id)
	}
	if n.IsRead == read {
		return n, nil
	}
	return s.repo.SetRead(ctx, id, read)
}

// Delete removes a notification. Callers gate this on
// rbac.ActionSeeAllNotifications.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("notification deleted", slog.Int64("id", id))
	return nil
}

// MarkAllRead flags every visible notification as read.
func (s *Service) MarkAllRead(ctx context.Context, scope Scope) (int64, error) {
	return s.repo.MarkAllRead(ctx, scope)
}
