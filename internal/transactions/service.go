package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/ams/internal/shared"
)

// RepositoryPort abstracts transaction persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, in Input) (Transaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
	List(ctx context.Context, f Filter) ([]Transaction, error)
}

// Service implements the transaction approval workflow.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditSink
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the transaction service.
func NewService(repo RepositoryPort, audit shared.AuditSink, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a pending transaction owned by the calling principal.
func (s *Service) Create(ctx context.Context, in Input) (Transaction, error) {
	actor := shared.ActorID(ctx)
	if actor <= 0 {
		return Transaction{}, shared.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	in.CreatedBy = actor
	if in.Date.IsZero() {
		y, m, d := s.now().UTC().Date()
		in.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	t, err := s.repo.Create(ctx, in)
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, shared.AuditActionCreate, t.ID, map[string]any{
		"type":   string(t.Type),
		"amount": t.Amount.StringFixed(shared.MoneyScale),
	})
	return t, nil
}

// Get returns a transaction.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// List returns transactions matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Transaction, error) {
	return s.repo.List(ctx, f)
}

// Approve moves a pending transaction to approved and stamps the approver.
func (s *Service) Approve(ctx context.Context, id int64) (Transaction, error) {
	actor := shared.ActorID(ctx)
	at := s.now()
	return s.decide(ctx, id, Decision{Status: StatusApproved, ApprovedBy: &actor, ApprovedAt: &at})
}

// Reject moves a pending transaction to rejected.
func (s *Service) Reject(ctx context.Context, id int64) (Transaction, error) {
	return s.decide(ctx, id, Decision{Status: StatusRejected})
}

func (s *Service) decide(ctx context.Context, id int64, d Decision) (Transaction, error) {
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusPending {
			return fmt.Errorf("transaction %d is %s: %w", id, cur.Status, ErrInvalidStatus)
		}
		out, err = tx.SetStatus(ctx, id, d)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.logger.Info("transaction decided", slog.Int64("id", id), slog.String("status", string(d.Status)))
	s.record(ctx, shared.AuditActionUpdate, id, map[string]any{"status": string(d.Status)})
	return out, nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	s.audit.Record(ctx, shared.AuditLog{
		ActorID:    shared.ActorID(ctx),
		Action:     action,
		EntityType: "transaction",
		EntityID:   strconv.FormatInt(id, 10),
		Metadata:   meta,
		At:         s.now(),
	})
}
