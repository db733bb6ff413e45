package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/ams/internal/observability"
	"github.com/odyssey-erp/ams/internal/shared"
)

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateCategory(ctx context.Context, in CategoryInput) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context, f CategoryFilter) ([]Category, error)
	CreateLedger(ctx context.Context, in LedgerInput) (Ledger, error)
	GetLedger(ctx context.Context, id int64) (Ledger, error)
	ListLedgers(ctx context.Context, f LedgerFilter) ([]Ledger, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error)
	GetBalance(ctx context.Context, ledgerID int64) (Balance, error)
	ListBalances(ctx context.Context, page shared.Page) ([]Balance, error)
}

// Service coordinates entry postings and balance recalculation.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditSink
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the ledger service.
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

// WithMetrics attaches domain counters.
func (s *Service) WithMetrics(m *observability.Metrics) {
	s.metrics = m
}

func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateCategory validates and stores a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if err := in.Validate(); err != nil {
		return Category{}, err
	}
	c, err := s.repo.CreateCategory(ctx, in)
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, shared.AuditActionCreate, "account_category", c.ID, map[string]any{"code": c.Code})
	return c, nil
}

// GetCategory returns a category.
func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// ListCategories returns categories matching f.
func (s *Service) ListCategories(ctx context.Context, f CategoryFilter) ([]Category, error) {
	return s.repo.ListCategories(ctx, f)
}

// CreateLedger stores a ledger owned by the acting principal.
func (s *Service) CreateLedger(ctx context.Context, in LedgerInput) (Ledger, error) {
	if err := in.Validate(); err != nil {
		return Ledger{}, err
	}
	if actor := shared.ActorID(ctx); actor > 0 {
		in.OwnerID = &actor
	}
	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return Ledger{}, shared.Invalid("category", "invalid pk %d - object does not exist", in.CategoryID)
		}
		return Ledger{}, err
	}
	l, err := s.repo.CreateLedger(ctx, in)
	if err != nil {
		return Ledger{}, err
	}
	s.record(ctx, shared.AuditActionCreate, "ledger_account", l.ID, map[string]any{"code": l.Code})
	return l, nil
}

// GetLedger returns a ledger with its balance.
func (s *Service) GetLedger(ctx context.Context, id int64) (Ledger, error) {
	return s.repo.GetLedger(ctx, id)
}

// ListLedgers returns ledgers matching f.
func (s *Service) ListLedgers(ctx context.Context, f LedgerFilter) ([]Ledger, error) {
	return s.repo.ListLedgers(ctx, f)
}

// CreateEntry posts an entry and recomputes the ledger balance atomically.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (Entry, Balance, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, Balance{}, err
	}
	if in.EntryDate.IsZero() {
		in.EntryDate = s.today()
	}
	if in.CreatedBy == nil {
		if actor := shared.ActorID(ctx); actor > 0 {
			in.CreatedBy = &actor
		}
	}
	var (
		entry Entry
		bal   Balance
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := tx.GetLedgerForUpdate(ctx, in.LedgerID)
		if err != nil {
			if errors.Is(err, ErrLedgerNotFound) {
				return shared.Invalid("ledger", "invalid pk %d - object does not exist", in.LedgerID)
			}
			return err
		}
		if !l.IsActive {
			return ErrLedgerInactive
		}
		entry, err = tx.InsertEntry(ctx, in)
		if err != nil {
			return err
		}
		bal, err = s.recalculate(ctx, tx, in.LedgerID)
		return err
	})
	if err != nil {
		s.logFailure("create ledger entry", in.LedgerID, err)
		return Entry{}, Balance{}, err
	}
	s.metrics.EntryPosted(string(entry.Type), "create")
	s.record(ctx, shared.AuditActionCreate, "ledger_entry", entry.ID, map[string]any{
		"amount":     entry.Amount.StringFixed(shared.MoneyScale),
		"entry_type": string(entry.Type),
		"ledger_id":  entry.LedgerID,
	})
	return entry, bal, nil
}

// DeleteEntry removes an entry and recomputes its ledger balance atomically.
func (s *Service) DeleteEntry(ctx context.Context, id int64) (Balance, error) {
	var (
		entry Entry
		bal   Balance
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.GetLedgerForUpdate(ctx, entry.LedgerID); err != nil {
			if errors.Is(err, ErrLedgerNotFound) {
				return ErrLedgerMissing
			}
			return err
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		bal, err = s.recalculate(ctx, tx, entry.LedgerID)
		return err
	})
	if err != nil {
		s.logFailure("delete ledger entry", entry.LedgerID, err)
		return Balance{}, err
	}
	s.metrics.EntryPosted(string(entry.Type), "delete")
	s.record(ctx, shared.AuditActionDelete, "ledger_entry", entry.ID, map[string]any{
		"amount":    entry.Amount.StringFixed(shared.MoneyScale),
		"ledger_id": entry.LedgerID,
	})
	return bal, nil
}

// GetEntry returns an entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns entries matching f.
func (s *Service) ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, shared.Invalid("start_date", "must not be after end_date")
	}
	return s.repo.ListEntries(ctx, f)
}

// GetBalance returns the stored balance of a ledger.
func (s *Service) GetBalance(ctx context.Context, ledgerID int64) (Balance, error) {
	return s.repo.GetBalance(ctx, ledgerID)
}

// ListBalances returns stored balances.
func (s *Service) ListBalances(ctx context.Context, page shared.Page) ([]Balance, error) {
	return s.repo.ListBalances(ctx, page)
}

// RecalculateLedger recomputes a ledger balance in its own transaction.
func (s *Service) RecalculateLedger(ctx context.Context, ledgerID int64) (Balance, error) {
	rec, err := s.ReconcileLedger(ctx, ledgerID)
	return rec.Balance, err
}

// ReconcileLedger recomputes a ledger balance and reports the value it
// replaced. An audit row is written only when the stored balance changed.
func (s *Service) ReconcileLedger(ctx context.Context, ledgerID int64) (Reconciliation, error) {
	if _, err := s.repo.GetLedger(ctx, ledgerID); err != nil {
		return Reconciliation{}, err
	}
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		start := time.Now()
		var err error
		rec, err = Reconcile(ctx, tx, ledgerID, s.now())
		s.observe(start, err)
		return err
	})
	if err != nil {
		s.logFailure("recalculate ledger", ledgerID, err)
		return Reconciliation{}, err
	}
	if rec.Changed() {
		s.record(ctx, shared.AuditActionUpdate, "account_balance", ledgerID, map[string]any{
			"balance": rec.Balance.Balance.StringFixed(shared.MoneyScale),
		})
	}
	return rec, nil
}

func (s *Service) recalculate(ctx context.Context, tx TxRepository, ledgerID int64) (Balance, error) {
	start := time.Now()
	bal, err := Recalculate(ctx, tx, ledgerID, s.now())
	s.observe(start, err)
	return bal, err
}

func (s *Service) observe(start time.Time, err error) {
	var failure error
	if errors.Is(err, shared.ErrConsistency) {
		failure = err
	}
	s.metrics.ObserveRecalculation(time.Since(start), failure)
}

func (s *Service) logFailure(op string, ledgerID int64, err error) {
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrConflict) {
		return
	}
	s.logger.Error(op, slog.Int64("ledger_id", ledgerID), slog.Any("error", err))
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	s.audit.Record(ctx, shared.AuditLog{
		ActorID:    shared.ActorID(ctx),
		Action:     action,
		EntityType: entity,
		EntityID:   strconv.FormatInt(id, 10),
		Metadata:   meta,
		At:         s.now(),
	})
}
