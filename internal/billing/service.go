package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/ams/internal/observability"
	"github.com/odyssey-erp/ams/internal/shared"
)

// RepositoryPort abstracts billing persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
	StampReminder(ctx context.Context, id int64, at time.Time) error
	CreateBill(ctx context.Context, in BillInput) (Bill, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	ListBills(ctx context.Context, f BillFilter) ([]Bill, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error)
	MarkOverdue(ctx context.Context, today time.Time) (OverdueResult, error)
}

// Service implements invoicing, bills and the payment status engine.
type Service struct {
	repo     RepositoryPort
	audit    shared.AuditSink
	notifier shared.Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewService constructs the billing service.
func NewService(repo RepositoryPort, audit shared.AuditSink, notifier shared.Notifier, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if notifier == nil {
		notifier = shared.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger, now: time.Now}
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

// Today returns the current UTC calendar date.
func (s *Service) Today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateInvoice validates and stores an invoice.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = s.Today()
	}
	inv, err := s.repo.CreateInvoice(ctx, in)
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, shared.AuditActionCreate, "invoice", inv.ID, map[string]any{"number": inv.Number})
	return inv, nil
}

// GetInvoice returns an invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns invoices matching f.
func (s *Service) ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, f)
}

// SendInvoice moves a draft invoice to sent.
func (s *Service) SendInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.transitionInvoice(ctx, id, StatusSent, func(cur Status) bool { return cur == StatusDraft })
}

// CancelInvoice cancels an unpaid invoice.
func (s *Service) CancelInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.transitionInvoice(ctx, id, StatusCancelled, func(cur Status) bool {
		return cur != StatusPaid && cur != StatusCancelled
	})
}

func (s *Service) transitionInvoice(ctx context.Context, id int64, to Status, allowed func(Status) bool) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !allowed(inv.Status) {
			return fmt.Errorf("invoice %s is %s: %w", inv.Number, inv.Status, ErrInvalidStatus)
		}
		inv.Status = to
		return tx.UpdateInvoiceStatus(ctx, id, to)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, shared.AuditActionUpdate, "invoice", inv.ID, map[string]any{"status": string(to)})
	return inv, nil
}

// SendReminder notifies the invoice customer and stamps the reminder time.
func (s *Service) SendReminder(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	s.notifier.Notify(ctx, shared.Notification{
		UserID:  inv.CustomerID,
		Message: fmt.Sprintf("Invoice %s is due on %s", inv.Number, inv.DueDate.Format("2006-01-02")),
		Level:   shared.NotifyWarning,
	})
	at := s.now()
	if err := s.repo.StampReminder(ctx, id, at); err != nil {
		return Invoice{}, err
	}
	inv.LastReminderSent = &at
	return inv, nil
}

// CreateBill validates and stores a bill.
func (s *Service) CreateBill(ctx context.Context, in BillInput) (Bill, error) {
	if err := in.Validate(); err != nil {
		return Bill{}, err
	}
	if in.IssuedDate.IsZero() {
		in.IssuedDate = s.Today()
	}
	b, err := s.repo.CreateBill(ctx, in)
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, shared.AuditActionCreate, "bill", b.ID, map[string]any{"reference": b.Reference})
	return b, nil
}

// GetBill returns a bill.
func (s *Service) GetBill(ctx context.Context, id int64) (Bill, error) {
	return s.repo.GetBill(ctx, id)
}

// ListBills returns bills matching f.
func (s *Service) ListBills(ctx context.Context, f BillFilter) ([]Bill, error) {
	return s.repo.ListBills(ctx, f)
}

// MarkBillOverdue flags a bill as overdue and broadcasts a warning.
func (s *Service) MarkBillOverdue(ctx context.Context, id int64) (Bill, error) {
	b, err := s.transitionBill(ctx, id, StatusOverdue, func(cur Status) bool {
		return cur != StatusPaid && cur != StatusCancelled
	})
	if err != nil {
		return Bill{}, err
	}
	s.notifier.Notify(ctx, shared.Notification{
		Message: fmt.Sprintf("Bill %s is overdue.", b.Reference),
		Level:   shared.NotifyWarning,
	})
	return b, nil
}

// CancelBill cancels an unpaid bill.
func (s *Service) CancelBill(ctx context.Context, id int64) (Bill, error) {
	return s.transitionBill(ctx, id, StatusCancelled, func(cur Status) bool {
		return cur != StatusPaid && cur != StatusCancelled
	})
}

func (s *Service) transitionBill(ctx context.Context, id int64, to Status, allowed func(Status) bool) (Bill, error) {
	var b Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		b, err = tx.GetBillForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !allowed(b.Status) {
			return fmt.Errorf("bill %s is %s: %w", b.Reference, b.Status, ErrInvalidStatus)
		}
		b.Status = to
		return tx.UpdateBillStatus(ctx, id, to)
	})
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, shared.AuditActionUpdate, "bill", b.ID, map[string]any{"status": string(to)})
	return b, nil
}

// RecordPayment stores a payment and recomputes its target's status in the
// same transaction.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (Payment, Status, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, "", err
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = s.Today()
	}
	if in.RecordedBy == nil {
		if actor := shared.ActorID(ctx); actor > 0 {
			in.RecordedBy = &actor
		}
	}
	var (
		payment Payment
		status  Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.lockTarget(ctx, tx, in.InvoiceID, in.BillID); err != nil {
			return err
		}
		var err error
		payment, err = tx.InsertPayment(ctx, in)
		if err != nil {
			return err
		}
		status, err = s.applyPayments(ctx, tx, payment.InvoiceID, payment.BillID)
		return err
	})
	if err != nil {
		if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("record payment", slog.Any("error", err))
		}
		return Payment{}, "", err
	}
	s.metrics.PaymentRecorded(targetLabel(payment), string(status))
	s.record(ctx, shared.AuditActionCreate, "payment_record", payment.ID, map[string]any{
		"amount": payment.Amount.StringFixed(shared.MoneyScale),
	})
	return payment, status, nil
}

// DeletePayment removes a payment and recomputes its target's status.
func (s *Service) DeletePayment(ctx context.Context, id int64) (Status, error) {
	var (
		payment Payment
		status  Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if err := s.lockTarget(ctx, tx, payment.InvoiceID, payment.BillID); err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}
		status, err = s.applyPayments(ctx, tx, payment.InvoiceID, payment.BillID)
		return err
	})
	if err != nil {
		return "", err
	}
	s.record(ctx, shared.AuditActionDelete, "payment_record", payment.ID, map[string]any{
		"amount": payment.Amount.StringFixed(shared.MoneyScale),
	})
	return status, nil
}

func (s *Service) lockTarget(ctx context.Context, tx TxRepository, invoiceID, billID *int64) error {
	if invoiceID != nil {
		if _, err := tx.GetInvoiceForUpdate(ctx, *invoiceID); err != nil {
			if errors.Is(err, ErrInvoiceNotFound) {
				return shared.Invalid("invoice", "invalid pk %d - object does not exist", *invoiceID)
			}
			return err
		}
		return nil
	}
	if _, err := tx.GetBillForUpdate(ctx, *billID); err != nil {
		if errors.Is(err, ErrBillNotFound) {
			return shared.Invalid("bill", "invalid pk %d - object does not exist", *billID)
		}
		return err
	}
	return nil
}

// applyPayments must run after lockTarget in the same transaction.
func (s *Service) applyPayments(ctx context.Context, tx TxRepository, invoiceID, billID *int64) (Status, error) {
	if invoiceID != nil {
		inv, err := tx.GetInvoiceForUpdate(ctx, *invoiceID)
		if err != nil {
			return "", err
		}
		paid, err := tx.SumInvoicePayments(ctx, inv.ID)
		if err != nil {
			return "", err
		}
		next := InvoiceStatusAfterPayments(inv.Status, inv.TotalDue(), paid)
		if next != inv.Status {
			if err := tx.UpdateInvoiceStatus(ctx, inv.ID, next); err != nil {
				return "", err
			}
		}
		return next, nil
	}
	b, err := tx.GetBillForUpdate(ctx, *billID)
	if err != nil {
		return "", err
	}
	paid, err := tx.SumBillPayments(ctx, b.ID)
	if err != nil {
		return "", err
	}
	next := BillStatusAfterPayments(b.Status, b.TotalDue(), paid)
	if next != b.Status {
		if err := tx.UpdateBillStatus(ctx, b.ID, next); err != nil {
			return "", err
		}
	}
	return next, nil
}

// GetPayment returns a payment record.
func (s *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments returns payments matching f.
func (s *Service) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	return s.repo.ListPayments(ctx, f)
}

// MarkOverdue flags every unsettled invoice and bill due before today and
// broadcasts a summary when anything changed.
func (s *Service) MarkOverdue(ctx context.Context, today time.Time) (OverdueResult, error) {
	if today.IsZero() {
		today = s.Today()
	}
	res, err := s.repo.MarkOverdue(ctx, today)
	if err != nil {
		return OverdueResult{}, err
	}
	if n := len(res.Invoices) + len(res.Bills); n > 0 {
		s.logger.Info("overdue scan", slog.Int("invoices", len(res.Invoices)), slog.Int("bills", len(res.Bills)))
		s.notifier.Notify(ctx, shared.Notification{
			Message: fmt.Sprintf("%d invoice(s) and %d bill(s) are now overdue.", len(res.Invoices), len(res.Bills)),
			Level:   shared.NotifyWarning,
		})
	}
	return res, nil
}

func targetLabel(p Payment) string {
	if p.InvoiceID != nil {
		return "invoice"
	}
	return "bill"
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
