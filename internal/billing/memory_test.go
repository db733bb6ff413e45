package billing

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices map[int64]Invoice
	bills    map[int64]Bill
	payments map[int64]Payment
	ledgers  map[int64]bool
	stamps   map[int64]time.Time
}

func newMemoryRepo(ledgers ...int64) *memoryRepo {
	r := &memoryRepo{
		invoices: map[int64]Invoice{},
		bills:    map[int64]Bill{},
		payments: map[int64]Payment{},
		ledgers:  map[int64]bool{},
		stamps:   map[int64]time.Time{},
	}
	for _, id := range ledgers {
		r.ledgers[id] = true
	}
	return r
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invoices, bills, payments := maps.Clone(r.invoices), maps.Clone(r.bills), maps.Clone(r.payments)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.invoices, r.bills, r.payments = invoices, bills, payments
		return err
	}
	return nil
}

func (r *memoryRepo) paymentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

func (r *memoryRepo) setInvoiceStatus(id int64, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv := r.invoices[id]
	inv.Status = s
	r.invoices[id] = inv
}

func (r *memoryRepo) CreateInvoice(_ context.Context, in InvoiceInput) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ledgers[in.LedgerID] {
		return Invoice{}, errLedgerMissing
	}
	for _, inv := range r.invoices {
		if inv.Number == in.Number {
			return Invoice{}, ErrDuplicateNumber
		}
	}
	inv := Invoice{
		ID: r.id(), Number: in.Number, CustomerID: in.CustomerID, LedgerID: in.LedgerID, Description: in.Description,
		IssueDate: in.IssueDate, DueDate: in.DueDate, Subtotal: in.Subtotal, TaxRate: in.TaxRate,
		DiscountRate: in.DiscountRate, Status: in.Status, Notes: in.Notes, CreatedAt: time.Now(),
	}
	r.invoices[inv.ID] = inv
	return inv, nil
}

func (r *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	if at, ok := r.stamps[id]; ok {
		inv.LastReminderSent = &at
	}
	return inv, nil
}

func (r *memoryRepo) ListInvoices(_ context.Context, f InvoiceFilter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) StampReminder(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	r.stamps[id] = at
	return nil
}

func (r *memoryRepo) CreateBill(_ context.Context, in BillInput) (Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ledgers[in.LedgerID] {
		return Bill{}, errLedgerMissing
	}
	b := Bill{
		ID: r.id(), Reference: in.Reference, VendorName: in.VendorName, LedgerID: in.LedgerID, Amount: in.Amount,
		TaxRate: in.TaxRate, DiscountRate: in.DiscountRate, IssuedDate: in.IssuedDate, DueDate: in.DueDate,
		Status: in.Status, PaymentMethod: in.PaymentMethod, CreatedAt: time.Now(),
	}
	r.bills[b.ID] = b
	return b, nil
}

func (r *memoryRepo) GetBill(_ context.Context, id int64) (Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (r *memoryRepo) ListBills(_ context.Context, f BillFilter) ([]Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Bill
	for _, b := range r.bills {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetPayment(_ context.Context, id int64) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPayments(_ context.Context, f PaymentFilter) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if f.InvoiceID > 0 && (p.InvoiceID == nil || *p.InvoiceID != f.InvoiceID) {
			continue
		}
		if f.BillID > 0 && (p.BillID == nil || *p.BillID != f.BillID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) MarkOverdue(_ context.Context, today time.Time) (OverdueResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res OverdueResult
	for id, inv := range r.invoices {
		if inv.Status == StatusPaid || inv.Status == StatusCancelled || inv.Status == StatusOverdue || !inv.DueDate.Before(today) {
			continue
		}
		inv.Status = StatusOverdue
		r.invoices[id] = inv
		res.Invoices = append(res.Invoices, id)
	}
	for id, b := range r.bills {
		if b.Status == StatusPaid || b.Status == StatusCancelled || b.Status == StatusOverdue || !b.DueDate.Before(today) {
			continue
		}
		b.Status = StatusOverdue
		r.bills[id] = b
		res.Bills = append(res.Bills, id)
	}
	return res, nil
}

// memoryTx runs with memoryRepo.mu already held by WithTx.
type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetInvoiceForUpdate(_ context.Context, id int64) (Invoice, error) {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (t *memoryTx) GetBillForUpdate(_ context.Context, id int64) (Bill, error) {
	b, ok := t.repo.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (t *memoryTx) UpdateInvoiceStatus(_ context.Context, id int64, status Status) error {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	t.repo.invoices[id] = inv
	return nil
}

func (t *memoryTx) UpdateBillStatus(_ context.Context, id int64, status Status) error {
	b, ok := t.repo.bills[id]
	if !ok {
		return ErrBillNotFound
	}
	b.Status = status
	t.repo.bills[id] = b
	return nil
}

func (t *memoryTx) InsertPayment(_ context.Context, in PaymentInput) (Payment, error) {
	p := Payment{
		ID: t.repo.id(), InvoiceID: in.InvoiceID, BillID: in.BillID, Amount: in.Amount, Method: in.Method,
		PaymentDate: in.PaymentDate, Reference: in.Reference, RecordedBy: in.RecordedBy, CreatedAt: time.Now(),
	}
	t.repo.payments[p.ID] = p
	return p, nil
}

func (t *memoryTx) GetPayment(_ context.Context, id int64) (Payment, error) {
	p, ok := t.repo.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (t *memoryTx) DeletePayment(_ context.Context, id int64) error {
	if _, ok := t.repo.payments[id]; !ok {
		return ErrPaymentNotFound
	}
	delete(t.repo.payments, id)
	return nil
}

func (t *memoryTx) SumInvoicePayments(_ context.Context, invoiceID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.repo.payments {
		if p.InvoiceID != nil && *p.InvoiceID == invoiceID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (t *memoryTx) SumBillPayments(_ context.Context, billID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.repo.payments {
		if p.BillID != nil && *p.BillID == billID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

type captureAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *captureAudit) Record(_ context.Context, l shared.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, l)
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []shared.Notification
}

func (n *captureNotifier) Notify(_ context.Context, msg shared.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}
