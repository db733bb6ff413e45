package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/platform/db"
)

// TxRepository exposes the operations that run under an invoice or bill row lock.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	GetBillForUpdate(ctx context.Context, id int64) (Bill, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error
	UpdateBillStatus(ctx context.Context, id int64, status Status) error
	InsertPayment(ctx context.Context, in PaymentInput) (Payment, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	SumInvoicePayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	SumBillPayments(ctx context.Context, billID int64) (decimal.Decimal, error)
}

// Repository persists billing data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn in a READ COMMITTED transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("billing repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, number, customer_id, ledger_id, description, issue_date, due_date, subtotal,
tax_rate, discount_rate, status, notes, last_reminder_sent, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.Number, &i.CustomerID, &i.LedgerID, &i.Description, &i.IssueDate, &i.DueDate, &i.Subtotal,
		&i.TaxRate, &i.DiscountRate, &i.Status, &i.Notes, &i.LastReminderSent, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return i, nil
}

const billColumns = `id, reference, vendor_name, ledger_id, amount, tax_rate, discount_rate, issued_date, due_date,
status, payment_method, created_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.Reference, &b.VendorName, &b.LedgerID, &b.Amount, &b.TaxRate, &b.DiscountRate,
		&b.IssuedDate, &b.DueDate, &b.Status, &b.PaymentMethod, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	return b, nil
}

const paymentColumns = `id, invoice_id, bill_id, amount, method, payment_date, reference, recorded_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.BillID, &p.Amount, &p.Method, &p.PaymentDate, &p.Reference, &p.RecordedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	return scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) UpdateBillStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE bills SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `INSERT INTO payment_records
(invoice_id, bill_id, amount, method, payment_date, reference, recorded_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+paymentColumns,
		in.InvoiceID, in.BillID, in.Amount, in.Method, in.PaymentDate, in.Reference, in.RecordedBy))
}

func (r *txRepository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id=$1`, id))
}

func (r *txRepository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payment_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) SumInvoicePayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payment_records WHERE invoice_id=$1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *txRepository) SumBillPayments(ctx context.Context, billID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payment_records WHERE bill_id=$1`, billID).Scan(&sum)
	return sum, err
}

// CreateInvoice inserts an invoice.
func (r *Repository) CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `INSERT INTO invoices
(number, customer_id, ledger_id, description, issue_date, due_date, subtotal, tax_rate, discount_rate, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+invoiceColumns,
		in.Number, in.CustomerID, in.LedgerID, in.Description, in.IssueDate, in.DueDate, in.Subtotal,
		in.TaxRate, in.DiscountRate, in.Status, in.Notes))
	return inv, mapWriteError(err)
}

// GetInvoice fetches an invoice.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
}

// ListInvoices returns invoices newest first.
func (r *Repository) ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error) {
	var where db.Filter
	if f.Status != "" {
		where.Add("status = $%d", f.Status)
	}
	if f.CustomerID > 0 {
		where.Add("customer_id = $%d", f.CustomerID)
	}
	if f.LedgerID > 0 {
		where.Add("ledger_id = $%d", f.LedgerID)
	}
	if f.Search != "" {
		where.Add("(number ILIKE '%%' || $%[1]d || '%%' OR description ILIKE '%%' || $%[1]d || '%%')", f.Search)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices`+where.Where()+
		` ORDER BY created_at DESC, id DESC`+where.Limit(f.Page.Limit, f.Page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// StampReminder records when a reminder was last sent.
func (r *Repository) StampReminder(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET last_reminder_sent=$2 WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// CreateBill inserts a bill.
func (r *Repository) CreateBill(ctx context.Context, in BillInput) (Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `INSERT INTO bills
(reference, vendor_name, ledger_id, amount, tax_rate, discount_rate, issued_date, due_date, status, payment_method)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+billColumns,
		in.Reference, in.VendorName, in.LedgerID, in.Amount, in.TaxRate, in.DiscountRate, in.IssuedDate, in.DueDate,
		in.Status, in.PaymentMethod))
	return b, mapWriteError(err)
}

// GetBill fetches a bill.
func (r *Repository) GetBill(ctx context.Context, id int64) (Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
}

// ListBills returns bills newest first.
func (r *Repository) ListBills(ctx context.Context, f BillFilter) ([]Bill, error) {
	var where db.Filter
	if f.Status != "" {
		where.Add("status = $%d", f.Status)
	}
	if f.PaymentMethod != "" {
		where.Add("payment_method = $%d", f.PaymentMethod)
	}
	if f.LedgerID > 0 {
		where.Add("ledger_id = $%d", f.LedgerID)
	}
	if f.Search != "" {
		where.Add("(reference ILIKE '%%' || $%[1]d || '%%' OR vendor_name ILIKE '%%' || $%[1]d || '%%')", f.Search)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM bills`+where.Where()+
		` ORDER BY created_at DESC, id DESC`+where.Limit(f.Page.Limit, f.Page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetPayment fetches a payment record.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id=$1`, id))
}

// ListPayments returns payments newest first.
func (r *Repository) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	var where db.Filter
	if f.Method != "" {
		where.Add("method = $%d", f.Method)
	}
	if f.InvoiceID > 0 {
		where.Add("invoice_id = $%d", f.InvoiceID)
	}
	if f.BillID > 0 {
		where.Add("bill_id = $%d", f.BillID)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payment_records`+where.Where()+
		` ORDER BY payment_date DESC, id DESC`+where.Limit(f.Page.Limit, f.Page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkOverdue flags unsettled invoices and bills due before today.
func (r *Repository) MarkOverdue(ctx context.Context, today time.Time) (OverdueResult, error) {
	var res OverdueResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		res.Invoices, err = collectIDs(tx.Query(ctx, `UPDATE invoices SET status='overdue'
WHERE due_date < $1 AND status NOT IN ('paid', 'cancelled', 'overdue') RETURNING id`, today))
		if err != nil {
			return err
		}
		res.Bills, err = collectIDs(tx.Query(ctx, `UPDATE bills SET status='overdue'
WHERE due_date < $1 AND status NOT IN ('paid', 'cancelled', 'overdue') RETURNING id`, today))
		return err
	})
	return res, err
}

func collectIDs(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicateNumber
	case db.IsForeignKeyViolation(err):
		return errLedgerMissing
	}
	return err
}
