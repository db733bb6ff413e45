// Package billing manages invoices, bills and the payments that settle them.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

// Status is the lifecycle state shared by invoices and bills.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

var (
	ErrInvoiceNotFound = fmt.Errorf("%w: invoice", shared.ErrNotFound)
	ErrBillNotFound    = fmt.Errorf("%w: bill", shared.ErrNotFound)
	ErrPaymentNotFound = fmt.Errorf("%w: payment record", shared.ErrNotFound)
	ErrDuplicateNumber = fmt.Errorf("%w: number already exists", shared.ErrConflict)
	ErrInvalidStatus   = fmt.Errorf("%w: invalid status transition", shared.ErrConflict)

	errLedgerMissing = shared.Invalid("ledger", "object does not exist")
)

// TotalDue applies tax and discount percentages to base and truncates the
// result to two fraction digits.
func TotalDue(base, taxRate, discountRate decimal.Decimal) decimal.Decimal {
	return shared.TruncateMoney(base.Add(percentOf(base, taxRate)).Sub(percentOf(base, discountRate)))
}

func percentOf(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(shared.Hundred())
}

func isOverdue(status Status, due, today time.Time) bool {
	return status != StatusPaid && status != StatusCancelled && due.Before(today)
}

// Invoice is a receivable.
type Invoice struct {
	ID               int64
	Number           string
	CustomerID       *int64
	LedgerID         int64
	Description      string
	IssueDate        time.Time
	DueDate          time.Time
	Subtotal         decimal.Decimal
	TaxRate          decimal.Decimal
	DiscountRate     decimal.Decimal
	Status           Status
	Notes            string
	LastReminderSent *time.Time
	CreatedAt        time.Time
}

// TaxAmount is subtotal * tax_rate / 100.
func (i Invoice) TaxAmount() decimal.Decimal { return shared.TruncateMoney(percentOf(i.Subtotal, i.TaxRate)) }

// DiscountAmount is subtotal * discount_rate / 100.
func (i Invoice) DiscountAmount() decimal.Decimal {
	return shared.TruncateMoney(percentOf(i.Subtotal, i.DiscountRate))
}

// TotalDue is the amount that settles the invoice.
func (i Invoice) TotalDue() decimal.Decimal { return TotalDue(i.Subtotal, i.TaxRate, i.DiscountRate) }

// IsOverdue reports whether the invoice is unsettled past its due date.
func (i Invoice) IsOverdue(today time.Time) bool { return isOverdue(i.Status, i.DueDate, today) }

// Bill is a payable.
type Bill struct {
	ID            int64
	Reference     string
	VendorName    string
	LedgerID      int64
	Amount        decimal.Decimal
	TaxRate       decimal.Decimal
	DiscountRate  decimal.Decimal
	IssuedDate    time.Time
	DueDate       time.Time
	Status        Status
	PaymentMethod shared.PaymentMethod
	CreatedAt     time.Time
}

// TotalDue is the amount that settles the bill.
func (b Bill) TotalDue() decimal.Decimal { return TotalDue(b.Amount, b.TaxRate, b.DiscountRate) }

// IsOverdue reports whether the bill is unsettled past its due date.
func (b Bill) IsOverdue(today time.Time) bool { return isOverdue(b.Status, b.DueDate, today) }

// Payment settles an invoice or a bill, never both.
type Payment struct {
	ID          int64
	InvoiceID   *int64
	BillID      *int64
	Amount      decimal.Decimal
	Method      shared.PaymentMethod
	PaymentDate time.Time
	Reference   string
	RecordedBy  *int64
	CreatedAt   time.Time
}

// InvoiceInput creates an invoice.
type InvoiceInput struct {
	Number       string
	CustomerID   *int64
	LedgerID     int64
	Description  string
	IssueDate    time.Time
	DueDate      time.Time
	Subtotal     decimal.Decimal
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Status       Status
	Notes        string
}

// Validate normalises and checks the input.
func (in *InvoiceInput) Validate() error {
	in.Number = strings.TrimSpace(in.Number)
	if in.Number == "" {
		return shared.Invalid("number", "this field is required")
	}
	if in.LedgerID <= 0 {
		return shared.Invalid("ledger", "this field is required")
	}
	if in.DueDate.IsZero() {
		return shared.Invalid("due_date", "this field is required")
	}
	if err := shared.ValidateAmount("subtotal", in.Subtotal, false); err != nil {
		return err
	}
	if err := shared.ValidateRate("tax_rate", in.TaxRate); err != nil {
		return err
	}
	if err := shared.ValidateRate("discount_rate", in.DiscountRate); err != nil {
		return err
	}
	switch in.Status {
	case "":
		in.Status = StatusDraft
	case StatusDraft, StatusSent:
	default:
		return shared.Invalid("status", "new invoices must be draft or sent")
	}
	return nil
}

// BillInput creates a bill.
type BillInput struct {
	Reference     string
	VendorName    string
	LedgerID      int64
	Amount        decimal.Decimal
	TaxRate       decimal.Decimal
	DiscountRate  decimal.Decimal
	IssuedDate    time.Time
	DueDate       time.Time
	Status        Status
	PaymentMethod shared.PaymentMethod
}

// Validate normalises and checks the input.
func (in *BillInput) Validate() error {
	in.Reference = strings.TrimSpace(in.Reference)
	in.VendorName = strings.TrimSpace(in.VendorName)
	if in.Reference == "" {
		return shared.Invalid("reference", "this field is required")
	}
	if in.VendorName == "" {
		return shared.Invalid("vendor_name", "this field is required")
	}
	if in.LedgerID <= 0 {
		return shared.Invalid("ledger", "this field is required")
	}
	if in.DueDate.IsZero() {
		return shared.Invalid("due_date", "this field is required")
	}
	if err := shared.ValidateAmount("amount", in.Amount, false); err != nil {
		return err
	}
	if err := shared.ValidateRate("tax_rate", in.TaxRate); err != nil {
		return err
	}
	if err := shared.ValidateRate("discount_rate", in.DiscountRate); err != nil {
		return err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = shared.PaymentBank
	}
	if err := shared.ValidatePaymentMethod("payment_method", in.PaymentMethod); err != nil {
		return err
	}
	switch in.Status {
	case "":
		in.Status = StatusDraft
	case StatusDraft, StatusSent:
	default:
		return shared.Invalid("status", "new bills must be draft or sent")
	}
	return nil
}

// PaymentInput records a payment.
type PaymentInput struct {
	InvoiceID   *int64
	BillID      *int64
	Amount      decimal.Decimal
	Method      shared.PaymentMethod
	PaymentDate time.Time
	Reference   string
	RecordedBy  *int64
}

// Validate checks that exactly one target is referenced before any write.
func (in *PaymentInput) Validate() error {
	if in.InvoiceID != nil && *in.InvoiceID <= 0 {
		in.InvoiceID = nil
	}
	if in.BillID != nil && *in.BillID <= 0 {
		in.BillID = nil
	}
	hasInvoice, hasBill := in.InvoiceID != nil, in.BillID != nil
	switch {
	case !hasInvoice && !hasBill:
		return shared.Invalid("non_field_errors", "payment must reference either an invoice or a bill")
	case hasInvoice && hasBill:
		return shared.Invalid("non_field_errors", "payment must reference an invoice or a bill, not both")
	}
	if err := shared.ValidateAmount("amount", in.Amount, true); err != nil {
		return err
	}
	return shared.ValidatePaymentMethod("method", in.Method)
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status     Status
	CustomerID int64
	LedgerID   int64
	Search     string
	Page       shared.Page
}

// BillFilter narrows bill listings.
type BillFilter struct {
	Status        Status
	PaymentMethod shared.PaymentMethod
	LedgerID      int64
	Search        string
	Page          shared.Page
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Method    shared.PaymentMethod
	InvoiceID int64
	BillID    int64
	Page      shared.Page
}

// OverdueResult reports what a batch overdue scan changed.
type OverdueResult struct {
	Invoices []int64
	Bills    []int64
}
