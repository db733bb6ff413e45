// Package transactions records money movements that need manager approval.
package transactions

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

// Type is the direction of a transaction.
type Type string

const (
	TypeIncoming Type = "incoming"
	TypeOutgoing Type = "outgoing"
)

// Status tracks approval.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

const defaultCurrency = "USD"

var (
	ErrTransactionNotFound = fmt.Errorf("%w: transaction", shared.ErrNotFound)
	ErrInvalidStatus       = fmt.Errorf("%w: transaction is not pending", shared.ErrConflict)

	errLedgerMissing = shared.Invalid("ledger", "object does not exist")
)

// Transaction is a money movement against a ledger.
type Transaction struct {
	ID            int64
	LedgerID      int64
	Type          Type
	PaymentMethod shared.PaymentMethod
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Reference     string
	Date          time.Time
	Status        Status
	CreatedBy     int64
	ApprovedBy    *int64
	ApprovedAt    *time.Time
	CreatedAt     time.Time
}

// Input creates a transaction.
type Input struct {
	LedgerID      int64
	Type          Type
	PaymentMethod shared.PaymentMethod
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Reference     string
	Date          time.Time
	CreatedBy     int64
}

// Validate normalises and checks the input.
func (in *Input) Validate() error {
	if in.LedgerID <= 0 {
		return shared.Invalid("ledger", "this field is required")
	}
	if in.Type != TypeIncoming && in.Type != TypeOutgoing {
		return shared.Invalid("transaction_type", "%q is not a valid choice", in.Type)
	}
	if err := shared.ValidatePaymentMethod("payment_method", in.PaymentMethod); err != nil {
		return err
	}
	if err := shared.ValidateAmount("amount", in.Amount, true); err != nil {
		return err
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if len(in.Currency) > 10 {
		return shared.Invalid("currency", "ensure this field has no more than 10 characters")
	}
	return nil
}

// Filter narrows transaction listings.
type Filter struct {
	Type          Type
	PaymentMethod shared.PaymentMethod
	Status        Status
	LedgerID      int64
	Page          shared.Page
}

// Decision is an approval outcome written by SetStatus.
type Decision struct {
	Status     Status
	ApprovedBy *int64
	ApprovedAt *time.Time
}
