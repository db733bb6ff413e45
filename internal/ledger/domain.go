// Package ledger keeps account categories, ledgers, their entries and the
// derived running balance of every ledger.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

// CategoryType classifies ledgers for reporting.
type CategoryType string

const (
	CategoryAsset     CategoryType = "asset"
	CategoryLiability CategoryType = "liability"
	CategoryIncome    CategoryType = "income"
	CategoryExpense   CategoryType = "expense"
)

// Valid reports whether t is a known category type.
func (t CategoryType) Valid() bool {
	switch t {
	case CategoryAsset, CategoryLiability, CategoryIncome, CategoryExpense:
		return true
	}
	return false
}

// EntryType is the side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Valid reports whether t is debit or credit.
func (t EntryType) Valid() bool {
	return t == EntryDebit || t == EntryCredit
}

var (
	ErrCategoryNotFound = fmt.Errorf("%w: account category", shared.ErrNotFound)
	ErrLedgerNotFound   = fmt.Errorf("%w: ledger account", shared.ErrNotFound)
	ErrEntryNotFound    = fmt.Errorf("%w: ledger entry", shared.ErrNotFound)
	ErrBalanceNotFound  = fmt.Errorf("%w: account balance", shared.ErrNotFound)
	ErrDuplicateCode    = fmt.Errorf("%w: code already exists", shared.ErrConflict)
	ErrLedgerInactive   = fmt.Errorf("%w: ledger account is inactive", shared.ErrConflict)
	// ErrLedgerMissing is raised when a recompute targets a ledger row that no
	// longer exists. The surrounding transaction must roll back.
	ErrLedgerMissing = fmt.Errorf("%w: ledger missing during recalculation", shared.ErrConsistency)
)

// Category is an immutable account classification.
type Category struct {
	ID          int64
	Code        string
	Name        string
	Type        CategoryType
	Description string
	CreatedAt   time.Time
}

// Ledger is a named account holding entries.
type Ledger struct {
	ID          int64
	Code        string
	Name        string
	CategoryID  int64
	OwnerID     *int64
	Description string
	IsActive    bool
	CreatedAt   time.Time
	// Balance is nil until the first recalculation.
	Balance *Balance
}

// Entry is an immutable debit or credit against a ledger.
type Entry struct {
	ID            int64
	LedgerID      int64
	Type          EntryType
	Amount        decimal.Decimal
	PaymentMethod shared.PaymentMethod
	Description   string
	Reference     string
	EntryDate     time.Time
	CreatedBy     *int64
	CreatedAt     time.Time
}

// Balance is the derived running balance of a ledger.
type Balance struct {
	LedgerID  int64
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// Reconciliation is the outcome of rebuilding a stored balance.
type Reconciliation struct {
	Balance Balance
	// Previous is the stored balance read under the ledger lock; nil when
	// no balance row existed.
	Previous *decimal.Decimal
}

// Changed reports whether the rebuild altered the stored balance.
func (r Reconciliation) Changed() bool {
	return r.Previous == nil || !r.Previous.Equal(r.Balance.Balance)
}

// CategoryInput creates a category.
type CategoryInput struct {
	Code        string
	Name        string
	Type        CategoryType
	Description string
}

// Validate normalises and checks the input.
func (in *CategoryInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return shared.Invalid("code", "this field is required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "this field is required")
	}
	if !in.Type.Valid() {
		return shared.Invalid("type", "%q is not a valid choice", in.Type)
	}
	return nil
}

// LedgerInput creates a ledger.
type LedgerInput struct {
	Code        string
	Name        string
	CategoryID  int64
	OwnerID     *int64
	Description string
	IsActive    bool
}

// Validate normalises and checks the input.
func (in *LedgerInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return shared.Invalid("code", "this field is required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "this field is required")
	}
	if in.CategoryID <= 0 {
		return shared.Invalid("category", "this field is required")
	}
	return nil
}

// EntryInput posts an entry to a ledger.
type EntryInput struct {
	LedgerID      int64
	Type          EntryType
	Amount        decimal.Decimal
	PaymentMethod shared.PaymentMethod
	Description   string
	Reference     string
	EntryDate     time.Time
	CreatedBy     *int64
}

// Validate checks the input before any write.
func (in EntryInput) Validate() error {
	if in.LedgerID <= 0 {
		return shared.Invalid("ledger", "this field is required")
	}
	if !in.Type.Valid() {
		return shared.Invalid("entry_type", "%q is not a valid choice", in.Type)
	}
	if err := shared.ValidateAmount("amount", in.Amount, true); err != nil {
		return err
	}
	return shared.ValidatePaymentMethod("payment_method", in.PaymentMethod)
}

// CategoryFilter narrows category listings.
type CategoryFilter struct {
	Search string
	Type   CategoryType
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	CategoryID int64
	Active     *bool
	Search     string
	Page       shared.Page
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	LedgerID      int64
	Type          EntryType
	PaymentMethod shared.PaymentMethod
	From          time.Time
	To            time.Time
	Page          shared.Page
}
