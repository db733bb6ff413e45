package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sums holds the per-side totals of a ledger's entries.
type Sums struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// ComputeBalance returns debits minus credits.
func ComputeBalance(s Sums) decimal.Decimal {
	return s.Debit.Sub(s.Credit)
}

// Recalculate rebuilds the AccountBalance of ledgerID from its entries inside
// tx. It must run in the same transaction as the entry write it follows.
func Recalculate(ctx context.Context, tx TxRepository, ledgerID int64, at time.Time) (Balance, error) {
	if err := lockLedger(ctx, tx, ledgerID); err != nil {
		return Balance{}, err
	}
	return rebuild(ctx, tx, ledgerID, at)
}

// Reconcile is Recalculate that also reports the balance stored before the
// rebuild, read after the ledger lock is granted.
func Reconcile(ctx context.Context, tx TxRepository, ledgerID int64, at time.Time) (Reconciliation, error) {
	if err := lockLedger(ctx, tx, ledgerID); err != nil {
		return Reconciliation{}, err
	}
	prev, err := tx.StoredBalance(ctx, ledgerID)
	if err != nil {
		return Reconciliation{}, err
	}
	bal, err := rebuild(ctx, tx, ledgerID, at)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{Balance: bal, Previous: prev}, nil
}

func lockLedger(ctx context.Context, tx TxRepository, ledgerID int64) error {
	if _, err := tx.GetLedgerForUpdate(ctx, ledgerID); err != nil {
		if errors.Is(err, ErrLedgerNotFound) {
			return fmt.Errorf("ledger %d: %w", ledgerID, ErrLedgerMissing)
		}
		return err
	}
	return nil
}

func rebuild(ctx context.Context, tx TxRepository, ledgerID int64, at time.Time) (Balance, error) {
	sums, err := tx.SumEntries(ctx, ledgerID)
	if err != nil {
		return Balance{}, err
	}
	bal := Balance{LedgerID: ledgerID, Balance: ComputeBalance(sums), UpdatedAt: at}
	if err := tx.UpsertBalance(ctx, bal); err != nil {
		return Balance{}, err
	}
	return bal, nil
}
