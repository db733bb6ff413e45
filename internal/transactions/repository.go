package transactions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ams/internal/platform/db"
)

// TxRepository exposes the operations that run under a transaction row lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Transaction, error)
	SetStatus(ctx context.Context, id int64, d Decision) (Transaction, error)
}

// Repository persists transactions in PostgreSQL.
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
		return errors.New("transactions repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const columns = `id, ledger_id, transaction_type, payment_method, amount, currency, description, reference,
transaction_date, status, created_by, approved_by, approved_at, created_at`

func scan(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.LedgerID, &t.Type, &t.PaymentMethod, &t.Amount, &t.Currency, &t.Description, &t.Reference,
		&t.Date, &t.Status, &t.CreatedBy, &t.ApprovedBy, &t.ApprovedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return scan(r.tx.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, d Decision) (Transaction, error) {
	return scan(r.tx.QueryRow(ctx, `UPDATE transactions SET status=$2, approved_by=$3, approved_at=$4
WHERE id=$1 RETURNING `+columns, id, d.Status, d.ApprovedBy, d.ApprovedAt))
}

// Create inserts a pending transaction.
func (r *Repository) Create(ctx context.Context, in Input) (Transaction, error) {
	t, err := scan(r.pool.QueryRow(ctx, `INSERT INTO transactions
(ledger_id, transaction_type, payment_method, amount, currency, description, reference, transaction_date, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'pending',$9) RETURNING `+columns,
		in.LedgerID, in.Type, in.PaymentMethod, in.Amount, in.Currency, in.Description, in.Reference, in.Date, in.CreatedBy))
	if db.IsForeignKeyViolation(err) {
		return Transaction{}, errLedgerMissing
	}
	return t, err
}

// Get fetches a transaction.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE id=$1`, id))
}

// List returns transactions newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Transaction, error) {
	var where db.Filter
	if f.Type != "" {
		where.Add("transaction_type = $%d", f.Type)
	}
	if f.PaymentMethod != "" {
		where.Add("payment_method = $%d", f.PaymentMethod)
	}
	if f.Status != "" {
		where.Add("status = $%d", f.Status)
	}
	if f.LedgerID > 0 {
		where.Add("ledger_id = $%d", f.LedgerID)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM transactions`+where.Where()+
		` ORDER BY transaction_date DESC, id DESC`+where.Limit(f.Page.Limit, f.Page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
