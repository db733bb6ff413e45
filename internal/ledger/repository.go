package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/platform/db"
	"github.com/odyssey-erp/ams/internal/shared"
)

// TxRepository exposes the writes that must share one transaction with the
// balance recalculation.
type TxRepository interface {
	GetLedgerForUpdate(ctx context.Context, id int64) (Ledger, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
	InsertEntry(ctx context.Context, in EntryInput) (Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
	SumEntries(ctx context.Context, ledgerID int64) (Sums, error)
	UpsertBalance(ctx context.Context, b Balance) error
	// StoredBalance returns the persisted balance, nil when none exists.
	StoredBalance(ctx context.Context, ledgerID int64) (*decimal.Decimal, error)
}

// Repository persists ledger data in PostgreSQL.
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

// WithTx runs fn in a READ COMMITTED transaction. Writers serialise on the
// ledger row lock so aggregates read afterwards include the previous
// holder's committed entries.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const ledgerColumns = `l.id, l.code, l.name, l.category_id, l.owner_id, l.description, l.is_active, l.created_at`

func (r *txRepository) GetLedgerForUpdate(ctx context.Context, id int64) (Ledger, error) {
	var l Ledger
	err := r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger_accounts l WHERE l.id=$1 FOR UPDATE`, id).
		Scan(&l.ID, &l.Code, &l.Name, &l.CategoryID, &l.OwnerID, &l.Description, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ledger{}, ErrLedgerNotFound
		}
		return Ledger{}, err
	}
	return l, nil
}

func (r *txRepository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`, id))
}

func (r *txRepository) InsertEntry(ctx context.Context, in EntryInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(ledger_id, entry_type, amount, payment_method, description, reference, entry_date, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+entryColumns,
		in.LedgerID, in.Type, in.Amount, in.PaymentMethod, in.Description, in.Reference, in.EntryDate, in.CreatedBy)
	return scanEntry(row)
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) SumEntries(ctx context.Context, ledgerID int64) (Sums, error) {
	var s Sums
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE entry_type='debit'), 0),
COALESCE(SUM(amount) FILTER (WHERE entry_type='credit'), 0)
FROM ledger_entries WHERE ledger_id=$1`, ledgerID).Scan(&s.Debit, &s.Credit)
	return s, err
}

func (r *txRepository) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO account_balances (ledger_id, balance, updated_at) VALUES ($1,$2,$3)
ON CONFLICT (ledger_id) DO UPDATE SET balance=EXCLUDED.balance, updated_at=EXCLUDED.updated_at`,
		b.LedgerID, b.Balance, b.UpdatedAt)
	return err
}

func (r *txRepository) StoredBalance(ctx context.Context, ledgerID int64) (*decimal.Decimal, error) {
	var b decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT balance FROM account_balances WHERE ledger_id=$1`, ledgerID).Scan(&b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `INSERT INTO account_categories (code, name, type, description)
VALUES ($1,$2,$3,$4) RETURNING id, code, name, type, description, created_at`,
		in.Code, in.Name, in.Type, in.Description).
		Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.Description, &c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Category{}, ErrDuplicateCode
		}
		return Category{}, err
	}
	return c, nil
}

// GetCategory fetches a category by id.
func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, type, description, created_at FROM account_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns categories ordered by code.
func (r *Repository) ListCategories(ctx context.Context, f CategoryFilter) ([]Category, error) {
	var where db.Filter
	if f.Search != "" {
		where.Add("(name ILIKE '%%' || $%[1]d || '%%' OR code ILIKE '%%' || $%[1]d || '%%')", f.Search)
	}
	if f.Type != "" {
		where.Add("type = $%d", f.Type)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, type, description, created_at FROM account_categories`+
		where.Where()+` ORDER BY code`, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateLedger inserts a ledger account.
func (r *Repository) CreateLedger(ctx context.Context, in LedgerInput) (Ledger, error) {
	var l Ledger
	err := r.pool.QueryRow(ctx, `INSERT INTO ledger_accounts AS l (code, name, category_id, owner_id, description, is_active)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+ledgerColumns,
		in.Code, in.Name, in.CategoryID, in.OwnerID, in.Description, in.IsActive).
		Scan(&l.ID, &l.Code, &l.Name, &l.CategoryID, &l.OwnerID, &l.Description, &l.IsActive, &l.CreatedAt)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return Ledger{}, ErrDuplicateCode
		case db.IsForeignKeyViolation(err):
			return Ledger{}, ErrCategoryNotFound
		}
		return Ledger{}, err
	}
	return l, nil
}

const ledgerWithBalance = `SELECT ` + ledgerColumns + `, b.balance, b.updated_at
FROM ledger_accounts l LEFT JOIN account_balances b ON b.ledger_id = l.id`

func scanLedgerWithBalance(row pgx.Row) (Ledger, error) {
	var l Ledger
	var bal decimal.NullDecimal
	var updated *time.Time
	if err := row.Scan(&l.ID, &l.Code, &l.Name, &l.CategoryID, &l.OwnerID, &l.Description, &l.IsActive, &l.CreatedAt, &bal, &updated); err != nil {
		return Ledger{}, err
	}
	if bal.Valid && updated != nil {
		l.Balance = &Balance{LedgerID: l.ID, Balance: bal.Decimal, UpdatedAt: *updated}
	}
	return l, nil
}

// GetLedger fetches a ledger with its balance, if computed.
func (r *Repository) GetLedger(ctx context.Context, id int64) (Ledger, error) {
	l, err := scanLedgerWithBalance(r.pool.QueryRow(ctx, ledgerWithBalance+` WHERE l.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ledger{}, ErrLedgerNotFound
		}
		return Ledger{}, err
	}
	return l, nil
}

// ListLedgers returns ledgers ordered by code.
func (r *Repository) ListLedgers(ctx context.Context, f LedgerFilter) ([]Ledger, error) {
	var where db.Filter
	if f.CategoryID > 0 {
		where.Add("l.category_id = $%d", f.CategoryID)
	}
	if f.Active != nil {
		where.Add("l.is_active = $%d", *f.Active)
	}
	if f.Search != "" {
		where.Add("(l.name ILIKE '%%' || $%[1]d || '%%' OR l.code ILIKE '%%' || $%[1]d || '%%')", f.Search)
	}
	query := ledgerWithBalance + where.Where() + ` ORDER BY l.code` + where.Limit(f.Page.Limit, f.Page.Offset)
	rows, err := r.pool.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ledger
	for rows.Next() {
		l, err := scanLedgerWithBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const entryColumns = `id, ledger_id, entry_type, amount, payment_method, description, reference, entry_date, created_by, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.LedgerID, &e.Type, &e.Amount, &e.PaymentMethod, &e.Description, &e.Reference, &e.EntryDate, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// GetEntry fetches an entry by id.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`, id))
}

// ListEntries returns entries newest first.
func (r *Repository) ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error) {
	var where db.Filter
	if f.LedgerID > 0 {
		where.Add("ledger_id = $%d", f.LedgerID)
	}
	if f.Type != "" {
		where.Add("entry_type = $%d", f.Type)
	}
	if f.PaymentMethod != "" {
		where.Add("payment_method = $%d", f.PaymentMethod)
	}
	if !f.From.IsZero() {
		where.Add("entry_date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		where.Add("entry_date <= $%d", f.To)
	}
	query := `SELECT ` + entryColumns + ` FROM ledger_entries` + where.Where() +
		` ORDER BY entry_date DESC, id DESC` + where.Limit(f.Page.Limit, f.Page.Offset)
	rows, err := r.pool.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetBalance fetches the balance row of a ledger.
func (r *Repository) GetBalance(ctx context.Context, ledgerID int64) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `SELECT ledger_id, balance, updated_at FROM account_balances WHERE ledger_id=$1`, ledgerID).
		Scan(&b.LedgerID, &b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// ListBalances returns balances ordered by ledger.
func (r *Repository) ListBalances(ctx context.Context, page shared.Page) ([]Balance, error) {
	var where db.Filter
	rows, err := r.pool.Query(ctx, `SELECT ledger_id, balance, updated_at FROM account_balances ORDER BY ledger_id`+
		where.Limit(page.Limit, page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.LedgerID, &b.Balance, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
