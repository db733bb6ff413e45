package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ams/internal/platform/db"
)

// Repository persists reports in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Aggregate sums entry amounts dated within [start, end] by category type and side.
func (r *Repository) Aggregate(ctx context.Context, start, end time.Time) ([]Aggregate, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.type, e.entry_type, COALESCE(SUM(e.amount), 0)
FROM ledger_entries e
JOIN ledger_accounts l ON l.id = e.ledger_id
JOIN account_categories c ON c.id = l.category_id
WHERE e.entry_date BETWEEN $1 AND $2
GROUP BY c.type, e.entry_type`, start, end)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Aggregate, error) {
		var a Aggregate
		err := row.Scan(&a.CategoryType, &a.EntryType, &a.Total)
		return a, err
	})
}

// Insert stores the report and its companion summary in one transaction.
func (r *Repository) Insert(ctx context.Context, rep Report, sum Summary) (Report, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO reports
(report_type, start_date, end_date, requested_by, generated_at, export_format, data, filters, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
			rep.Type, rep.StartDate, rep.EndDate, rep.RequestedBy, rep.GeneratedAt, rep.Format, rep.Data, rep.Filters, rep.Status)
		if err := row.Scan(&rep.ID); err != nil {
			return err
		}
		if bs := sum.BalanceSheet; bs != nil {
			if _, err := tx.Exec(ctx, `INSERT INTO balance_sheets (report_id, total_assets, total_liabilities, total_equity)
VALUES ($1,$2,$3,$4)`, rep.ID, bs.TotalAssets, bs.TotalLiabilities, bs.TotalEquity); err != nil {
				return err
			}
		}
		if is := sum.IncomeStatement; is != nil {
			if _, err := tx.Exec(ctx, `INSERT INTO income_statements (report_id, total_revenue, total_expense, net_income)
VALUES ($1,$2,$3,$4)`, rep.ID, is.TotalRevenue, is.TotalExpense, is.NetIncome); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

const columns = `id, report_type, start_date, end_date, requested_by, generated_at, export_format, data, filters, status`

func scan(row pgx.Row) (Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.Type, &rep.StartDate, &rep.EndDate, &rep.RequestedBy, &rep.GeneratedAt,
		&rep.Format, &rep.Data, &rep.Filters, &rep.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrReportNotFound
		}
		return Report{}, err
	}
	return rep, nil
}

// Get fetches a report.
func (r *Repository) Get(ctx context.Context, id int64) (Report, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM reports WHERE id=$1`, id))
}

// List returns reports newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Report, error) {
	var where db.Filter
	if f.Type != "" {
		where.Add("report_type = $%d", f.Type)
	}
	if f.Format != "" {
		where.Add("export_format = $%d", f.Format)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM reports`+where.Where()+
		` ORDER BY generated_at DESC, id DESC`+where.Limit(f.Page.Limit, f.Page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
