package audit

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ams/internal/shared"
)

// Repository persists audit entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an audit entry.
func (r *Repository) Insert(ctx context.Context, l shared.AuditLog) error {
	meta := l.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	at := l.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, metadata, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6)`, optionalID(l.ActorID), l.Action, l.EntityType, l.EntityID, meta, at)
	return err
}

const timelineQuery = `SELECT id, actor_id, action, entity_type, entity_id, metadata, occurred_at
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity_type = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC`

// Window returns one page of entries.
func (r *Repository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]Entry, error) {
	args := append(filterArgs(f), limit, offset)
	return collect(r.pool.Query(ctx, timelineQuery+` LIMIT $6 OFFSET $7`, args...))
}

// All returns every matching entry.
func (r *Repository) All(ctx context.Context, f TimelineFilters) ([]Entry, error) {
	return collect(r.pool.Query(ctx, timelineQuery, filterArgs(f)...))
}

func filterArgs(f TimelineFilters) []any {
	to := pgtype.Timestamptz{}
	if !f.To.IsZero() {
		// inclusive of the whole To day
		to = toPgTime(f.To.AddDate(0, 0, 1))
	}
	return []any{toPgTime(f.From), to, optionalID(f.ActorID), optionalText(f.EntityType), optionalText(f.Action)}
}

func collect(rows pgx.Rows, err error) ([]Entry, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.Metadata, &e.OccurredAt)
		return e, err
	})
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func optionalID(id int64) pgtype.Int8 {
	if id <= 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: id, Valid: true}
}
