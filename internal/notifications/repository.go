package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ams/internal/platform/db"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, user_id, message, level, is_read, created_at`

// Insert stores n.
func (r *Repository) Insert(ctx context.Context, n shared.Notification) (Notification, error) {
	var out Notification
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, message, level) VALUES ($1,$2,$3)
RETURNING `+columns, n.UserID, n.Message, n.Level).
		Scan(&out.ID, &out.UserID, &out.Message, &out.Level, &out.IsRead, &out.CreatedAt)
	return out, err
}

func scopeFilter(s Scope) db.Filter {
	var where db.Filter
	if !s.All {
		where.Add("user_id = $%d", s.UserID)
	}
	return where
}

// List returns notifications visible in f.Scope, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Notification, error) {
	where := scopeFilter(f.Scope)
	if f.Unread {
		where.AddRaw("is_read = FALSE")
	}
	if f.IsRead != nil {
		where.Add("is_read = $%d", *f.IsRead)
	}
	if f.Level != "" {
		where.Add("level = $%d", f.Level)
	}
	if f.Search != "" {
		where.Add("message ILIKE '%%' || $%d || '%%'", f.Search)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM notifications`+where.Where()+
		` ORDER BY created_at DESC, id DESC`+where.Limit(f.Page.Limit, f.Page.Offset), where.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		return scan(row)
	})
}

func scan(row pgx.Row) (Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Level, &n.IsRead, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotificationNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

// Get loads one notification.
func (r *Repository) Get(ctx context.Context, id int64) (Notification, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM notifications WHERE id=$1`, id))
}

// SetRead updates the read flag of one notification.
func (r *Repository) SetRead(ctx context.Context, id int64, read bool) (Notification, error) {
	return scan(r.pool.QueryRow(ctx, `UPDATE notifications SET is_read=$2 WHERE id=$1 RETURNING `+columns, id, read))
}

// Delete removes one notification.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification in s as read.
func (r *Repository) MarkAllRead(ctx context.Context, s Scope) (int64, error) {
	where := scopeFilter(s)
	where.AddRaw("is_read = FALSE")
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE`+where.Where(), where.Args()...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
