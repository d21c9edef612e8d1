package notification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edcollab/edcollab/pkg/pagination"
)

type pgRepo struct{ pool *pgxpool.Pool }

func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &pgRepo{pool: pool}
}

const notificationCols = `id, recipient_id, case_id, kind, priority, title, body, read, created_at, read_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.CaseID, &n.Kind, &n.Priority,
		&n.Title, &n.Body, &n.Read, &n.CreatedAt, &n.ReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *pgRepo) Create(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO notification (recipient_id, case_id, kind, priority, title, body, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		n.RecipientID, n.CaseID, n.Kind, n.Priority, n.Title, n.Body, n.Read, n.CreatedAt,
	).Scan(&n.ID)
}

func (r *pgRepo) GetByID(ctx context.Context, id int64) (*Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx,
		`SELECT `+notificationCols+` FROM notification WHERE id = $1`, id))
}

func (r *pgRepo) ListRecent(ctx context.Context, recipientID int64, params pagination.Params) ([]*Notification, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE recipient_id = $1`, recipientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationCols+` FROM notification
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC `+params.SQL(), recipientID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := collectNotifications(rows)
	return out, total, err
}

func (r *pgRepo) ListUnread(ctx context.Context, recipientID int64) ([]*Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationCols+` FROM notification
		WHERE recipient_id = $1 AND NOT read
		ORDER BY created_at DESC, id DESC`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *pgRepo) CountUnread(ctx context.Context, recipientID int64) (UnreadCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT priority, COUNT(*) FROM notification
		WHERE recipient_id = $1 AND NOT read
		GROUP BY priority`, recipientID)
	if err != nil {
		return UnreadCount{}, err
	}
	defer rows.Close()

	var count UnreadCount
	for rows.Next() {
		var p Priority
		var c int
		if err := rows.Scan(&p, &c); err != nil {
			return UnreadCount{}, err
		}
		count.Total += c
		switch p {
		case PriorityUrgent:
			count.Urgent += c
		case PriorityHigh:
			count.High += c
		case PriorityMedium:
			count.Medium += c
		default:
			count.Low += c
		}
	}
	return count, rows.Err()
}

func (r *pgRepo) MarkRead(ctx context.Context, id, recipientID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification SET read = TRUE, read_at = NOW()
		WHERE id = $1 AND recipient_id = $2 AND NOT read`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish already-read (a no-op) from not-found.
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM notification WHERE id = $1 AND recipient_id = $2)`,
			id, recipientID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotificationNotFound
		}
	}
	return nil
}

func (r *pgRepo) MarkAllRead(ctx context.Context, recipientID int64) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification SET read = TRUE, read_at = NOW()
		WHERE recipient_id = $1 AND NOT read`, recipientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func collectNotifications(rows pgx.Rows) ([]*Notification, error) {
	out := make([]*Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
