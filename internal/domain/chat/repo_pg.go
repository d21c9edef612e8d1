package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgRepo struct{ pool *pgxpool.Pool }

// NewPGRepo returns a Postgres-backed MessageRepository. Ids come from the
// table's BIGSERIAL sequence, which is strictly increasing across inserts.
func NewPGRepo(pool *pgxpool.Pool) MessageRepository {
	return &pgRepo{pool: pool}
}

const messageCols = `id, case_id, author_id, author_name, author_role, body, attachment_id, sent_at, read_by`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.CaseID, &m.Author.ID, &m.Author.Name, &m.Author.Role,
		&m.Body, &m.AttachmentID, &m.SentAt, &m.ReadBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *pgRepo) Append(ctx context.Context, m *Message) error {
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if m.ReadBy == nil {
		m.ReadBy = []int64{m.Author.ID}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat_message (case_id, author_id, author_name, author_role, body, attachment_id, sent_at, read_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		m.CaseID, m.Author.ID, m.Author.Name, m.Author.Role,
		m.Body, m.AttachmentID, m.SentAt, m.ReadBy,
	).Scan(&m.ID)
}

func (r *pgRepo) GetByID(ctx context.Context, id int64) (*Message, error) {
	return scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM chat_message WHERE id = $1`, id))
}

func (r *pgRepo) ListByCase(ctx context.Context, caseID int64) ([]*Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM chat_message WHERE case_id = $1 ORDER BY id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *pgRepo) ListSince(ctx context.Context, caseID, sinceID int64) ([]*Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM chat_message WHERE case_id = $1 AND id > $2 ORDER BY id ASC`,
		caseID, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *pgRepo) MarkRead(ctx context.Context, caseID, userID int64) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_message
		SET read_by = array_append(read_by, $2)
		WHERE case_id = $1 AND author_id <> $2 AND NOT (read_by @> ARRAY[$2]::bigint[])`,
		caseID, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func collectMessages(rows pgx.Rows) ([]*Message, error) {
	out := make([]*Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
