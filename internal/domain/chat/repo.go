package chat

import "context"

// MessageRepository is the append-only message log. Append assigns the id;
// ids are strictly increasing within a case. List results are always ordered
// by id ascending.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListByCase(ctx context.Context, caseID int64) ([]*Message, error)
	ListSince(ctx context.Context, caseID, sinceID int64) ([]*Message, error)
	// MarkRead adds userID to the read set of every message in the case not
	// authored by them. It returns the number of messages newly marked;
	// re-marking already-read messages is a no-op, not an error.
	MarkRead(ctx context.Context, caseID, userID int64) (int, error)
}
