package notification

import (
	"context"

	"github.com/edcollab/edcollab/pkg/pagination"
)

// Repository stores per-recipient notification rows.
type Repository interface {
	// Create inserts a notification and assigns its id.
	Create(ctx context.Context, n *Notification) error
	// GetByID returns one notification or ErrNotificationNotFound.
	GetByID(ctx context.Context, id int64) (*Notification, error)
	// ListRecent returns the recipient's notifications, newest first,
	// read or not, within the page window. The second return is the
	// total row count for the recipient.
	ListRecent(ctx context.Context, recipientID int64, params pagination.Params) ([]*Notification, int, error)
	// ListUnread returns the recipient's unread notifications, newest first.
	ListUnread(ctx context.Context, recipientID int64) ([]*Notification, error)
	// CountUnread buckets the recipient's unread notifications by priority.
	CountUnread(ctx context.Context, recipientID int64) (UnreadCount, error)
	// MarkRead marks one notification read for the recipient. Marking an
	// already-read notification is a no-op. A notification belonging to a
	// different recipient is ErrNotificationNotFound.
	MarkRead(ctx context.Context, id, recipientID int64) error
	// MarkAllRead marks every unread notification for the recipient and
	// returns the number newly marked.
	MarkAllRead(ctx context.Context, recipientID int64) (int, error)
}
