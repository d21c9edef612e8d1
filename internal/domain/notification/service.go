package notification

import (
	"context"
	"fmt"

	"github.com/edcollab/edcollab/pkg/pagination"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Publish stores a notification for one recipient. An empty priority is
// filled in from the kind's default.
func (s *Service) Publish(ctx context.Context, n *Notification) error {
	if n.RecipientID == 0 {
		return ErrRecipientRequired
	}
	if !ValidKind(n.Kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	if n.Priority == "" {
		n.Priority = PriorityFor(n.Kind)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Recent returns a page of the recipient's feed plus the total row count.
func (s *Service) Recent(ctx context.Context, recipientID int64, params pagination.Params) ([]*Notification, int, error) {
	if recipientID == 0 {
		return nil, 0, ErrRecipientRequired
	}
	return s.repo.ListRecent(ctx, recipientID, params)
}

func (s *Service) Unread(ctx context.Context, recipientID int64) ([]*Notification, error) {
	if recipientID == 0 {
		return nil, ErrRecipientRequired
	}
	return s.repo.ListUnread(ctx, recipientID)
}

func (s *Service) CountUnread(ctx context.Context, recipientID int64) (UnreadCount, error) {
	if recipientID == 0 {
		return UnreadCount{}, ErrRecipientRequired
	}
	return s.repo.CountUnread(ctx, recipientID)
}

// MarkRead is idempotent; marking an already-read notification succeeds.
func (s *Service) MarkRead(ctx context.Context, id, recipientID int64) error {
	if recipientID == 0 {
		return ErrRecipientRequired
	}
	return s.repo.MarkRead(ctx, id, recipientID)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID int64) (int, error) {
	if recipientID == 0 {
		return 0, ErrRecipientRequired
	}
	return s.repo.MarkAllRead(ctx, recipientID)
}
