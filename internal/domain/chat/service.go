package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/edcollab/edcollab/internal/platform/blobstore"
)

// Notifier receives a callback after a message is appended, so the
// notification feed can fan out a chat-message event to the other
// participants. Implementations must not block message creation on failure.
type Notifier interface {
	MessagePosted(ctx context.Context, m *Message)
}

type Service struct {
	repo     MessageRepository
	store    blobstore.Store
	notifier Notifier
}

// NewService wires the message log to its attachment store. notifier may be
// nil when fan-out is not wanted (tests, the send CLI).
func NewService(repo MessageRepository, store blobstore.Store, notifier Notifier) *Service {
	return &Service{repo: repo, store: store, notifier: notifier}
}

// History returns the full ordered log for a case, attachments hydrated.
func (s *Service) History(ctx context.Context, caseID int64) ([]*Message, error) {
	if caseID == 0 {
		return nil, ErrCaseRequired
	}
	msgs, err := s.repo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list messages for case %d: %w", caseID, err)
	}
	if err := s.hydrate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Poll returns messages with id greater than sinceID, ordered ascending. An
// empty result is normal and not an error.
func (s *Service) Poll(ctx context.Context, caseID, sinceID int64) ([]*Message, error) {
	if caseID == 0 {
		return nil, ErrCaseRequired
	}
	msgs, err := s.repo.ListSince(ctx, caseID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("poll case %d since %d: %w", caseID, sinceID, err)
	}
	if err := s.hydrate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Send appends a message. At least one of body (after trimming) or
// attachmentID is required. A supplied attachmentID must resolve to a stored
// attachment; the message is never created pointing at a dangling reference.
func (s *Service) Send(ctx context.Context, caseID int64, author Author, body, attachmentID string) (*Message, error) {
	m := &Message{
		CaseID:       caseID,
		Author:       author,
		Body:         strings.TrimSpace(body),
		AttachmentID: attachmentID,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if attachmentID != "" {
		att, err := s.store.GetMetadata(ctx, attachmentID)
		if err != nil {
			return nil, fmt.Errorf("resolve attachment %s: %w", attachmentID, err)
		}
		m.Attachment = att
	}

	if err := s.repo.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.MessagePosted(ctx, m)
	}
	return m, nil
}

// MarkRead records that userID has seen every current message in the case.
// It is idempotent.
func (s *Service) MarkRead(ctx context.Context, caseID, userID int64) (int, error) {
	if caseID == 0 {
		return 0, ErrCaseRequired
	}
	return s.repo.MarkRead(ctx, caseID, userID)
}

func (s *Service) hydrate(ctx context.Context, msgs []*Message) error {
	for _, m := range msgs {
		if m.AttachmentID == "" || m.Attachment != nil {
			continue
		}
		att, err := s.store.GetMetadata(ctx, m.AttachmentID)
		if err != nil {
			// A missing attachment must not hide the message itself.
			continue
		}
		m.Attachment = att
	}
	return nil
}
