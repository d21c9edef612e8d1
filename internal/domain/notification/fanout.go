package notification

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/edcollab/edcollab/internal/domain/chat"
)

// snippetLen caps the preview text carried in a chat-message notification.
const snippetLen = 120

// Directory answers who is following a case and therefore should receive
// chat-message notifications.
type Directory interface {
	Participants(ctx context.Context, caseID int64) ([]int64, error)
	Join(ctx context.Context, caseID, userID int64) error
}

// memDirectory learns case participants from the messages they post.
type memDirectory struct {
	mu    sync.RWMutex
	cases map[int64]map[int64]struct{}
}

func NewMemDirectory() Directory {
	return &memDirectory{cases: make(map[int64]map[int64]struct{})}
}

func (d *memDirectory) Participants(_ context.Context, caseID int64) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]int64, 0, len(d.cases[caseID]))
	for id := range d.cases[caseID] {
		out = append(out, id)
	}
	return out, nil
}

func (d *memDirectory) Join(_ context.Context, caseID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cases[caseID] == nil {
		d.cases[caseID] = make(map[int64]struct{})
	}
	d.cases[caseID][userID] = struct{}{}
	return nil
}

// ChatFanout turns each posted chat message into a notification for every
// other participant of the case. It implements chat.Notifier.
type ChatFanout struct {
	svc *Service
	dir Directory
	log zerolog.Logger
}

func NewChatFanout(svc *Service, dir Directory, log zerolog.Logger) *ChatFanout {
	return &ChatFanout{svc: svc, dir: dir, log: log}
}

// MessagePosted records the author as a case participant and fans the message
// out. Failures are logged, never propagated: a notification problem must not
// fail the message itself.
func (f *ChatFanout) MessagePosted(ctx context.Context, m *chat.Message) {
	if err := f.dir.Join(ctx, m.CaseID, m.Author.ID); err != nil {
		f.log.Warn().Err(err).Int64("case_id", m.CaseID).Msg("failed to record case participant")
	}

	participants, err := f.dir.Participants(ctx, m.CaseID)
	if err != nil {
		f.log.Warn().Err(err).Int64("case_id", m.CaseID).Msg("failed to list case participants")
		return
	}

	body := snippet(m.Body)
	if body == "" && m.AttachmentID != "" {
		body = "sent an attachment"
	}

	for _, recipientID := range participants {
		if recipientID == m.Author.ID {
			continue
		}
		n := &Notification{
			RecipientID: recipientID,
			CaseID:      m.CaseID,
			Kind:        KindChatMessage,
			Title:       m.Author.Name,
			Body:        body,
		}
		if err := f.svc.Publish(ctx, n); err != nil {
			f.log.Warn().Err(err).
				Int64("case_id", m.CaseID).
				Int64("recipient_id", recipientID).
				Msg("failed to publish chat notification")
		}
	}
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:snippetLen]) + "…"
}
