package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/edcollab/edcollab/internal/platform/blobstore"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrCaseRequired    = errors.New("case_id is required")
	ErrEmptyMessage    = errors.New("message requires a body or an attachment")
)

// Author identifies the sender of a message.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Message is one entry in a case's append-only chat log. The id is assigned
// by the repository, strictly increasing per case; clients use it as their
// sync cursor. Messages are immutable once created.
type Message struct {
	ID           int64                  `json:"id"`
	CaseID       int64                  `json:"case_id"`
	Author       Author                 `json:"author"`
	Body         string                 `json:"body"`
	AttachmentID string                 `json:"attachment_id,omitempty"`
	Attachment   *blobstore.Attachment  `json:"attachment,omitempty"`
	SentAt       time.Time              `json:"sent_at"`
	ReadBy       []int64                `json:"read_by"`
}

// Validate enforces the construction invariant: a message with an empty body
// and no attachment must never exist.
func (m *Message) Validate() error {
	if m.CaseID == 0 {
		return ErrCaseRequired
	}
	if strings.TrimSpace(m.Body) == "" && m.AttachmentID == "" {
		return ErrEmptyMessage
	}
	return nil
}

// ReadByUser reports whether the given user has read the message.
func (m *Message) ReadByUser(userID int64) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
