package chat

import (
	"context"
	"sync"
	"time"
)

// memRepo is a thread-safe in-memory MessageRepository for development and
// tests. Ids are assigned from a single counter, so they are strictly
// increasing across all cases as well as within one.
type memRepo struct {
	mu     sync.RWMutex
	nextID int64
	logs   map[int64][]*Message // caseID -> messages, id ascending
}

// NewMemRepo returns an empty in-memory message repository.
func NewMemRepo() MessageRepository {
	return &memRepo{logs: make(map[int64][]*Message)}
}

func (r *memRepo) Append(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	m.ID = r.nextID
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if m.ReadBy == nil {
		m.ReadBy = []int64{m.Author.ID}
	}

	stored := *m
	r.logs[m.CaseID] = append(r.logs[m.CaseID], &stored)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id int64) (*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, log := range r.logs {
		for _, m := range log {
			if m.ID == id {
				out := *m
				return &out, nil
			}
		}
	}
	return nil, ErrMessageNotFound
}

func (r *memRepo) ListByCase(_ context.Context, caseID int64) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.logs[caseID]
	out := make([]*Message, 0, len(log))
	for _, m := range log {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepo) ListSince(_ context.Context, caseID, sinceID int64) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Message
	for _, m := range r.logs[caseID] {
		if m.ID > sinceID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) MarkRead(_ context.Context, caseID, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for _, m := range r.logs[caseID] {
		if m.Author.ID == userID || m.ReadByUser(userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, userID)
		marked++
	}
	return marked, nil
}
