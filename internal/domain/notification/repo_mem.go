package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edcollab/edcollab/pkg/pagination"
)

type memRepo struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Notification
}

func NewMemRepo() Repository {
	return &memRepo{rows: make(map[int64]*Notification)}
}

func (r *memRepo) Create(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id int64) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.rows[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

// recipientRows returns copies of the recipient's rows, newest first.
func (r *memRepo) recipientRows(recipientID int64) []*Notification {
	var out []*Notification
	for _, n := range r.rows {
		if n.RecipientID != recipientID {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memRepo) ListRecent(_ context.Context, recipientID int64, params pagination.Params) ([]*Notification, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.recipientRows(recipientID)
	total := len(all)

	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memRepo) ListUnread(_ context.Context, recipientID int64) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Notification
	for _, n := range r.recipientRows(recipientID) {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memRepo) CountUnread(_ context.Context, recipientID int64) (UnreadCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count UnreadCount
	for _, n := range r.rows {
		if n.RecipientID == recipientID && !n.Read {
			count.Add(n.Priority)
		}
	}
	return count, nil
}

func (r *memRepo) MarkRead(_ context.Context, id, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.rows[id]
	if !ok || n.RecipientID != recipientID {
		return ErrNotificationNotFound
	}
	if n.Read {
		return nil
	}
	now := time.Now().UTC()
	n.Read = true
	n.ReadAt = &now
	return nil
}

func (r *memRepo) MarkAllRead(_ context.Context, recipientID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	marked := 0
	for _, n := range r.rows {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			marked++
		}
	}
	return marked, nil
}
