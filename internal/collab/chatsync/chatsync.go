// Package chatsync maintains one ordered, duplicate-free message log and one
// cursor per case, reconciling optimistic inserts from the send path with
// batched arrivals from the poll path. Sessions are per-case singletons
// shared by every mounted surface through the Registry.
package chatsync

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edcollab/edcollab/internal/collab/messagelog"
	"github.com/edcollab/edcollab/internal/domain/chat"
)

// BatchFunc receives every batch of newly accepted messages, both polled and
// optimistically sent. The unread aggregator hangs off this hook.
type BatchFunc func(caseID int64, batch []chat.Message)

// Session owns the log and cursor for one case. All surfaces showing the case
// share the same session by reference; the refcount tracks attached surfaces
// so a poll response landing after the last detach is discarded.
type Session struct {
	caseID int64
	client *messagelog.Client
	log    zerolog.Logger

	onBatch BatchFunc

	mu      sync.Mutex
	msgs    []chat.Message
	seen    map[int64]struct{}
	cursor  int64
	refs    int
	loaded  bool
	polling bool
}

func newSession(caseID int64, client *messagelog.Client, onBatch BatchFunc, log zerolog.Logger) *Session {
	return &Session{
		caseID:  caseID,
		client:  client,
		onBatch: onBatch,
		log:     log.With().Int64("case_id", caseID).Logger(),
		seen:    make(map[int64]struct{}),
	}
}

func (s *Session) CaseID() int64 { return s.caseID }

// Cursor returns the highest message id incorporated so far.
func (s *Session) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Messages returns a copy of the local log, id ascending.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Load fetches the full history once. Later calls are no-ops, so any surface
// may call it on mount without clobbering a log other surfaces already hold.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	history, err := s.client.FetchHistory(ctx, s.caseID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	for i := range history {
		s.seen[history[i].ID] = struct{}{}
		if history[i].ID > s.cursor {
			s.cursor = history[i].ID
		}
	}
	s.msgs = history
	s.loaded = true
	return nil
}

// PollOnce asks the server for messages past the cursor and merges the batch.
// A poll already in flight suppresses this one. Failures are swallowed: the
// next tick retries, and polling degrades to stale rather than broken.
func (s *Session) PollOnce(ctx context.Context) {
	s.mu.Lock()
	if s.polling || s.refs == 0 {
		s.mu.Unlock()
		return
	}
	s.polling = true
	cursor := s.cursor
	s.mu.Unlock()

	batch, err := s.client.PollSince(ctx, s.caseID, cursor)

	s.mu.Lock()
	s.polling = false
	s.mu.Unlock()

	if err != nil {
		s.log.Debug().Err(err).Int64("cursor", cursor).Msg("poll failed")
		return
	}
	s.merge(batch)
}

// Send posts the message and inserts the server's reply into the local log
// immediately, advancing the cursor so the next poll does not re-deliver it.
// Send failures are returned to the caller; the user must know the message
// did not go through.
func (s *Session) Send(ctx context.Context, author chat.Author, body, attachmentID string) (*chat.Message, error) {
	m, err := s.client.Send(ctx, s.caseID, author, body, attachmentID)
	if err != nil {
		return nil, err
	}
	s.merge([]chat.Message{*m})
	return m, nil
}

// MarkRead records on the server that userID has seen the case history.
func (s *Session) MarkRead(ctx context.Context, userID int64) error {
	return s.client.MarkRead(ctx, s.caseID, userID)
}

// merge appends previously unseen messages in ascending id order and advances
// the cursor to the highest id in the batch. An empty batch never perturbs
// the cursor, and a batch landing after the last surface detached is
// discarded.
func (s *Session) merge(batch []chat.Message) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return
	}

	fresh := make([]chat.Message, 0, len(batch))
	maxID := s.cursor
	for _, m := range batch {
		if m.ID > maxID {
			maxID = m.ID
		}
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		s.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })
	s.msgs = append(s.msgs, fresh...)
	s.cursor = maxID
	onBatch := s.onBatch
	s.mu.Unlock()

	if len(fresh) > 0 && onBatch != nil {
		onBatch(s.caseID, fresh)
	}
}

func (s *Session) attach() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// detach reports whether this was the last reference.
func (s *Session) detach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
	return s.refs == 0
}

// Registry hands out the per-case singleton sessions.
type Registry struct {
	client  *messagelog.Client
	onBatch BatchFunc
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry(client *messagelog.Client, onBatch BatchFunc, log zerolog.Logger) *Registry {
	return &Registry{
		client:   client,
		onBatch:  onBatch,
		log:      log,
		sessions: make(map[int64]*Session),
	}
}

// Acquire returns the session for a case, creating it on first use, and
// counts the caller as an attached surface. Every Acquire must be paired with
// a Release.
func (r *Registry) Acquire(caseID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[caseID]
	if !ok {
		s = newSession(caseID, r.client, r.onBatch, r.log)
		r.sessions[caseID] = s
	}
	s.attach()
	return s
}

// Release detaches one surface. When the last surface detaches the session is
// dropped from the registry; any in-flight poll result is discarded by the
// session itself.
func (r *Registry) Release(s *Session) {
	if s == nil {
		return
	}
	if last := s.detach(); !last {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.caseID] == s {
		delete(r.sessions, s.caseID)
	}
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
