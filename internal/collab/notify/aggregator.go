// Package notify aggregates unread state for one user: per-case chat unread
// counters scoped to surface visibility, and the system notification feed
// bucketed by priority.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edcollab/edcollab/internal/domain/chat"
	"github.com/edcollab/edcollab/internal/domain/notification"
)

// Aggregator tracks what the user has not seen yet. All methods are safe for
// concurrent use; mark-read operations stay correct while a notification poll
// is in flight.
type Aggregator struct {
	client *Client
	userID int64
	log    zerolog.Logger

	mu     sync.Mutex
	events []notification.Notification
	// readIDs keeps single mark-reads durable against a poll response that
	// was already in flight when the user clicked. gen invalidates a whole
	// in-flight poll after mark-all-read.
	readIDs     map[int64]struct{}
	gen         uint64
	unreadCount map[int64]int
	// openViewers counts surfaces actively displaying each case. A refcount
	// rather than a flag: a fullscreen view closing must not mark the case
	// unviewed while an embedded panel is still open on it.
	openViewers map[int64]int
	polling     bool
}

func NewAggregator(client *Client, userID int64, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		client:      client,
		userID:      userID,
		log:         log.With().Int64("user_id", userID).Logger(),
		readIDs:     make(map[int64]struct{}),
		unreadCount: make(map[int64]int),
		openViewers: make(map[int64]int),
	}
}

// OnNewMessages consumes a batch accepted by the sync engine. A message
// authored by someone else counts as unread only while no surface has the
// case open.
func (a *Aggregator) OnNewMessages(caseID int64, batch []chat.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.openViewers[caseID] > 0 {
		return
	}
	for _, m := range batch {
		if m.Author.ID != a.userID {
			a.unreadCount[caseID]++
		}
	}
}

// ViewerOpened records one more surface actively displaying the case's
// thread. Opening resets the case's unread counter locally; the reset is
// optimistic and does not round-trip. Each open must be paired with exactly
// one ViewerClosed.
func (a *Aggregator) ViewerOpened(caseID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.openViewers[caseID]++
	a.unreadCount[caseID] = 0
}

// ViewerClosed records one surface no longer displaying the case's thread.
// Arriving messages count as unread again only once the last viewer closes.
func (a *Aggregator) ViewerClosed(caseID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.openViewers[caseID] > 0 {
		a.openViewers[caseID]--
	}
}

// UnreadMessages returns the unread chat counter for one case.
func (a *Aggregator) UnreadMessages(caseID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unreadCount[caseID]
}

// TotalUnreadMessages sums the unread chat counters across cases.
func (a *Aggregator) TotalUnreadMessages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, n := range a.unreadCount {
		total += n
	}
	return total
}

// PollOnce refreshes the notification feed from the server. A poll already in
// flight suppresses this one. Failures are logged at debug level and the
// previous state is kept; the feed degrades to stale, never to an error.
func (a *Aggregator) PollOnce(ctx context.Context) {
	a.mu.Lock()
	if a.polling {
		a.mu.Unlock()
		return
	}
	a.polling = true
	gen := a.gen
	a.mu.Unlock()

	events, err := a.client.Unread(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.polling = false
	if err != nil {
		a.log.Debug().Err(err).Msg("notification poll failed")
		return
	}
	if a.gen != gen {
		// MarkAllRead ran while this poll was in flight; its snapshot
		// predates the wipe and must not resurrect the feed.
		return
	}

	fresh := events[:0]
	for _, e := range events {
		if _, read := a.readIDs[e.ID]; read {
			continue
		}
		fresh = append(fresh, e)
	}
	a.events = fresh
}

// Notifications returns the current unread feed, creation-time descending as
// delivered by the server. Urgent items are emphasized by the surface, never
// reordered to the top.
func (a *Aggregator) Notifications() []notification.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]notification.Notification, len(a.events))
	copy(out, a.events)
	return out
}

// CountByPriority buckets the current unread feed.
func (a *Aggregator) CountByPriority() notification.UnreadCount {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count notification.UnreadCount
	for _, e := range a.events {
		count.Add(e.Priority)
	}
	return count
}

// HasUrgent reports whether the feed holds urgent or high priority items, the
// state that puts the bell into its emphasized rendering.
func (a *Aggregator) HasUrgent() bool {
	c := a.CountByPriority()
	return c.Urgent+c.High > 0
}

// MarkRead marks one notification read, locally first, then on the server.
// Calling it twice leaves the unread count identical to calling it once.
func (a *Aggregator) MarkRead(ctx context.Context, id int64) error {
	a.mu.Lock()
	a.readIDs[id] = struct{}{}
	kept := a.events[:0]
	for _, e := range a.events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	a.events = kept
	a.mu.Unlock()

	return a.client.MarkRead(ctx, id)
}

// MarkAllRead clears the feed locally and on the server. Safe to call while a
// poll is in flight: the generation bump discards the stale response.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	a.mu.Lock()
	a.events = nil
	a.gen++
	a.mu.Unlock()

	return a.client.MarkAllRead(ctx)
}
