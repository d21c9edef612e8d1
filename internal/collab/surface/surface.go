// Package surface holds the presentation surfaces of the collaboration
// channel: the embedded chat panel, the full-screen chat, the floating
// launcher, and the notification bell. Each surface is a view over the shared
// sync session and the unread aggregator; it owns nothing but its own poller
// lifecycle and open/minimized state.
package surface

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edcollab/edcollab/internal/collab/chatsync"
	"github.com/edcollab/edcollab/internal/collab/notify"
	"github.com/edcollab/edcollab/internal/domain/chat"
	"github.com/edcollab/edcollab/internal/domain/notification"
	"github.com/edcollab/edcollab/internal/platform/poller"
)

// Deps bundles what every surface needs: the per-case session registry, the
// unread aggregator, the acting user, and the polling cadence.
type Deps struct {
	Registry             *chatsync.Registry
	Aggregator           *notify.Aggregator
	User                 chat.Author
	MessageInterval      time.Duration
	NotificationInterval time.Duration
	Log                  zerolog.Logger
}

// chatSurface is the lifecycle shared by the three chat-displaying surfaces.
type chatSurface struct {
	deps   Deps
	caseID int64

	mu      sync.Mutex
	session *chatsync.Session
	poll    *poller.Poller
	mounted bool
}

// mount acquires the shared session, loads history, and starts the message
// poller. A failed initial load surfaces to the caller; polling failures
// after that are the session's business and stay silent.
func (s *chatSurface) mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return nil
	}

	session := s.deps.Registry.Acquire(s.caseID)
	if err := session.Load(ctx); err != nil {
		s.deps.Registry.Release(session)
		return fmt.Errorf("load case %d history: %w", s.caseID, err)
	}

	s.session = session
	s.poll = poller.New(s.deps.MessageInterval, session.PollOnce)
	s.poll.Start()
	s.mounted = true
	return nil
}

// unmount stops the poller and releases the session. A poll response landing
// after this point is discarded by the session.
func (s *chatSurface) unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.poll.Stop()
	s.deps.Registry.Release(s.session)
	s.session = nil
	s.mounted = false
}

func (s *chatSurface) live() *chatsync.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Messages returns the case's local log, id ascending, for rendering.
func (s *chatSurface) Messages() []chat.Message {
	if session := s.live(); session != nil {
		return session.Messages()
	}
	return nil
}

// Send posts a message as the surface's user. Validation and transport errors
// are returned so the caller can show them; the message is never retried
// silently.
func (s *chatSurface) Send(ctx context.Context, body, attachmentID string) (*chat.Message, error) {
	session := s.live()
	if session == nil {
		return nil, fmt.Errorf("surface for case %d is not mounted", s.caseID)
	}
	return session.Send(ctx, s.deps.User, body, attachmentID)
}

// Panel is the embedded chat panel. It mounts minimized; opening it resets
// the case's unread counter and counts as actively viewing the thread.
type Panel struct {
	chatSurface
	open bool
}

func NewPanel(deps Deps, caseID int64) *Panel {
	return &Panel{chatSurface: chatSurface{deps: deps, caseID: caseID}}
}

func (p *Panel) Mount(ctx context.Context) error {
	return p.mount(ctx)
}

func (p *Panel) Unmount() {
	p.Minimize()
	p.unmount()
}

// Open expands the panel. The unread reset is local and immediate.
func (p *Panel) Open() {
	p.mu.Lock()
	wasOpen := p.open
	p.open = true
	p.mu.Unlock()
	if !wasOpen {
		p.deps.Aggregator.ViewerOpened(p.caseID)
	}
}

// Minimize collapses the panel; arriving messages count as unread again once
// no other surface has the case open.
func (p *Panel) Minimize() {
	p.mu.Lock()
	wasOpen := p.open
	p.open = false
	p.mu.Unlock()
	if wasOpen {
		p.deps.Aggregator.ViewerClosed(p.caseID)
	}
}

func (p *Panel) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Unread returns the badge value shown on the minimized panel header.
func (p *Panel) Unread() int {
	return p.deps.Aggregator.UnreadMessages(p.caseID)
}

// Fullscreen is the full-screen mobile chat. While mounted it always counts
// as open, and mounting records a read receipt for the whole thread.
type Fullscreen struct {
	chatSurface
	viewing bool
}

func NewFullscreen(deps Deps, caseID int64) *Fullscreen {
	return &Fullscreen{chatSurface: chatSurface{deps: deps, caseID: caseID}}
}

func (f *Fullscreen) Mount(ctx context.Context) error {
	if err := f.mount(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	wasViewing := f.viewing
	f.viewing = true
	f.mu.Unlock()
	if !wasViewing {
		f.deps.Aggregator.ViewerOpened(f.caseID)
	}

	// Read receipts are best-effort; a failure leaves them for a later view.
	if err := f.live().MarkRead(ctx, f.deps.User.ID); err != nil {
		f.deps.Log.Warn().Err(err).Int64("case_id", f.caseID).Msg("failed to record read receipt")
	}
	return nil
}

func (f *Fullscreen) Unmount() {
	f.mu.Lock()
	wasViewing := f.viewing
	f.viewing = false
	f.mu.Unlock()
	if wasViewing {
		f.deps.Aggregator.ViewerClosed(f.caseID)
	}
	f.unmount()
}

// Launcher is the floating chat bubble. It polls so its badge stays fresh but
// never counts as viewing the thread.
type Launcher struct {
	chatSurface
}

func NewLauncher(deps Deps, caseID int64) *Launcher {
	return &Launcher{chatSurface: chatSurface{deps: deps, caseID: caseID}}
}

func (l *Launcher) Mount(ctx context.Context) error {
	return l.mount(ctx)
}

func (l *Launcher) Unmount() {
	l.unmount()
}

// Badge returns the unread message count for the bubble.
func (l *Launcher) Badge() int {
	return l.deps.Aggregator.UnreadMessages(l.caseID)
}

// Bell is the notification bell. It owns the slower notification poller and
// renders the priority-bucketed badge.
type Bell struct {
	deps Deps

	mu      sync.Mutex
	poll    *poller.Poller
	mounted bool
}

func NewBell(deps Deps) *Bell {
	return &Bell{deps: deps}
}

// Mount polls once immediately so the badge is current, then keeps polling on
// the notification interval.
func (b *Bell) Mount(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounted {
		return nil
	}

	b.deps.Aggregator.PollOnce(ctx)
	b.poll = poller.New(b.deps.NotificationInterval, b.deps.Aggregator.PollOnce)
	b.poll.Start()
	b.mounted = true
	return nil
}

func (b *Bell) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return
	}
	b.poll.Stop()
	b.mounted = false
}

// Badge returns the bucketed unread counts and whether the bell should render
// in its emphasized has-urgent state.
func (b *Bell) Badge() (notification.UnreadCount, bool) {
	return b.deps.Aggregator.CountByPriority(), b.deps.Aggregator.HasUrgent()
}

// Feed returns the unread notifications for the dropdown, creation-time
// descending, urgent items emphasized in place rather than reordered.
func (b *Bell) Feed() []notification.Notification {
	return b.deps.Aggregator.Notifications()
}

// MarkRead dismisses one notification.
func (b *Bell) MarkRead(ctx context.Context, id int64) error {
	return b.deps.Aggregator.MarkRead(ctx, id)
}

// MarkAllRead dismisses the whole feed.
func (b *Bell) MarkAllRead(ctx context.Context) error {
	return b.deps.Aggregator.MarkAllRead(ctx)
}
