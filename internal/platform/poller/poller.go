// Package poller provides a cancellable fixed-interval background task.
// Surfaces own one poller per stream they watch; the surface lifecycle starts
// it on mount and stops it on unmount. A tick is skipped while the previous
// run is still in flight, so a slow network round trip never overlaps itself.
package poller

import (
	"context"
	"sync"
	"time"
)

// Task is one poll execution. The context is cancelled when the poller stops;
// a task that respects it will not write into torn-down state.
type Task func(ctx context.Context)

// Poller runs a Task at a fixed interval until stopped.
type Poller struct {
	interval time.Duration
	task     Task

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a poller. It does not start ticking until Start is called.
func New(interval time.Duration, task Task) *Poller {
	return &Poller{interval: interval, task: task}
}

// Start begins ticking. The first run happens after one interval, not
// immediately; callers that need an initial load perform it themselves before
// starting the poller. Starting an already-running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx, p.done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The task runs synchronously in this goroutine, so a run that
			// outlasts the interval causes ticks to be dropped rather than
			// stacked.
			p.task(ctx)
		}
	}
}

// Stop cancels the poller and waits for any in-flight run to return. Stopping
// a poller that is not running is a no-op. The poller can be started again
// afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the poller is currently ticking.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
