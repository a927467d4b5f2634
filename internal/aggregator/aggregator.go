// Package aggregator reassembles multi-event media-group submissions into
// single logical submissions, exactly once per group.
package aggregator

import (
	"sync"
	"time"

	"ArticleInbox/internal/domain"
)

// Event is one transport delivery: optional text, optional photo reference,
// optional media-group identifier.
type Event struct {
	ChatID   int64
	GroupID  string
	Text     string
	PhotoRef string
}

// groupBuffer accumulates events sharing a group id until the flush timer
// marks it completed.
type groupBuffer struct {
	chatID    int64
	text      string
	photoRefs []string
	seen      map[string]struct{}
	completed bool
}

// Aggregator owns a keyed map of group buffers. Every mutation, including the
// completed check-and-set, runs under mu, so two events for the same group can
// never both observe an incomplete buffer at flush time.
type Aggregator struct {
	mu        sync.Mutex
	groups    map[string]*groupBuffer
	window    time.Duration
	retention time.Duration
	emit      func(domain.Submission)
	stopped   bool
}

// New builds an aggregator. Completed submissions for media groups are
// delivered through emit once the flush window elapses; buffers linger for
// retention afterwards so late duplicates stay no-ops, then are evicted.
func New(window, retention time.Duration, emit func(domain.Submission)) *Aggregator {
	return &Aggregator{
		groups:    make(map[string]*groupBuffer),
		window:    window,
		retention: retention,
		emit:      emit,
	}
}

// OnEvent accepts one transport event. Events without a group id form a
// complete submission and are returned synchronously. Grouped events are
// buffered and return ok=false; the accumulated submission is emitted by the
// flush timer. Nothing on this path blocks beyond the buffer mutation.
func (a *Aggregator) OnEvent(ev Event) (domain.Submission, bool) {
	if ev.GroupID == "" {
		sub := domain.Submission{ChatID: ev.ChatID, Text: ev.Text}
		if ev.PhotoRef != "" {
			sub.PhotoRefs = []string{ev.PhotoRef}
		}
		return sub, true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return domain.Submission{}, false
	}

	g, ok := a.groups[ev.GroupID]
	if !ok {
		g = &groupBuffer{chatID: ev.ChatID, seen: make(map[string]struct{})}
		a.groups[ev.GroupID] = g
		groupID := ev.GroupID
		time.AfterFunc(a.window, func() { a.flush(groupID) })
	}

	// Late or redelivered event for an already-dispatched group: no-op.
	if g.completed {
		return domain.Submission{}, false
	}

	if ev.PhotoRef != "" {
		if _, dup := g.seen[ev.PhotoRef]; !dup {
			g.seen[ev.PhotoRef] = struct{}{}
			g.photoRefs = append(g.photoRefs, ev.PhotoRef)
		}
	}
	if g.text == "" && ev.Text != "" {
		g.text = ev.Text
	}

	return domain.Submission{}, false
}

// flush performs the atomic completed transition and emits the accumulated
// submission. It runs at most once per group: the check-and-set happens under
// the aggregator mutex.
func (a *Aggregator) flush(groupID string) {
	a.mu.Lock()
	g, ok := a.groups[groupID]
	if !ok || g.completed || a.stopped {
		a.mu.Unlock()
		return
	}
	g.completed = true

	sub := domain.Submission{
		ChatID:    g.chatID,
		Text:      g.text,
		PhotoRefs: append([]string(nil), g.photoRefs...),
	}
	time.AfterFunc(a.retention, func() { a.evict(groupID) })
	a.mu.Unlock()

	if a.emit != nil {
		a.emit(sub)
	}
}

func (a *Aggregator) evict(groupID string) {
	a.mu.Lock()
	delete(a.groups, groupID)
	a.mu.Unlock()
}

// Stop disables further buffering and flushing. Pending timers become no-ops.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.groups = make(map[string]*groupBuffer)
	a.mu.Unlock()
}
