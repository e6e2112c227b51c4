package runtime

import (
	"sync"

	"chat-sync/domain"
)

// Feed is the subscriber end of a live view. Snapshots arrive on C;
// each one is the full current timeline, so a consumer that misses an
// intermediate snapshot still converges on the latest state.
type Feed struct {
	id    string
	limit int

	mu     sync.Mutex
	ch     chan []domain.Message
	closed bool
	err    error
}

func newFeed(id string, limit int) *Feed {
	return &Feed{id: id, limit: limit, ch: make(chan []domain.Message, 1)}
}

func (f *Feed) ID() string { return f.id }

// C delivers snapshots. The channel closes when the feed is cancelled or
// fails; check Err after it closes.
func (f *Feed) C() <-chan []domain.Message { return f.ch }

// Err reports why the feed terminated, nil for a plain cancel.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Feed) Limit() int { return f.limit }

// Push replaces the pending snapshot. The buffer holds exactly one
// element: a stale undelivered snapshot is dropped in favor of the new
// one, so a slow consumer reads the latest state instead of a backlog.
func (f *Feed) Push(snapshot []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- snapshot
}

// Fail terminates the feed with a reason.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.err = err
	f.closed = true
	close(f.ch)
}

func (f *Feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}
