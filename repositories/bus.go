package repositories

import (
	"sync"

	"chat-sync/domain/event"
)

// ChangeBus broadcasts committed store mutations to live subscribers.
//
// Delivery is best-effort: a subscriber that cannot keep up loses
// intermediate changes, which is safe because consumers always rebuild full
// snapshots from the store. The bus never blocks a writer.
//
// ChangeBus is safe for concurrent use by multiple goroutines.
type ChangeBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan event.Change
}

func NewChangeBus() *ChangeBus {
	return &ChangeBus{subs: make(map[int]chan event.Change)}
}

// Publish fans the change out to every subscriber without blocking.
func (b *ChangeBus) Publish(c event.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
			// Subscriber lagging; the next snapshot rebuild covers the loss.
		}
	}
}

// Subscribe registers a new listener with the given channel buffer.
// The returned cancel func unregisters and closes the channel; it is safe
// to call more than once.
func (b *ChangeBus) Subscribe(buffer int) (<-chan event.Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan event.Change, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
