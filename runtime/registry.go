// Package runtime hosts the live view machinery: the feed registry, the
// snapshot feeds handed to subscribers and the synchronizer that refreshes
// them when stored records change.
package runtime

import (
	"sync"

	"chat-sync/contract"
)

type Set map[string]struct{}

// Registry tracks live feeds and the channel each one watches. Sinks are
// held in one directory and resolved per channel, so a feed is managed in
// a single place regardless of which channel it observes.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]contract.SnapshotSink // feed ID -> sink
	channelFeeds map[string]Set                   // channel ID -> feed IDs
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]contract.SnapshotSink),
		channelFeeds: make(map[string]Set),
	}
}

// SinksForChannel resolves the active sinks watching a channel. Returns
// nil when nobody is watching.
func (r *Registry) SinksForChannel(channelID string) []contract.SnapshotSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	feeds, ok := r.channelFeeds[channelID]
	if !ok {
		return nil
	}
	var sinks []contract.SnapshotSink
	for feedID := range feeds {
		if sink, exists := r.sessions[feedID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) Register(feedID, channelID string, sink contract.SnapshotSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[feedID] = sink
	if _, ok := r.channelFeeds[channelID]; !ok {
		r.channelFeeds[channelID] = make(Set)
	}
	r.channelFeeds[channelID][feedID] = struct{}{}
}

// Unregister drops the feed and prunes the channel entry once its last
// watcher is gone.
func (r *Registry) Unregister(feedID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, feedID)
	if feeds, ok := r.channelFeeds[channelID]; ok {
		delete(feeds, feedID)
		if len(feeds) == 0 {
			delete(r.channelFeeds, channelID)
		}
	}
}

// Channels lists the channels with at least one live feed.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.channelFeeds))
	for channelID := range r.channelFeeds {
		out = append(out, channelID)
	}
	return out
}
