// Package event defines the change notifications emitted by the document
// store and consumed by the live view synchronizer.
package event

import "time"

// Collection identifies the typed record set a change belongs to.
type Collection string

const (
	Users         Collection = "users"
	Channels      Collection = "channels"
	Messages      Collection = "messages"
	Notifications Collection = "notifications"
)

// Kind is the mutation class of a change.
type Kind string

const (
	Created Kind = "created"
	Updated Kind = "updated"
	Deleted Kind = "deleted"
)

// Change describes one committed mutation in the document store.
// ChannelID is set for channel and message changes, UserID for user and
// notification changes; consumers treat a change as an invalidation hint
// and rebuild full snapshots from the store.
type Change struct {
	Collection Collection
	Kind       Kind
	EntityID   string
	ChannelID  string
	UserID     string
	At         time.Time
}

// AuthTransition is a sign-in or sign-out observed by the identity layer.
type AuthTransition struct {
	UserID   string
	SignedIn bool
	At       time.Time
}
