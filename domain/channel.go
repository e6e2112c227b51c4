package domain

import "time"

// ChannelKind distinguishes discoverable public channels from
// two-member direct conversations.
type ChannelKind string

const (
	ChannelPublic ChannelKind = "public"
	ChannelDirect ChannelKind = "dm"
)

// Channel is a named, membership-scoped message stream.
//
// Invariants: a direct channel has exactly two members and is unique per
// unordered member pair; a public channel gets an invite code lazily on
// first request.
type Channel struct {
	ID         string
	Name       string
	Kind       ChannelKind
	CreatedBy  string
	Members    []string
	InviteCode string
	CreatedAt  time.Time
}

func (c Channel) IsDirect() bool {
	return c.Kind == ChannelDirect
}

func (c Channel) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// SamePair reports whether a direct channel connects exactly the unordered
// pair (a, b).
func (c Channel) SamePair(a, b string) bool {
	return c.IsDirect() && len(c.Members) == 2 && c.HasMember(a) && c.HasMember(b)
}
