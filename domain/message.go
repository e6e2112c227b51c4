package domain

import "time"

// Attachment describes an uploaded file linked to a message.
// The URL is an opaque retrieval locator owned by the blob store.
type Attachment struct {
	Name        string
	Size        int64
	URL         string
	ContentType string
}

// Message is one chat event inside exactly one channel.
//
// Reactions maps an emoji to the set of user IDs that applied it; the key
// is dropped entirely once its set empties. StarredBy is a plain set of
// user IDs. Both are mutated only through the store's commutative set
// operations, never by whole-document rewrites.
type Message struct {
	ID           string
	ChannelID    string
	UserID       string
	UserName     string // cached display label at post time
	Body         string
	Lang         string // ISO 639-1 code detected at post time, "" when undetectable
	CreatedAt    time.Time
	EditedAt     *time.Time
	Attachment   *Attachment
	Reactions    map[string][]string
	StarredBy    []string
	ScheduledFor *time.Time
}

// VisibleAt reports whether the message may be shown at the given instant.
// A scheduled message stays hidden from every reader, its author included,
// until its visibility time passes.
func (m Message) VisibleAt(now time.Time) bool {
	return m.ScheduledFor == nil || !m.ScheduledFor.After(now)
}

// IsStarred is always recomputed from the set; it is never stored as
// independent truth that could drift.
func (m Message) IsStarred() bool {
	return len(m.StarredBy) > 0
}

func (m Message) StarredByUser(userID string) bool {
	for _, id := range m.StarredBy {
		if id == userID {
			return true
		}
	}
	return false
}

func (m Message) HasAttachment() bool {
	return m.Attachment != nil
}

func (m Message) Edited() bool {
	return m.EditedAt != nil
}
