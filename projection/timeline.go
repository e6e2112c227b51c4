// Package projection derives read views from stored records.
package projection

import (
	"sort"
	"time"

	"chat-sync/domain"

	"github.com/samber/lo"
)

// VisibleTimeline filters out messages scheduled beyond now and returns
// the remainder in ascending creation order. Ties keep store order, which
// is already chronological.
func VisibleTimeline(messages []domain.Message, now time.Time) []domain.Message {
	visible := lo.Filter(messages, func(m domain.Message, _ int) bool {
		return m.VisibleAt(now)
	})
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})
	return visible
}

// ReactionTally counts reactors per emoji for rendering.
func ReactionTally(m domain.Message) map[string]int {
	if len(m.Reactions) == 0 {
		return nil
	}
	tally := make(map[string]int, len(m.Reactions))
	for emoji, reactors := range m.Reactions {
		tally[emoji] = len(reactors)
	}
	return tally
}
