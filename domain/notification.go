package domain

import "time"

// Notification is a per-user inbox entry created by system events.
// The target user may delete entries singly or in bulk.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
	Read      bool
}
