// Package domain contains core concepts of the messaging system.
// Entities here carry no storage, runtime or transport logic.
package domain

import "time"

// Plan is a subscription tier. It determines the attachment size ceiling.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// Valid reports whether p is one of the closed set of tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanTeam:
		return true
	}
	return false
}

// User is an account profile. Created on first registration,
// never hard-deleted.
type User struct {
	ID           string
	Email        string // unique, lowercase-normalized
	DisplayName  string
	Status       string
	PasswordHash string
	Plan         Plan
	UploadLimit  int64 // cached ceiling in bytes, derived from Plan
	CreatedAt    time.Time
}
