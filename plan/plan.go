// Package plan maps subscription tiers to upload allowances.
package plan

import (
	"chat-sync/domain"
	"chat-sync/errors"
)

const (
	freeLimit = 50 << 20
	proLimit  = 5 << 30
	teamLimit = 10 << 30
)

// MaxUploadBytes returns the per-file upload ceiling of a tier. Unknown
// tiers fall back to the free allowance.
func MaxUploadBytes(p domain.Plan) int64 {
	switch p {
	case domain.PlanPro:
		return proLimit
	case domain.PlanTeam:
		return teamLimit
	default:
		return freeLimit
	}
}

// CheckUpload rejects a file larger than the tier allows. The returned
// error carries both numbers so callers can render a precise message.
func CheckUpload(p domain.Plan, size int64) error {
	limit := MaxUploadBytes(p)
	if size > limit {
		return &errors.QuotaExceededError{Limit: limit, Size: size}
	}
	return nil
}
