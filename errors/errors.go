// Package errors defines the failure taxonomy shared by every engine:
// validation, authorization, not-found, conflict and quota errors.
// All mutations fail independently and wrap one of these sentinels.
package errors

import "fmt"

// Validation failures. Raised before any write happens.
var (
	ErrEmptyBody            = fmt.Errorf("message body is empty")
	ErrEmptyChannelName     = fmt.Errorf("channel name is empty")
	ErrScheduleInPast       = fmt.Errorf("scheduled time must be in the future")
	ErrDirectChannelMembers = fmt.Errorf("a direct channel needs exactly one other member")
)

// Authorization failures.
var (
	ErrNotChannelMember  = fmt.Errorf("user is not a member of this channel")
	ErrNotMessageAuthor  = fmt.Errorf("only the author may modify this message")
	ErrNotChannelCreator = fmt.Errorf("only the channel creator may do this")
)

// Not-found failures.
var (
	ErrChannelNotFound      = fmt.Errorf("channel not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrInviteNotFound       = fmt.Errorf("invalid or expired invite code")
	ErrUserNotFound         = fmt.Errorf("no user found with this email address")
	ErrNotificationNotFound = fmt.Errorf("notification not found")
)

// Conflicts. ErrAlreadyExists doubles as the invite-code collision signal,
// recovered by regenerating the code.
var (
	ErrAlreadyExists     = fmt.Errorf("record already exists")
	ErrUserAlreadyExists = fmt.Errorf("a user with this email already exists")
)

// Identity failures.
var (
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")

// QuotaExceededError reports an attachment larger than the plan ceiling.
// It carries both sides of the comparison so callers can render a useful
// upgrade hint.
type QuotaExceededError struct {
	Limit int64
	Size  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("file size %d bytes exceeds the plan limit of %d bytes", e.Size, e.Limit)
}
