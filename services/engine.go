package services

// Engine bundles the service surface handed to an embedding transport.
// The process keeps running without one; feeds and workers operate off
// the storage layer directly.
type Engine struct {
	Auth          IAuthService
	Membership    IMembershipService
	Messages      IMessageService
	Notifications INotificationService
}

func NewEngine(
	auth IAuthService,
	membership IMembershipService,
	messages IMessageService,
	notifications INotificationService,
) *Engine {
	return &Engine{
		Auth:          auth,
		Membership:    membership,
		Messages:      messages,
		Notifications: notifications,
	}
}
