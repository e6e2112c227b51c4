package services

import (
	"chat-sync/domain"
	"chat-sync/repositories"
)

type INotificationService interface {
	List(userID string) ([]domain.Notification, error)
	UnreadCount(userID string) (int, error)
	MarkRead(userID, id string) error
	Delete(userID, id string) error
	Clear(userID string) error
}

// NotificationService is a thin authorization shim: every operation is
// scoped to the caller's own inbox by construction of the storage keys.
type NotificationService struct {
	notifications repositories.INotificationRepository
}

func NewNotificationService(notifications repositories.INotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(userID string) ([]domain.Notification, error) {
	return s.notifications.ListNotifications(userID)
}

func (s *NotificationService) UnreadCount(userID string) (int, error) {
	return s.notifications.UnreadCount(userID)
}

func (s *NotificationService) MarkRead(userID, id string) error {
	return s.notifications.MarkRead(userID, id)
}

func (s *NotificationService) Delete(userID, id string) error {
	return s.notifications.DeleteNotification(userID, id)
}

func (s *NotificationService) Clear(userID string) error {
	return s.notifications.ClearNotifications(userID)
}
