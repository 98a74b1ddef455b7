package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
)

type notificationStore interface {
	Create(ctx context.Context, userID int64, message string) (*models.Notification, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
}

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) error
}

type NotificationService struct {
	store notificationStore
	log   zerolog.Logger
}

func NewNotificationService(store notificationStore, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		store: store,
		log:   log.With().Str("component", "notification-service").Logger(),
	}
}

func (s *NotificationService) Notify(ctx context.Context, userID int64, message string) error {
	if _, err := s.store.Create(ctx, userID, message); err != nil {
		return err
	}
	s.log.Debug().Int64("user_id", userID).Msg("notification stored")
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	if notificationID <= 0 {
		return ErrInvalidInput
	}
	found, err := s.store.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// notifyQuietly sends a notification and only logs a failure; the action
// that triggered it has already succeeded.
func notifyQuietly(ctx context.Context, notifier Notifier, log zerolog.Logger, userID int64, message string) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, userID, message); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to send notification")
	}
}
