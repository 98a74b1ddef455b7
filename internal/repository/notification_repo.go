package repository

import (
	"context"

	"github.com/voluntrack/voluntrack/internal/models"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, userID int64, message string) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, message)
		VALUES ($1, $2)
		RETURNING id, user_id, message, is_read, created_at
	`, userID, message).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Message,
		&notification.Read,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Message,
			&notification.Read,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications read and reports whether it
// exists.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
