package repository

import (
	"context"
	"time"

	"github.com/voluntrack/voluntrack/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_role, text, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.SenderRole,
		message.Text,
		message.CreatedAt.UTC(),
	)
	return err
}

// LatestTimestamp returns the creation time of the newest message, or the
// zero time for an empty conversation.
func (r *MessageRepository) LatestTimestamp(ctx context.Context, conversationID string) (time.Time, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx, `
		SELECT MAX(created_at)
		FROM messages
		WHERE conversation_id = $1
	`, conversationID).Scan(&latest)
	if err != nil || latest == nil {
		return time.Time{}, err
	}
	return *latest, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, sender_role, text, is_read, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.SenderRole,
			&message.Text,
			&message.Read,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkConversationRead flips the read flag on every message the reader did
// not send.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID string,
	reader models.Role,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1
		  AND sender_role <> $2
		  AND is_read = FALSE
	`, conversationID, reader)
	return err
}
