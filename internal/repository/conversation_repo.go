package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/models"
)

const conversationColumns = `
	id, volunteer_id, volunteer_name, organizer_id, organizer_name, event_id, event_name,
	last_message, last_message_time, volunteer_unread, organizer_unread, registration_status, created_at
`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.VolunteerID,
		&conversation.VolunteerName,
		&conversation.OrganizerID,
		&conversation.OrganizerName,
		&conversation.EventID,
		&conversation.EventName,
		&conversation.LastMessage,
		&conversation.LastMessageTime,
		&conversation.Unread.Volunteer,
		&conversation.Unread.Organizer,
		&conversation.RegistrationStatus,
		&conversation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func participantColumn(role models.Role) (string, error) {
	switch role {
	case models.RoleVolunteer:
		return "volunteer_id", nil
	case models.RoleOrganizer:
		return "organizer_id", nil
	}
	return "", chatstore.ErrInvalidRole
}

func unreadColumn(role models.Role) (string, error) {
	switch role {
	case models.RoleVolunteer:
		return "volunteer_unread", nil
	case models.RoleOrganizer:
		return "organizer_unread", nil
	}
	return "", chatstore.ErrInvalidRole
}

// CreateOrGet inserts the conversation unless one already exists for the
// same volunteer, organizer and event, in which case the existing row is
// returned untouched.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	id string,
	input chatstore.CreateConversationInput,
	createdAt time.Time,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (
			id, volunteer_id, volunteer_name, organizer_id, organizer_name, event_id, event_name,
			registration_status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'registered', $8)
		ON CONFLICT (volunteer_id, organizer_id, event_id)
		DO UPDATE SET created_at = conversations.created_at
		RETURNING ` + conversationColumns

	return scanConversation(r.db.QueryRow(
		ctx,
		query,
		id,
		input.VolunteerID,
		input.VolunteerName,
		input.OrganizerID,
		input.OrganizerName,
		input.EventID,
		input.EventName,
		createdAt.UTC(),
	))
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRow(ctx, query, id))
}

// LockByID reads the conversation with a row lock held until the surrounding
// transaction ends.
func (r *ConversationRepository) LockByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 FOR UPDATE`
	return scanConversation(r.db.QueryRow(ctx, query, id))
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	userID string,
	role models.Role,
) ([]models.Conversation, error) {
	column, err := participantColumn(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM conversations
		WHERE %s = $1
		ORDER BY COALESCE(last_message_time, created_at) DESC, id DESC
	`, conversationColumns, column)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conversations, nil
}

// RecordMessage stores the last-message fields and bumps the recipient's
// unread counter.
func (r *ConversationRepository) RecordMessage(
	ctx context.Context,
	id string,
	text string,
	at time.Time,
	recipient models.Role,
) error {
	column, err := unreadColumn(recipient)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE conversations
		SET last_message = $2, last_message_time = $3, %[1]s = %[1]s + 1
		WHERE id = $1
	`, column)
	_, err = r.db.Exec(ctx, query, id, text, at.UTC())
	return err
}

func (r *ConversationRepository) ResetUnread(ctx context.Context, id string, role models.Role) error {
	column, err := unreadColumn(role)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE conversations SET %[1]s = 0 WHERE id = $1 AND %[1]s <> 0`, column)
	_, err = r.db.Exec(ctx, query, id)
	return err
}

func (r *ConversationRepository) UpdateRegistrationStatus(
	ctx context.Context,
	volunteerID string,
	organizerID string,
	eventID string,
	status models.RegistrationStatus,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET registration_status = $4
		WHERE volunteer_id = $1 AND organizer_id = $2 AND event_id = $3
	`, volunteerID, organizerID, eventID, status)
	return err
}
