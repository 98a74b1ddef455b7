package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/models"
)

// ChatStore is the PostgreSQL implementation of chatstore.Store.
type ChatStore struct {
	db            TxDB
	clock         clockwork.Clock
	ids           *chatstore.IDGenerator
	conversations *ConversationRepository
	messages      *MessageRepository
}

func NewChatStore(db TxDB, clock clockwork.Clock) *ChatStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ChatStore{
		db:            db,
		clock:         clock,
		ids:           chatstore.NewIDGenerator(),
		conversations: NewConversationRepository(db),
		messages:      NewMessageRepository(db),
	}
}

var _ chatstore.Store = (*ChatStore)(nil)

func (s *ChatStore) ConversationsForUser(ctx context.Context, userID string, role models.Role) ([]models.Conversation, error) {
	if !role.IsChatParticipant() {
		return make([]models.Conversation, 0), nil
	}
	return s.conversations.ListForParticipant(ctx, userID, role)
}

func (s *ChatStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chatstore.ErrConversationNotFound
	}
	return conversation, err
}

func (s *ChatStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.messages.ListByConversation(ctx, conversationID)
}

func (s *ChatStore) SaveMessage(ctx context.Context, conversationID string, msg models.NewMessage) (*models.Message, error) {
	if !msg.SenderRole.IsChatParticipant() {
		return nil, chatstore.ErrInvalidRole
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := NewConversationRepository(tx)
	txMessageRepo := NewMessageRepository(tx)

	if _, err := txConversationRepo.LockByID(ctx, conversationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chatstore.ErrConversationNotFound
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	latest, err := txMessageRepo.LatestTimestamp(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if now.Before(latest) {
		now = latest
	}

	message := models.Message{
		ID:             s.ids.MessageID(now),
		ConversationID: conversationID,
		SenderID:       msg.SenderID,
		SenderRole:     msg.SenderRole,
		Text:           msg.Text,
		CreatedAt:      now,
	}
	if err := txMessageRepo.Create(ctx, &message); err != nil {
		return nil, err
	}
	if err := txConversationRepo.RecordMessage(ctx, conversationID, msg.Text, now, msg.SenderRole.Counterpart()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *ChatStore) MarkConversationRead(ctx context.Context, conversationID string, role models.Role) error {
	if !role.IsChatParticipant() {
		return chatstore.ErrInvalidRole
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := NewConversationRepository(tx)
	if _, err := txConversationRepo.LockByID(ctx, conversationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chatstore.ErrConversationNotFound
		}
		return err
	}
	if err := NewMessageRepository(tx).MarkConversationRead(ctx, conversationID, role); err != nil {
		return err
	}
	if err := txConversationRepo.ResetUnread(ctx, conversationID, role); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ChatStore) CreateConversation(ctx context.Context, input chatstore.CreateConversationInput) (*models.Conversation, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.conversations.CreateOrGet(ctx, s.ids.ConversationID(), input, s.clock.Now())
}
