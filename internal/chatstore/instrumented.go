package chatstore

import (
	"context"
	"time"

	"github.com/voluntrack/voluntrack/internal/metrics"
	"github.com/voluntrack/voluntrack/internal/models"
)

// InstrumentedStore records latency and message counts for another Store.
type InstrumentedStore struct {
	next    Store
	backend string
}

func Instrument(next Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend}
}

func (s *InstrumentedStore) Unwrap() Store {
	return s.next
}

func (s *InstrumentedStore) observe(operation string, start time.Time) {
	metrics.ChatStoreDuration.WithLabelValues(s.backend, operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) ConversationsForUser(ctx context.Context, userID string, role models.Role) ([]models.Conversation, error) {
	defer s.observe("conversations_for_user", time.Now())
	return s.next.ConversationsForUser(ctx, userID, role)
}

func (s *InstrumentedStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	defer s.observe("get_conversation", time.Now())
	return s.next.GetConversation(ctx, id)
}

func (s *InstrumentedStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	defer s.observe("messages", time.Now())
	return s.next.Messages(ctx, conversationID)
}

func (s *InstrumentedStore) SaveMessage(ctx context.Context, conversationID string, msg models.NewMessage) (*models.Message, error) {
	defer s.observe("save_message", time.Now())
	message, err := s.next.SaveMessage(ctx, conversationID, msg)
	if err == nil {
		metrics.ChatMessages.WithLabelValues(s.backend).Inc()
	}
	return message, err
}

func (s *InstrumentedStore) MarkConversationRead(ctx context.Context, conversationID string, role models.Role) error {
	defer s.observe("mark_read", time.Now())
	return s.next.MarkConversationRead(ctx, conversationID, role)
}

func (s *InstrumentedStore) CreateConversation(ctx context.Context, input CreateConversationInput) (*models.Conversation, error) {
	defer s.observe("create_conversation", time.Now())
	return s.next.CreateConversation(ctx, input)
}
