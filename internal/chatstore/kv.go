package chatstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
)

const DefaultKeyPrefix = "voluntrack:chat"

// KV is a flat string key-value store. It has no change notifications of its
// own; implementations that have them also implement Watcher.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// KVStore keeps every conversation in one JSON blob and every message
// sequence in a second blob keyed by conversation id. Writes from one KVStore
// are serialized; writes from different handles on the same data are last
// write wins.
type KVStore struct {
	kv     KV
	prefix string
	clock  clockwork.Clock
	ids    *IDGenerator
	log    zerolog.Logger
	mu     sync.Mutex
}

type KVOption func(*KVStore)

func WithClock(clock clockwork.Clock) KVOption {
	return func(s *KVStore) {
		s.clock = clock
	}
}

func WithLogger(log zerolog.Logger) KVOption {
	return func(s *KVStore) {
		s.log = log
	}
}

func NewKVStore(kv KV, prefix string, opts ...KVOption) *KVStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	s := &KVStore{
		kv:     kv,
		prefix: prefix,
		clock:  clockwork.NewRealClock(),
		ids:    NewIDGenerator(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "chat-kv-store").Logger()
	return s
}

func (s *KVStore) ConversationsKey() string {
	return s.prefix + ":conversations"
}

func (s *KVStore) MessagesKey() string {
	return s.prefix + ":messages"
}

func (s *KVStore) ConversationsForUser(ctx context.Context, userID string, role models.Role) ([]models.Conversation, error) {
	conversations, _, err := s.loadConversations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.Conversation, 0)
	if !role.IsChatParticipant() {
		return result, nil
	}
	for _, conversation := range conversations {
		if conversation.ParticipantID(role) == userID {
			result = append(result, conversation)
		}
	}
	sortByActivity(result)
	return result, nil
}

func (s *KVStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conversations, _, err := s.loadConversations(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(conversations, id)
	if idx < 0 {
		return nil, ErrConversationNotFound
	}
	conversation := conversations[idx]
	return &conversation, nil
}

func (s *KVStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	messages, err := s.loadMessages(ctx)
	if err != nil {
		return nil, err
	}
	sequence := messages[conversationID]
	result := make([]models.Message, len(sequence))
	copy(result, sequence)
	return result, nil
}

func (s *KVStore) SaveMessage(ctx context.Context, conversationID string, msg models.NewMessage) (*models.Message, error) {
	if !msg.SenderRole.IsChatParticipant() {
		return nil, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, _, err := s.loadConversations(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(conversations, conversationID)
	if idx < 0 {
		return nil, ErrConversationNotFound
	}
	messages, err := s.loadMessages(ctx)
	if err != nil {
		return nil, err
	}

	sequence := messages[conversationID]
	now := s.clock.Now().UTC()
	if n := len(sequence); n > 0 && now.Before(sequence[n-1].CreatedAt) {
		now = sequence[n-1].CreatedAt
	}

	message := models.Message{
		ID:             s.ids.MessageID(now),
		ConversationID: conversationID,
		SenderID:       msg.SenderID,
		SenderRole:     msg.SenderRole,
		Text:           msg.Text,
		CreatedAt:      now,
	}
	messages[conversationID] = append(sequence, message)

	conversation := &conversations[idx]
	conversation.LastMessage = msg.Text
	conversation.LastMessageTime = &now
	conversation.Unread.Increment(msg.SenderRole.Counterpart())

	if err := s.saveMessages(ctx, messages); err != nil {
		return nil, err
	}
	if err := s.saveConversations(ctx, conversations); err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *KVStore) MarkConversationRead(ctx context.Context, conversationID string, role models.Role) error {
	if !role.IsChatParticipant() {
		return ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, _, err := s.loadConversations(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(conversations, conversationID)
	if idx < 0 {
		return ErrConversationNotFound
	}
	messages, err := s.loadMessages(ctx)
	if err != nil {
		return err
	}

	changed := false
	sequence := messages[conversationID]
	for i := range sequence {
		if sequence[i].SenderRole != role && !sequence[i].Read {
			sequence[i].Read = true
			changed = true
		}
	}
	if changed {
		if err := s.saveMessages(ctx, messages); err != nil {
			return err
		}
	}

	if conversations[idx].Unread.For(role) == 0 {
		return nil
	}
	conversations[idx].Unread.Reset(role)
	return s.saveConversations(ctx, conversations)
}

func (s *KVStore) CreateConversation(ctx context.Context, input CreateConversationInput) (*models.Conversation, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, _, err := s.loadConversations(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range conversations {
		if existing.VolunteerID == input.VolunteerID &&
			existing.OrganizerID == input.OrganizerID &&
			existing.EventID == input.EventID {
			conversation := existing
			return &conversation, nil
		}
	}

	conversation := models.Conversation{
		ID:                 s.ids.ConversationID(),
		VolunteerID:        input.VolunteerID,
		VolunteerName:      input.VolunteerName,
		OrganizerID:        input.OrganizerID,
		OrganizerName:      input.OrganizerName,
		EventID:            input.EventID,
		EventName:          input.EventName,
		RegistrationStatus: models.RegistrationRegistered,
		CreatedAt:          s.clock.Now().UTC(),
	}
	conversations = append(conversations, conversation)
	if err := s.saveConversations(ctx, conversations); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("conversation_id", conversation.ID).
		Str("volunteer_id", conversation.VolunteerID).
		Str("organizer_id", conversation.OrganizerID).
		Msg("conversation created")
	return &conversation, nil
}

// SeedIfEmpty writes data only when the conversations blob has never been
// written. The conversations blob doubles as the sentinel, so it is written
// last.
func (s *KVStore) SeedIfEmpty(ctx context.Context, data SeedData) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present, err := s.kv.Get(ctx, s.ConversationsKey())
	if err != nil {
		return false, fmt.Errorf("check seed sentinel: %w", err)
	}
	if present {
		return false, nil
	}

	messages := data.Messages
	if messages == nil {
		messages = make(map[string][]models.Message)
	}
	conversations := data.Conversations
	if conversations == nil {
		conversations = make([]models.Conversation, 0)
	}
	if err := s.saveMessages(ctx, messages); err != nil {
		return false, err
	}
	if err := s.saveConversations(ctx, conversations); err != nil {
		return false, err
	}

	s.log.Info().Int("conversations", len(conversations)).Msg("seeded chat store")
	return true, nil
}

// Watch forwards change notifications from the underlying KV when it supports
// them.
func (s *KVStore) Watch(ctx context.Context) (<-chan string, error) {
	watcher, ok := s.kv.(Watcher)
	if !ok {
		return nil, nil
	}
	return watcher.Watch(ctx)
}

func (s *KVStore) loadConversations(ctx context.Context) ([]models.Conversation, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.ConversationsKey())
	if err != nil {
		return nil, false, fmt.Errorf("load conversations: %w", err)
	}
	conversations := make([]models.Conversation, 0)
	if !ok || raw == "" {
		return conversations, ok, nil
	}
	if err := json.Unmarshal([]byte(raw), &conversations); err != nil {
		s.log.Warn().Err(err).Msg("conversations blob is corrupt, treating as empty")
		return make([]models.Conversation, 0), true, nil
	}
	return conversations, true, nil
}

func (s *KVStore) loadMessages(ctx context.Context) (map[string][]models.Message, error) {
	raw, ok, err := s.kv.Get(ctx, s.MessagesKey())
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	messages := make(map[string][]models.Message)
	if !ok || raw == "" {
		return messages, nil
	}
	if err := json.Unmarshal([]byte(raw), &messages); err != nil || messages == nil {
		s.log.Warn().Err(err).Msg("messages blob is corrupt, treating as empty")
		return make(map[string][]models.Message), nil
	}
	return messages, nil
}

func (s *KVStore) saveConversations(ctx context.Context, conversations []models.Conversation) error {
	encoded, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}
	if err := s.kv.Set(ctx, s.ConversationsKey(), string(encoded)); err != nil {
		return fmt.Errorf("save conversations: %w", err)
	}
	return nil
}

func (s *KVStore) saveMessages(ctx context.Context, messages map[string][]models.Message) error {
	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if err := s.kv.Set(ctx, s.MessagesKey(), string(encoded)); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	return nil
}

func indexOf(conversations []models.Conversation, id string) int {
	for i := range conversations {
		if conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func sortByActivity(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActivity().After(conversations[j].LastActivity())
	})
}
