package services

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/models"
)

const displayNameCacheSize = 1024

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type eventReader interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

type ChatService struct {
	store  chatstore.Store
	users  userReader
	events eventReader
	names  *lru.Cache[int64, *models.User]
	log    zerolog.Logger
}

// ChatDelivery is a stored message together with who has to receive it.
type ChatDelivery struct {
	Conversation *models.Conversation
	Message      *models.Message
	RecipientID  string
}

func NewChatService(store chatstore.Store, users userReader, events eventReader, log zerolog.Logger) *ChatService {
	names, err := lru.New[int64, *models.User](displayNameCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &ChatService{
		store:  store,
		users:  users,
		events: events,
		names:  names,
		log:    log.With().Str("component", "chat-service").Logger(),
	}
}

func (s *ChatService) ListConversations(ctx context.Context, actorID string, role models.Role) ([]models.Conversation, error) {
	if !role.IsChatParticipant() {
		return make([]models.Conversation, 0), nil
	}
	return s.store.ConversationsForUser(ctx, actorID, role)
}

// ConversationsForUser lists another user's conversations. Users may only
// list their own; administrators may list anyone's.
func (s *ChatService) ConversationsForUser(
	ctx context.Context,
	actorID string,
	role models.Role,
	targetID string,
) ([]models.Conversation, error) {
	if targetID == actorID {
		return s.ListConversations(ctx, actorID, role)
	}
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	id, err := parseUserID(targetID)
	if err != nil {
		return nil, err
	}
	target, err := s.lookupUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ListConversations(ctx, targetID, target.Role)
}

type CreateConversationInput struct {
	VolunteerID string
	OrganizerID string
	EventID     string
}

// CreateConversation finds or creates the conversation between a volunteer
// and an organizer, optionally about an event. The caller must be one of
// the two parties. Display names and the event title are resolved here.
func (s *ChatService) CreateConversation(
	ctx context.Context,
	actorID string,
	role models.Role,
	input CreateConversationInput,
) (*models.Conversation, error) {
	switch role {
	case models.RoleVolunteer:
		if input.VolunteerID != actorID {
			return nil, ErrForbidden
		}
	case models.RoleOrganizer:
		if input.OrganizerID != actorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	volunteer, err := s.participant(ctx, input.VolunteerID, models.RoleVolunteer)
	if err != nil {
		return nil, err
	}
	organizer, err := s.participant(ctx, input.OrganizerID, models.RoleOrganizer)
	if err != nil {
		return nil, err
	}

	storeInput := chatstore.CreateConversationInput{
		VolunteerID:   input.VolunteerID,
		VolunteerName: volunteer.Name,
		OrganizerID:   input.OrganizerID,
		OrganizerName: organizer.Name,
	}
	if eventID := strings.TrimSpace(input.EventID); eventID != "" {
		id, err := parseUserID(eventID)
		if err != nil {
			return nil, err
		}
		event, err := s.events.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if event.OrganizerID != organizer.ID {
			return nil, ErrInvalidInput
		}
		storeInput.EventID = eventID
		storeInput.EventName = event.Title
	}

	conversation, err := s.store.CreateConversation(ctx, storeInput)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return conversation, nil
}

func (s *ChatService) Messages(ctx context.Context, actorID string, role models.Role, conversationID string) ([]models.Message, error) {
	if _, err := s.authorize(ctx, actorID, role, conversationID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, conversationID)
}

// MarkRead resets the caller's unread counter for the conversation.
func (s *ChatService) MarkRead(ctx context.Context, actorID string, role models.Role, conversationID string) error {
	if _, err := s.authorize(ctx, actorID, role, conversationID); err != nil {
		return err
	}
	return mapStoreError(s.store.MarkConversationRead(ctx, conversationID, role))
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID string,
	role models.Role,
	conversationID string,
	text string,
) (*ChatDelivery, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	conversation, err := s.authorize(ctx, actorID, role, conversationID)
	if err != nil {
		return nil, err
	}

	message, err := s.store.SaveMessage(ctx, conversationID, models.NewMessage{
		SenderID:   actorID,
		SenderRole: role,
		Text:       trimmed,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	return &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  conversation.ParticipantID(role.Counterpart()),
	}, nil
}

func (s *ChatService) authorize(ctx context.Context, actorID string, role models.Role, conversationID string) (*models.Conversation, error) {
	if !role.IsChatParticipant() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidInput
	}
	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if conversation.ParticipantID(role) != actorID {
		return nil, ErrForbidden
	}
	return conversation, nil
}

func (s *ChatService) participant(ctx context.Context, rawID string, role models.Role) (*models.User, error) {
	id, err := parseUserID(rawID)
	if err != nil {
		return nil, err
	}
	user, err := s.lookupUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != role || user.Status != models.AccountApproved {
		return nil, ErrInvalidInput
	}
	return user, nil
}

// ForgetUser drops any cached copy of the user.
func (s *ChatService) ForgetUser(id int64) {
	s.names.Remove(id)
}

func (s *ChatService) lookupUser(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := s.names.Get(id); ok {
		return user, nil
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cached := *user
	cached.PasswordHash = ""
	// pending accounts change on moderation, so only approved ones are kept
	if cached.Status == models.AccountApproved {
		s.names.Add(id, &cached)
	}
	return &cached, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chatstore.ErrConversationNotFound):
		return ErrNotFound
	case errors.Is(err, chatstore.ErrInvalidRole):
		return ErrForbidden
	case errors.Is(err, chatstore.ErrInvalidParticipants):
		return ErrInvalidInput
	}
	return err
}
