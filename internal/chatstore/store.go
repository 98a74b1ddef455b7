// Package chatstore holds the conversation store contract and its key-value
// backends. The PostgreSQL backend lives in internal/repository.
package chatstore

import (
	"context"
	"errors"

	"github.com/voluntrack/voluntrack/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRole          = errors.New("role cannot take part in a conversation")
	ErrInvalidParticipants  = errors.New("conversation needs a volunteer and an organizer")
)

// Store is the query and mutation surface for conversations and messages.
type Store interface {
	ConversationsForUser(ctx context.Context, userID string, role models.Role) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	SaveMessage(ctx context.Context, conversationID string, msg models.NewMessage) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string, role models.Role) error
	CreateConversation(ctx context.Context, input CreateConversationInput) (*models.Conversation, error)
}

type CreateConversationInput struct {
	VolunteerID   string
	VolunteerName string
	OrganizerID   string
	OrganizerName string
	EventID       string
	EventName     string
}

func (in CreateConversationInput) Validate() error {
	if in.VolunteerID == "" || in.OrganizerID == "" || in.VolunteerID == in.OrganizerID {
		return ErrInvalidParticipants
	}
	return nil
}

// Watcher is implemented by stores that can report writes made by other
// writers sharing the same data. Each received value is the key that changed.
// The channel is closed once ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}

// Seeder is implemented by stores that can be populated with demo data.
type Seeder interface {
	SeedIfEmpty(ctx context.Context, data SeedData) (bool, error)
}

type SeedData struct {
	Conversations []models.Conversation
	Messages      map[string][]models.Message
}

// Capability finds T on store or on any store it wraps.
func Capability[T any](store Store) (T, bool) {
	for store != nil {
		if c, ok := store.(T); ok {
			return c, true
		}
		wrapper, ok := store.(interface{ Unwrap() Store })
		if !ok {
			break
		}
		store = wrapper.Unwrap()
	}
	var zero T
	return zero, false
}
