// Package chatsync keeps one user's view of their conversations in step with
// a chatstore.Store. A Session refreshes on start, whenever another writer
// reports a change, and on a fixed poll interval.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/metrics"
	"github.com/voluntrack/voluntrack/internal/models"
)

const DefaultPollInterval = time.Second

// refreshAttempts bounds how often Refresh re-reads after local changes
// superseded its snapshot.
const refreshAttempts = 3

type Trigger string

const (
	TriggerMount  Trigger = "mount"
	TriggerNotify Trigger = "notify"
	TriggerPoll   Trigger = "poll"
	TriggerManual Trigger = "manual"
)

var (
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
)

type Options struct {
	Clock        clockwork.Clock
	PollInterval time.Duration
	// Watcher overrides the change feed found on the store.
	Watcher chatstore.Watcher
	// Seed is written through the store's Seeder on Start when set.
	Seed   *chatstore.SeedData
	Logger zerolog.Logger
}

// Session is bound to one store, user and role.
type Session struct {
	store  chatstore.Store
	userID string
	role   models.Role
	clock  clockwork.Clock
	poll   time.Duration
	watch  chatstore.Watcher
	seed   *chatstore.SeedData
	log    zerolog.Logger

	mu            sync.RWMutex
	conversations []models.Conversation
	activeID      string
	messages      map[string][]models.Message
	// gen counts local mutations; Refresh only applies a snapshot read at
	// the current generation.
	gen uint64

	updates   chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSession(store chatstore.Store, userID string, role models.Role, opts Options) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("chat session needs a store")
	}
	if userID == "" || !role.IsChatParticipant() {
		return nil, chatstore.ErrInvalidRole
	}

	s := &Session{
		store:         store,
		userID:        userID,
		role:          role,
		clock:         opts.Clock,
		poll:          opts.PollInterval,
		watch:         opts.Watcher,
		seed:          opts.Seed,
		conversations: make([]models.Conversation, 0),
		messages:      make(map[string][]models.Message),
		updates:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.poll <= 0 {
		s.poll = DefaultPollInterval
	}
	if s.watch == nil {
		if watcher, ok := chatstore.Capability[chatstore.Watcher](store); ok {
			s.watch = watcher
		}
	}
	s.log = opts.Logger.With().
		Str("component", "chat-session").
		Str("user_id", userID).
		Str("role", string(role)).
		Logger()
	return s, nil
}

// Start seeds the store when asked to, loads the initial conversation list
// and starts the background refresh loop. Calls after the first are no-ops.
func (s *Session) Start(ctx context.Context) error {
	var startErr error
	s.startOnce.Do(func() {
		if s.seed != nil {
			if seeder, ok := chatstore.Capability[chatstore.Seeder](s.store); ok {
				if _, err := seeder.SeedIfEmpty(ctx, *s.seed); err != nil {
					startErr = fmt.Errorf("seed chat store: %w", err)
					return
				}
			}
		}

		if err := s.Refresh(ctx, TriggerMount); err != nil {
			startErr = err
			return
		}

		loopCtx, cancel := context.WithCancel(ctx)
		var changes <-chan string
		if s.watch != nil {
			ch, err := s.watch.Watch(loopCtx)
			if err != nil {
				cancel()
				startErr = fmt.Errorf("watch chat store: %w", err)
				return
			}
			changes = ch
		}

		// the ticker is created here so a fake clock sees it once Start returns
		ticker := s.clock.NewTicker(s.poll)
		s.cancel = cancel
		s.wg.Add(1)
		go s.run(loopCtx, ticker, changes)
		s.log.Debug().Dur("poll_interval", s.poll).Bool("watching", changes != nil).Msg("chat session started")
	})
	return startErr
}

// Stop ends the refresh loop and waits for it. Safe to call more than once
// and before Start.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.log.Debug().Msg("chat session stopped")
	})
}

func (s *Session) run(ctx context.Context, ticker clockwork.Ticker, changes <-chan string) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.refreshInLoop(ctx, TriggerNotify)
		case <-ticker.Chan():
			s.refreshInLoop(ctx, TriggerPoll)
		}
	}
}

func (s *Session) refreshInLoop(ctx context.Context, trigger Trigger) {
	if err := s.Refresh(ctx, trigger); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("trigger", string(trigger)).Msg("chat refresh failed")
	}
}

// Refresh re-reads the conversation list and, when a conversation is open,
// its messages. Messages that arrived in the open conversation are marked
// read. A snapshot overtaken by a local change is read again.
func (s *Session) Refresh(ctx context.Context, trigger Trigger) error {
	metrics.SyncRefreshes.WithLabelValues(string(trigger)).Inc()

	for attempt := 1; attempt <= refreshAttempts; attempt++ {
		applied, count, err := s.refreshOnce(ctx)
		if err != nil {
			return err
		}
		if applied {
			s.notify()
			s.log.Trace().Str("trigger", string(trigger)).Int("conversations", count).Msg("chat refreshed")
			return nil
		}
	}
	s.log.Debug().Str("trigger", string(trigger)).Msg("chat refresh superseded by local changes")
	return nil
}

func (s *Session) refreshOnce(ctx context.Context) (bool, int, error) {
	s.mu.RLock()
	activeID := s.activeID
	gen := s.gen
	s.mu.RUnlock()

	conversations, err := s.store.ConversationsForUser(ctx, s.userID, s.role)
	if err != nil {
		return false, 0, fmt.Errorf("load conversations: %w", err)
	}

	var activeMessages []models.Message
	if activeID != "" {
		idx := indexOf(conversations, activeID)
		if idx >= 0 && conversations[idx].Unread.For(s.role) > 0 {
			if err := s.store.MarkConversationRead(ctx, activeID, s.role); err != nil {
				return false, 0, fmt.Errorf("mark conversation read: %w", err)
			}
			conversations[idx].Unread.Reset(s.role)
		}
		activeMessages, err = s.store.Messages(ctx, activeID)
		if err != nil {
			return false, 0, fmt.Errorf("load messages: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false, 0, nil
	}
	s.conversations = conversations
	if activeID != "" {
		s.messages[activeID] = activeMessages
	}
	return true, len(conversations), nil
}

// Conversations returns a copy of the current conversation list, most
// recently active first.
func (s *Session) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Conversation, len(s.conversations))
	copy(result, s.conversations)
	return result
}

// ActiveConversation returns the open conversation, if any.
func (s *Session) ActiveConversation() (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return models.Conversation{}, false
	}
	idx := indexOf(s.conversations, s.activeID)
	if idx < 0 {
		return models.Conversation{}, false
	}
	return s.conversations[idx], true
}

// Messages returns a copy of the locally known messages of a conversation.
func (s *Session) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sequence := s.messages[conversationID]
	result := make([]models.Message, len(sequence))
	copy(result, sequence)
	return result
}

// Updates signals that local state changed. Signals coalesce; readers should
// re-read state after each receive.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// OpenConversation loads the conversation's messages, marks it read for the
// session's role and makes it the active conversation.
func (s *Session) OpenConversation(ctx context.Context, conversationID string) error {
	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conversation.ParticipantID(s.role) != s.userID {
		return ErrNotParticipant
	}
	if err := s.store.MarkConversationRead(ctx, conversationID, s.role); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	messages, err := s.store.Messages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	conversation.Unread.Reset(s.role)

	s.mu.Lock()
	s.gen++
	s.activeID = conversationID
	s.messages[conversationID] = messages
	if idx := indexOf(s.conversations, conversationID); idx >= 0 {
		s.conversations[idx].Unread.Reset(s.role)
	} else {
		s.conversations = append(s.conversations, *conversation)
		sortByActivity(s.conversations)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Session) CloseConversation() {
	s.mu.Lock()
	s.gen++
	s.activeID = ""
	s.mu.Unlock()
	s.notify()
}

// SendMessage stores the message and appends it to local state right away,
// without waiting for the next refresh. Only the conversation's participant
// for the session's role may send.
func (s *Session) SendMessage(ctx context.Context, conversationID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.ParticipantID(s.role) != s.userID {
		return nil, ErrNotParticipant
	}

	message, err := s.store.SaveMessage(ctx, conversationID, models.NewMessage{
		SenderID:   s.userID,
		SenderRole: s.role,
		Text:       text,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.gen++
	s.messages[conversationID] = appendMessage(s.messages[conversationID], *message)
	if idx := indexOf(s.conversations, conversationID); idx >= 0 {
		at := message.CreatedAt
		s.conversations[idx].LastMessage = message.Text
		s.conversations[idx].LastMessageTime = &at
		sortByActivity(s.conversations)
	}
	s.mu.Unlock()

	s.notify()
	return message, nil
}

// CreateConversation creates or finds the conversation for the triple and
// merges it into the local list.
func (s *Session) CreateConversation(ctx context.Context, input chatstore.CreateConversationInput) (*models.Conversation, error) {
	conversation, err := s.store.CreateConversation(ctx, input)
	if err != nil {
		return nil, err
	}

	if conversation.ParticipantID(s.role) == s.userID {
		s.mu.Lock()
		s.gen++
		if idx := indexOf(s.conversations, conversation.ID); idx >= 0 {
			s.conversations[idx] = *conversation
		} else {
			s.conversations = append(s.conversations, *conversation)
		}
		sortByActivity(s.conversations)
		s.mu.Unlock()
		s.notify()
	}
	return conversation, nil
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// appendMessage adds message keeping the sequence ordered by time and free of
// duplicate ids.
func appendMessage(sequence []models.Message, message models.Message) []models.Message {
	for _, existing := range sequence {
		if existing.ID == message.ID {
			return sequence
		}
	}
	pos := sort.Search(len(sequence), func(i int) bool {
		return sequence[i].CreatedAt.After(message.CreatedAt)
	})
	sequence = append(sequence, models.Message{})
	copy(sequence[pos+1:], sequence[pos:])
	sequence[pos] = message
	return sequence
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
