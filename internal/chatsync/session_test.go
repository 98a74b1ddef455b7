package chatsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/models"
)

var sessionEpoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type tab struct {
	store   *chatstore.KVStore
	session *Session
}

func openTab(t *testing.T, backend *chatstore.MemoryBackend, clock clockwork.Clock, userID string, role models.Role, opts Options) *tab {
	t.Helper()
	store := chatstore.NewKVStore(backend.Handle(), "test:chat", chatstore.WithClock(clock))
	opts.Clock = clock
	session, err := NewSession(store, userID, role, opts)
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))
	t.Cleanup(session.Stop)
	return &tab{store: store, session: session}
}

// pollOnlyWatcher hides the backend's change feed so only polling converges.
type pollOnlyWatcher struct{}

func (pollOnlyWatcher) Watch(context.Context) (<-chan string, error) {
	return nil, nil
}

func hasConversation(conversations []models.Conversation, id string) bool {
	for _, conversation := range conversations {
		if conversation.ID == id {
			return true
		}
	}
	return false
}

func TestNewSessionRejectsNonParticipants(t *testing.T) {
	_, err := NewSession(chatstore.NewKVStore(chatstore.NewMemoryKV(), ""), "a1", models.RoleAdmin, Options{})
	assert.ErrorIs(t, err, chatstore.ErrInvalidRole)

	_, err = NewSession(nil, "v1", models.RoleVolunteer, Options{})
	assert.Error(t, err)
}

func TestStartSeedsOnceAndLoadsConversations(t *testing.T) {
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()
	seed := chatstore.DefaultSeed(sessionEpoch)

	first := openTab(t, backend, clock, "v1", models.RoleVolunteer, Options{Seed: &seed})
	conversations := first.session.Conversations()
	require.Len(t, conversations, 2)
	assert.Equal(t, "conv_demo_beach", conversations[0].ID, "most recent activity first")

	created, err := first.session.CreateConversation(context.Background(), chatstore.CreateConversationInput{
		VolunteerID: "v1", OrganizerID: "org_789", EventID: "evt_3",
	})
	require.NoError(t, err)

	second := openTab(t, backend, clock, "v1", models.RoleVolunteer, Options{Seed: &seed})
	assert.Len(t, second.session.Conversations(), 3)
	assert.True(t, hasConversation(second.session.Conversations(), created.ID))
}

func TestSendMessageIsVisibleBeforeAnyPoll(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()
	volunteer := openTab(t, backend, clock, "v1", models.RoleVolunteer, Options{Watcher: pollOnlyWatcher{}})

	conversation, err := volunteer.session.CreateConversation(ctx, chatstore.CreateConversationInput{
		VolunteerID: "v1", OrganizerID: "org_123", EventID: "evt_9",
	})
	require.NoError(t, err)
	require.NoError(t, volunteer.session.OpenConversation(ctx, conversation.ID))

	sent, err := volunteer.session.SendMessage(ctx, conversation.ID, "Hi")
	require.NoError(t, err)

	messages := volunteer.session.Messages(conversation.ID)
	require.Len(t, messages, 1)
	assert.Equal(t, sent.ID, messages[0].ID)
	assert.Equal(t, "Hi", messages[0].Text)

	active, ok := volunteer.session.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, "Hi", active.LastMessage)
}

func TestSendMessageRejectsOutsiders(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()
	seed := chatstore.DefaultSeed(sessionEpoch)

	outsider := openTab(t, backend, clock, "v2", models.RoleVolunteer, Options{Seed: &seed, Watcher: pollOnlyWatcher{}})
	before, err := outsider.store.Messages(ctx, "conv_demo_beach")
	require.NoError(t, err)

	_, err = outsider.session.SendMessage(ctx, "conv_demo_beach", "let me in")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = outsider.session.SendMessage(ctx, "conv_missing", "hello")
	assert.ErrorIs(t, err, chatstore.ErrConversationNotFound)

	after, err := outsider.store.Messages(ctx, "conv_demo_beach")
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.Empty(t, outsider.session.Messages("conv_demo_beach"))
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	volunteer := openTab(t, chatstore.NewMemoryBackend(), clock, "v1", models.RoleVolunteer, Options{})

	_, err := volunteer.session.SendMessage(context.Background(), "conv_x", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestOtherTabConvergesOnNotification(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()

	volunteer := openTab(t, backend, clock, "v1", models.RoleVolunteer, Options{})
	organizer := openTab(t, backend, clock, "org_123", models.RoleOrganizer, Options{})

	conversation, err := volunteer.session.CreateConversation(ctx, chatstore.CreateConversationInput{
		VolunteerID: "v1", OrganizerID: "org_123", EventID: "evt_9",
	})
	require.NoError(t, err)
	_, err = volunteer.session.SendMessage(ctx, conversation.ID, "Hi")
	require.NoError(t, err)

	// no clock advance: the watch notification alone must deliver it
	require.Eventually(t, func() bool {
		for _, c := range organizer.session.Conversations() {
			if c.ID == conversation.ID && c.LastMessage == "Hi" && c.Unread.Organizer == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOtherTabConvergesWithinOnePollInterval(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()

	organizer := openTab(t, backend, clock, "org_123", models.RoleOrganizer, Options{Watcher: pollOnlyWatcher{}})
	writer := chatstore.NewKVStore(backend.Handle(), "test:chat", chatstore.WithClock(clock))

	conversation, err := writer.CreateConversation(ctx, chatstore.CreateConversationInput{
		VolunteerID: "v1", OrganizerID: "org_123", EventID: "evt_9",
	})
	require.NoError(t, err)
	assert.False(t, hasConversation(organizer.session.Conversations(), conversation.ID))

	clock.Advance(DefaultPollInterval)

	require.Eventually(t, func() bool {
		return hasConversation(organizer.session.Conversations(), conversation.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOpenConversationResetsOnlyTheOpenersCounter(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()
	seed := chatstore.DefaultSeed(sessionEpoch)

	organizer := openTab(t, backend, clock, "org_123", models.RoleOrganizer, Options{Seed: &seed, Watcher: pollOnlyWatcher{}})

	conversations := organizer.session.Conversations()
	require.Len(t, conversations, 1)
	require.Equal(t, 1, conversations[0].Unread.Organizer)

	require.NoError(t, organizer.session.OpenConversation(ctx, "conv_demo_beach"))

	active, ok := organizer.session.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, 0, active.Unread.Organizer)

	stored, err := organizer.store.GetConversation(ctx, "conv_demo_beach")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Unread.Organizer)
	assert.Equal(t, 0, stored.Unread.Volunteer)

	for _, message := range organizer.session.Messages("conv_demo_beach") {
		if message.SenderRole == models.RoleVolunteer {
			assert.True(t, message.Read)
		}
	}
}

func TestOpenConversationRejectsOutsiders(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()
	seed := chatstore.DefaultSeed(sessionEpoch)

	outsider := openTab(t, backend, clock, "org_999", models.RoleOrganizer, Options{Seed: &seed})
	assert.ErrorIs(t, outsider.session.OpenConversation(ctx, "conv_demo_beach"), ErrNotParticipant)
	assert.ErrorIs(t, outsider.session.OpenConversation(ctx, "conv_missing"), chatstore.ErrConversationNotFound)
}

func TestMessagesArrivingInOpenConversationAreMarkedRead(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()

	organizer := openTab(t, backend, clock, "org_123", models.RoleOrganizer, Options{})
	writer := chatstore.NewKVStore(backend.Handle(), "test:chat", chatstore.WithClock(clock))

	conversation, err := writer.CreateConversation(ctx, chatstore.CreateConversationInput{VolunteerID: "v1", OrganizerID: "org_123"})
	require.NoError(t, err)
	require.NoError(t, organizer.session.Refresh(ctx, TriggerManual))
	require.NoError(t, organizer.session.OpenConversation(ctx, conversation.ID))

	_, err = writer.SaveMessage(ctx, conversation.ID, models.NewMessage{SenderID: "v1", SenderRole: models.RoleVolunteer, Text: "On my way"})
	require.NoError(t, err)
	require.NoError(t, organizer.session.Refresh(ctx, TriggerManual))

	messages := organizer.session.Messages(conversation.ID)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read)

	stored, err := writer.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Unread.Organizer)
}

func TestCloseConversationStopsMarkingRead(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	backend := chatstore.NewMemoryBackend()

	organizer := openTab(t, backend, clock, "org_123", models.RoleOrganizer, Options{Watcher: pollOnlyWatcher{}})
	writer := chatstore.NewKVStore(backend.Handle(), "test:chat", chatstore.WithClock(clock))

	conversation, err := writer.CreateConversation(ctx, chatstore.CreateConversationInput{VolunteerID: "v1", OrganizerID: "org_123"})
	require.NoError(t, err)
	require.NoError(t, organizer.session.OpenConversation(ctx, conversation.ID))
	organizer.session.CloseConversation()

	_, ok := organizer.session.ActiveConversation()
	assert.False(t, ok)

	_, err = writer.SaveMessage(ctx, conversation.ID, models.NewMessage{SenderID: "v1", SenderRole: models.RoleVolunteer, Text: "Hello?"})
	require.NoError(t, err)
	require.NoError(t, organizer.session.Refresh(ctx, TriggerManual))

	stored, err := writer.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Unread.Organizer)
}

func TestUpdatesSignalCoalesces(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	volunteer := openTab(t, chatstore.NewMemoryBackend(), clock, "v1", models.RoleVolunteer, Options{Watcher: pollOnlyWatcher{}})

	require.NoError(t, volunteer.session.Refresh(ctx, TriggerManual))
	require.NoError(t, volunteer.session.Refresh(ctx, TriggerManual))

	select {
	case <-volunteer.session.Updates():
	default:
		t.Fatal("expected a pending update signal")
	}
	select {
	case <-volunteer.session.Updates():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestStopEndsLoopAndIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	store := chatstore.NewKVStore(chatstore.NewMemoryKV(), "test:chat", chatstore.WithClock(clock))
	session, err := NewSession(store, "v1", models.RoleVolunteer, Options{Clock: clock})
	require.NoError(t, err)

	session.Stop()

	session, err = NewSession(store, "v1", models.RoleVolunteer, Options{Clock: clock})
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		session.Stop()
		session.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestAppendMessageKeepsOrderAndDropsDuplicates(t *testing.T) {
	m1 := models.Message{ID: "msg_1", CreatedAt: sessionEpoch}
	m2 := models.Message{ID: "msg_2", CreatedAt: sessionEpoch.Add(time.Second)}
	m3 := models.Message{ID: "msg_3", CreatedAt: sessionEpoch.Add(2 * time.Second)}

	sequence := appendMessage(nil, m1)
	sequence = appendMessage(sequence, m3)
	sequence = appendMessage(sequence, m2)
	sequence = appendMessage(sequence, m3)

	require.Len(t, sequence, 3)
	assert.Equal(t, []string{"msg_1", "msg_2", "msg_3"}, []string{sequence[0].ID, sequence[1].ID, sequence[2].ID})
}

// pausingStore blocks the first call to one method after it has read the
// store, until release is closed.
type pausingStore struct {
	chatstore.Store

	method  string
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func newPausingStore(store chatstore.Store, method string) *pausingStore {
	return &pausingStore{
		Store:   store,
		method:  method,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *pausingStore) pause(method string) {
	if method != p.method {
		return
	}
	p.once.Do(func() {
		close(p.reached)
		<-p.release
	})
}

func (p *pausingStore) ConversationsForUser(ctx context.Context, userID string, role models.Role) ([]models.Conversation, error) {
	conversations, err := p.Store.ConversationsForUser(ctx, userID, role)
	p.pause("ConversationsForUser")
	return conversations, err
}

func (p *pausingStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	messages, err := p.Store.Messages(ctx, conversationID)
	p.pause("Messages")
	return messages, err
}

func refreshInBackground(ctx context.Context, session *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- session.Refresh(ctx, TriggerPoll) }()
	return done
}

func TestRefreshKeepsMessageSentWhileReading(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	store := chatstore.NewKVStore(chatstore.NewMemoryKV(), "test:chat", chatstore.WithClock(clock))

	conversation, err := store.CreateConversation(ctx, chatstore.CreateConversationInput{VolunteerID: "v1", OrganizerID: "org_123"})
	require.NoError(t, err)

	paused := newPausingStore(store, "")
	session, err := NewSession(paused, "v1", models.RoleVolunteer, Options{Clock: clock})
	require.NoError(t, err)
	require.NoError(t, session.OpenConversation(ctx, conversation.ID))

	paused.method = "Messages"
	done := refreshInBackground(ctx, session)
	<-paused.reached

	sent, err := session.SendMessage(ctx, conversation.ID, "Hi")
	require.NoError(t, err)
	close(paused.release)
	require.NoError(t, <-done)

	messages := session.Messages(conversation.ID)
	require.Len(t, messages, 1)
	assert.Equal(t, sent.ID, messages[0].ID)

	active, ok := session.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, "Hi", active.LastMessage)
}

func TestRefreshKeepsConversationOpenedWhileReading(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(sessionEpoch)
	store := chatstore.NewKVStore(chatstore.NewMemoryKV(), "test:chat", chatstore.WithClock(clock))

	conversation, err := store.CreateConversation(ctx, chatstore.CreateConversationInput{VolunteerID: "v1", OrganizerID: "org_123"})
	require.NoError(t, err)
	_, err = store.SaveMessage(ctx, conversation.ID, models.NewMessage{SenderID: "org_123", SenderRole: models.RoleOrganizer, Text: "Welcome"})
	require.NoError(t, err)

	paused := newPausingStore(store, "ConversationsForUser")
	session, err := NewSession(paused, "v1", models.RoleVolunteer, Options{Clock: clock})
	require.NoError(t, err)

	done := refreshInBackground(ctx, session)
	<-paused.reached

	require.NoError(t, session.OpenConversation(ctx, conversation.ID))
	close(paused.release)
	require.NoError(t, <-done)

	active, ok := session.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, 0, active.Unread.Volunteer)
	require.Len(t, session.Messages(conversation.ID), 1)
}
