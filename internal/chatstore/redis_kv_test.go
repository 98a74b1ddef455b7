package chatstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluntrack/voluntrack/internal/models"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisKVGetSet(t *testing.T) {
	ctx := context.Background()
	kv := NewRedisKV(newTestRedisClient(t), "test:chat", zerolog.Nop())

	_, ok, err := kv.Get(ctx, "test:chat:conversations")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "test:chat:conversations", "[]"))
	value, ok, err := kv.Get(ctx, "test:chat:conversations")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", value)
}

func TestRedisKVWatchSkipsOwnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newTestRedisClient(t)
	writer := NewRedisKV(client, "test:chat", zerolog.Nop())
	reader := NewRedisKV(client, "test:chat", zerolog.Nop())

	writerWatch, err := writer.Watch(ctx)
	require.NoError(t, err)
	readerWatch, err := reader.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, "test:chat:messages", "{}"))

	select {
	case key := <-readerWatch:
		assert.Equal(t, "test:chat:messages", key)
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notice on the other instance")
	}

	select {
	case key := <-writerWatch:
		t.Fatalf("writer received its own change notice %q", key)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKVStoreOverRedisSharesStateBetweenInstances(t *testing.T) {
	ctx := context.Background()
	client := newTestRedisClient(t)
	clock := clockwork.NewFakeClockAt(storeEpoch)

	volunteerSide := NewKVStore(NewRedisKV(client, "test:chat", zerolog.Nop()), "test:chat", WithClock(clock))
	organizerSide := NewKVStore(NewRedisKV(client, "test:chat", zerolog.Nop()), "test:chat", WithClock(clock))

	conversation, err := volunteerSide.CreateConversation(ctx, CreateConversationInput{VolunteerID: "v1", OrganizerID: "org_123", EventID: "evt_9"})
	require.NoError(t, err)
	_, err = volunteerSide.SaveMessage(ctx, conversation.ID, models.NewMessage{SenderID: "v1", SenderRole: models.RoleVolunteer, Text: "Hi"})
	require.NoError(t, err)

	conversations, err := organizerSide.ConversationsForUser(ctx, "org_123", models.RoleOrganizer)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 1, conversations[0].Unread.Organizer)

	again, err := organizerSide.CreateConversation(ctx, CreateConversationInput{VolunteerID: "v1", OrganizerID: "org_123", EventID: "evt_9"})
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, again.ID)
}
