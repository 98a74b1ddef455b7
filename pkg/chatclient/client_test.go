package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer records every event it receives and answers a send_message with
// a receive_message and a user_typing event.
type echoServer struct {
	mu     sync.Mutex
	events []envelope
	token  string
}

func (s *echoServer) received() []envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]envelope, len(s.events))
	copy(out, s.events)
	return out
}

func (s *echoServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.token = r.URL.Query().Get("token")
	s.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var incoming envelope
		if err := json.Unmarshal(payload, &incoming); err != nil {
			return
		}
		s.mu.Lock()
		s.events = append(s.events, incoming)
		s.mu.Unlock()

		if incoming.Event != eventSendMessage {
			continue
		}
		var data map[string]string
		_ = json.Unmarshal(incoming.Data, &data)
		_ = conn.WriteJSON(map[string]any{
			"event": eventReceiveMessage,
			"data": map[string]any{
				"conversation_id": data["conversation_id"],
				"message": map[string]any{
					"id":              "msg_1",
					"conversation_id": data["conversation_id"],
					"sender_id":       "v1",
					"sender_role":     "volunteer",
					"text":            data["text"],
				},
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"event": eventUserTyping,
			"data":  map[string]any{"conversation_id": data["conversation_id"], "user_id": "org_123", "typing": true},
		})
	}
}

func dialTestServer(t *testing.T) (*Client, *echoServer) {
	t.Helper()
	srv := &echoServer{}
	server := httptest.NewServer(http.HandlerFunc(srv.handle))
	t.Cleanup(server.Close)

	url := strings.Replace(server.URL, "http://", "ws://", 1) + "/socket"
	client, err := Dial(context.Background(), url, "tok-1", "v1", Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestDialJoinsUserRoom(t *testing.T) {
	_, srv := dialTestServer(t)

	require.Eventually(t, func() bool { return len(srv.received()) == 1 }, time.Second, 10*time.Millisecond)
	join := srv.received()[0]
	assert.Equal(t, eventJoin, join.Event)
	assert.JSONEq(t, `{"user_id":"v1"}`, string(join.Data))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "tok-1", srv.token)
}

func TestRunDispatchesIncomingEvents(t *testing.T) {
	client, srv := dialTestServer(t)

	messages := make(chan IncomingMessage, 1)
	typing := make(chan TypingEvent, 1)
	client.OnMessage(func(m IncomingMessage) { messages <- m })
	client.OnTyping(func(e TypingEvent) { typing <- e })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.NoError(t, client.SendMessage("conv_1", "Hi"))
	require.NoError(t, client.SetTyping("conv_1", "org_123", false))

	select {
	case m := <-messages:
		assert.Equal(t, "conv_1", m.ConversationID)
		assert.Equal(t, "Hi", m.Message.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("receive_message not dispatched")
	}
	select {
	case e := <-typing:
		assert.Equal(t, "org_123", e.UserID)
		assert.True(t, e.Typing)
	case <-time.After(2 * time.Second):
		t.Fatal("user_typing not dispatched")
	}

	require.Eventually(t, func() bool { return len(srv.received()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, eventTyping, srv.received()[2].Event)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.ErrorIs(t, client.SendMessage("conv_1", "late"), ErrClosed)
}
