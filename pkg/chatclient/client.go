// Package chatclient speaks the voluntrack chat socket protocol.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
)

const (
	writeWait = 10 * time.Second

	eventJoin           = "join"
	eventSendMessage    = "send_message"
	eventTyping         = "typing"
	eventReceiveMessage = "receive_message"
	eventUserTyping     = "user_typing"
	eventError          = "error"
)

var ErrClosed = errors.New("chat connection closed")

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// IncomingMessage is a receive_message event.
type IncomingMessage struct {
	ConversationID string         `json:"conversation_id"`
	Message        models.Message `json:"message"`
}

// TypingEvent is a user_typing event.
type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

type Options struct {
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

type Client struct {
	conn   *websocket.Conn
	userID string
	log    zerolog.Logger

	writeMu sync.Mutex

	mu        sync.RWMutex
	onMessage func(IncomingMessage)
	onTyping  func(TypingEvent)
	onError   func(string)

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens the socket at rawURL, authenticating with token, and joins the
// user's room.
func Dial(ctx context.Context, rawURL, token, userID string, opts Options) (*Client, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	switch target.Scheme {
	case "http":
		target.Scheme = "ws"
	case "https":
		target.Scheme = "wss"
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial chat socket (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial chat socket: %w", err)
	}

	c := &Client{
		conn:   conn,
		userID: userID,
		log:    opts.Logger.With().Str("component", "chat-client").Str("user_id", userID).Logger(),
		closed: make(chan struct{}),
	}
	if err := c.emit(eventJoin, map[string]string{"user_id": userID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}
	return c, nil
}

func (c *Client) SendMessage(conversationID, text string) error {
	return c.emit(eventSendMessage, map[string]string{
		"conversation_id": conversationID,
		"text":            text,
	})
}

func (c *Client) SetTyping(conversationID, recipientID string, typing bool) error {
	return c.emit(eventTyping, map[string]any{
		"conversation_id": conversationID,
		"recipient_id":    recipientID,
		"typing":          typing,
	})
}

func (c *Client) OnMessage(fn func(IncomingMessage)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *Client) OnTyping(fn func(TypingEvent)) {
	c.mu.Lock()
	c.onTyping = fn
	c.mu.Unlock()
}

// OnError receives error events sent by the server.
func (c *Client) OnError(fn func(string)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Run reads events until ctx ends or the connection fails. It returns nil
// after Close.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read chat socket: %w", err)
		}
		c.dispatch(payload)
	}
}

func (c *Client) dispatch(payload []byte) {
	var incoming envelope
	if err := json.Unmarshal(payload, &incoming); err != nil {
		c.log.Warn().Err(err).Msg("ignoring malformed event")
		return
	}

	c.mu.RLock()
	onMessage, onTyping, onError := c.onMessage, c.onTyping, c.onError
	c.mu.RUnlock()

	switch incoming.Event {
	case eventReceiveMessage:
		var data IncomingMessage
		if err := json.Unmarshal(incoming.Data, &data); err == nil && onMessage != nil {
			onMessage(data)
		}
	case eventUserTyping:
		var data TypingEvent
		if err := json.Unmarshal(incoming.Data, &data); err == nil && onTyping != nil {
			onTyping(data)
		}
	case eventError:
		var data struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(incoming.Data, &data)
		c.log.Debug().Str("message", data.Message).Msg("server reported error")
		if onError != nil {
			onError(data.Message)
		}
	default:
		c.log.Debug().Str("event", incoming.Event).Msg("ignoring unknown event")
	}
}

func (c *Client) emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
