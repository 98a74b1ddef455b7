// Package chatws relays chat events between websocket clients. Clients join
// rooms named after user ids; events addressed to a user go to every
// connection in that user's room.
package chatws

import (
	"context"
	"encoding/json"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/metrics"
	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/services"
)

const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
	EventError          = "error"

	sendBufferSize = 32
	sendTimeout    = 10 * time.Second
)

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID string,
		role models.Role,
		conversationID string,
		text string,
	) (*services.ChatDelivery, error)
}

// Envelope is the wire shape of every socket event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinData struct {
	UserID string `json:"user_id"`
}

type SendMessageData struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type TypingData struct {
	ConversationID string `json:"conversation_id"`
	RecipientID    string `json:"recipient_id"`
	Typing         bool   `json:"typing"`
}

type ReceiveMessageData struct {
	ConversationID string         `json:"conversation_id"`
	Message        models.Message `json:"message"`
}

type UserTypingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type roomMessage struct {
	rooms   []string
	payload []byte
}

type joinRequest struct {
	client *Client
	room   string
}

type directMessage struct {
	client  *Client
	payload []byte
}

type roomQuery struct {
	room  string
	reply chan int
}

type Hub struct {
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	broadcast  chan roomMessage
	direct     chan directMessage
	query      chan roomQuery
	done       chan struct{}

	log zerolog.Logger
}

type Client struct {
	hub    *Hub
	conn   Conn
	userID string
	role   models.Role
	send   chan []byte
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		join:        make(chan joinRequest),
		broadcast:   make(chan roomMessage, 64),
		direct:      make(chan directMessage, 16),
		query:       make(chan roomQuery),
		done:        make(chan struct{}),
		log:         log.With().Str("component", "chat-hub").Logger(),
	}
}

func NewClient(hub *Hub, conn Conn, userID string, role models.Role) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Run owns the room state until ctx ends. On exit every client's send
// channel is closed so their write pumps return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.memberships {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.memberships[client] = make(map[string]struct{})
			metrics.RecordSocketOpened()
		case client := <-h.unregister:
			h.drop(client)
		case req := <-h.join:
			rooms, ok := h.memberships[req.client]
			if !ok {
				continue
			}
			members, ok := h.rooms[req.room]
			if !ok {
				members = make(map[*Client]struct{})
				h.rooms[req.room] = members
			}
			members[req.client] = struct{}{}
			rooms[req.room] = struct{}{}
		case message := <-h.broadcast:
			h.deliver(message)
		case message := <-h.direct:
			if _, ok := h.memberships[message.client]; ok {
				select {
				case message.client.send <- message.payload:
				default:
				}
			}
		case q := <-h.query:
			q.reply <- len(h.rooms[q.room])
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Join adds the client to room.
func (h *Hub) Join(client *Client, room string) {
	select {
	case h.join <- joinRequest{client: client, room: room}:
	case <-h.done:
	}
}

// Emit sends an event to every connection in the given rooms. A connection
// in several of the rooms receives it once.
func (h *Hub) Emit(event string, data any, rooms ...string) error {
	payload, err := encodeEnvelope(event, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- roomMessage{rooms: rooms, payload: payload}:
	case <-h.done:
	}
	return nil
}

// RoomSize returns the number of connections in room, or 0 once the hub
// has stopped.
func (h *Hub) RoomSize(room string) int {
	reply := make(chan int, 1)
	select {
	case h.query <- roomQuery{room: room, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) drop(client *Client) {
	rooms, ok := h.memberships[client]
	if !ok {
		return
	}
	for room := range rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.memberships, client)
	close(client.send)
	metrics.RecordSocketClosed()
}

func (h *Hub) deliver(message roomMessage) {
	seen := make(map[*Client]struct{})
	for _, room := range message.rooms {
		for client := range h.rooms[room] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			select {
			case client.send <- message.payload:
			default:
				h.log.Warn().Str("user_id", client.userID).Msg("dropping slow socket client")
				h.drop(client)
			}
		}
	}
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ReadPump handles client events until the connection fails.
func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming Envelope
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeError("invalid event payload")
			continue
		}
		switch incoming.Event {
		case EventJoin, EventSendMessage, EventTyping:
			metrics.SocketEvents.WithLabelValues(incoming.Event).Inc()
		default:
			metrics.SocketEvents.WithLabelValues("unknown").Inc()
		}

		switch incoming.Event {
		case EventJoin:
			c.handleJoin(incoming.Data)
		case EventSendMessage:
			c.handleSendMessage(service, incoming.Data)
		case EventTyping:
			c.handleTyping(incoming.Data)
		default:
			c.writeError("unsupported event")
		}
	}
}

func (c *Client) handleJoin(raw json.RawMessage) {
	var data JoinData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		c.writeError("invalid join payload")
		return
	}
	if data.UserID != c.userID {
		c.writeError("cannot join another user's room")
		return
	}
	c.hub.Join(c, data.UserID)
}

func (c *Client) handleSendMessage(service sender, raw json.RawMessage) {
	var data SendMessageData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		c.writeError("invalid send_message payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	delivery, err := service.SendMessage(ctx, c.userID, c.role, data.ConversationID, data.Text)
	if err != nil {
		c.hub.log.Debug().Err(err).Str("user_id", c.userID).Msg("socket send_message rejected")
		c.writeError("failed to send message")
		return
	}

	err = c.hub.Emit(EventReceiveMessage, ReceiveMessageData{
		ConversationID: delivery.Message.ConversationID,
		Message:        *delivery.Message,
	}, delivery.RecipientID, c.userID)
	if err != nil {
		c.hub.log.Error().Err(err).Msg("failed to encode receive_message")
	}
}

func (c *Client) handleTyping(raw json.RawMessage) {
	var data TypingData
	if err := json.Unmarshal(raw, &data); err != nil || data.RecipientID == "" {
		c.writeError("invalid typing payload")
		return
	}
	_ = c.hub.Emit(EventUserTyping, UserTypingData{
		ConversationID: data.ConversationID,
		UserID:         c.userID,
		Typing:         data.Typing,
	}, data.RecipientID)
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// writeError queues an error event for this client only. A client whose
// buffer is full misses the error.
func (c *Client) writeError(message string) {
	payload, err := encodeEnvelope(EventError, ErrorData{Message: message})
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, payload: payload}:
	case <-c.hub.done:
	}
}
