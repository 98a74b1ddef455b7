package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/services"
	chatws "github.com/voluntrack/voluntrack/internal/websocket"
	"github.com/voluntrack/voluntrack/pkg/utils"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID string, role models.Role) ([]models.Conversation, error)
	ConversationsForUser(ctx context.Context, actorID string, role models.Role, targetID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, actorID string, role models.Role, input services.CreateConversationInput) (*models.Conversation, error)
	Messages(ctx context.Context, actorID string, role models.Role, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, actorID string, role models.Role, conversationID string) error
	SendMessage(ctx context.Context, actorID string, role models.Role, conversationID string, text string) (*services.ChatDelivery, error)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	jwtSecret string
}

// flexibleID accepts an id sent either as a JSON string or a JSON number.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*id = flexibleID(strings.TrimSpace(text))
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*id = flexibleID(number.String())
	return nil
}

type createConversationRequest struct {
	VolunteerID flexibleID `json:"volunteer_id" validate:"required"`
	OrganizerID flexibleID `json:"organizer_id" validate:"required"`
	EventID     flexibleID `json:"event_id"`
}

type markReadRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	conversations, err := h.service.ListConversations(c.Context(), current.UserID, current.Role)
	if err != nil {
		return mapChatError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) ConversationsForUser(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	targetID := strings.TrimSpace(c.Params("userId"))
	if _, err := strconv.ParseInt(targetID, 10, 64); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}

	conversations, err := h.service.ConversationsForUser(c.Context(), current.UserID, current.Role, targetID)
	if err != nil {
		return mapChatError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	conversation, err := h.service.CreateConversation(c.Context(), current.UserID, current.Role, services.CreateConversationInput{
		VolunteerID: string(req.VolunteerID),
		OrganizerID: string(req.OrganizerID),
		EventID:     string(req.EventID),
	})
	if err != nil {
		return mapChatError(c, err)
	}
	return success(c, fiber.StatusCreated, fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	conversationID := strings.TrimSpace(c.Params("conversationId"))
	if conversationID == "" {
		return fail(c, fiber.StatusBadRequest, "Invalid conversation id")
	}

	messages, err := h.service.Messages(c.Context(), current.UserID, current.Role, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"messages": messages})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	if err := h.service.MarkRead(c.Context(), current.UserID, current.Role, req.ConversationID); err != nil {
		return mapChatError(c, err)
	}
	return success(c, fiber.StatusOK, nil)
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fail(c, fiber.StatusUpgradeRequired, "WebSocket upgrade required")
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	client := chatws.NewClient(h.hub, conn, userID, models.Role(role))

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, "Invalid request")
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Conversation not found")
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to process chat request")
	}
}
