package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/services"
)

type notificationApplicationService interface {
	List(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
}

type announcementApplicationService interface {
	Create(ctx context.Context, authorID int64, role models.Role, input services.AnnouncementInput) (*models.Announcement, error)
	List(ctx context.Context, role models.Role) ([]models.Announcement, error)
}

// NotificationHandler serves per-user notifications and broadcast
// announcements.
type NotificationHandler struct {
	notifications notificationApplicationService
	announcements announcementApplicationService
}

func NewNotificationHandler(notifications notificationApplicationService, announcements announcementApplicationService) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		announcements: announcements,
	}
}

type announcementRequest struct {
	Title    string `json:"title" validate:"required"`
	Body     string `json:"body" validate:"required"`
	Audience string `json:"audience" validate:"omitempty,oneof=all volunteer organizer"`
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	notifications, err := h.notifications.List(c.Context(), current.ID)
	if err != nil {
		return mapNotificationError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"notifications": notifications})
}

func (h *NotificationHandler) MarkNotificationRead(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid notification id")
	}

	if err := h.notifications.MarkRead(c.Context(), current.ID, id); err != nil {
		return mapNotificationError(c, err)
	}
	return success(c, fiber.StatusOK, nil)
}

func (h *NotificationHandler) ListAnnouncements(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	announcements, err := h.announcements.List(c.Context(), current.Role)
	if err != nil {
		return mapNotificationError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"announcements": announcements})
}

func (h *NotificationHandler) CreateAnnouncement(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req announcementRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	announcement, err := h.announcements.Create(c.Context(), current.ID, current.Role, services.AnnouncementInput{
		Title:    req.Title,
		Body:     req.Body,
		Audience: models.Audience(req.Audience),
	})
	if err != nil {
		return mapNotificationError(c, err)
	}
	return success(c, fiber.StatusCreated, fiber.Map{"announcement": announcement})
}

func mapNotificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, "Invalid request")
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Notification not found")
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to process request")
	}
}
