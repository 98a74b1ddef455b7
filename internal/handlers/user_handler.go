package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/services"
)

type moderationApplicationService interface {
	ListPending(ctx context.Context, actorRole models.Role) ([]models.User, error)
	Approve(ctx context.Context, actorRole models.Role, role models.Role, userID int64) (*models.User, error)
	Reject(ctx context.Context, actorRole models.Role, role models.Role, userID int64) error
}

// UserHandler serves the admin approval queue.
type UserHandler struct {
	service moderationApplicationService
}

func NewUserHandler(service moderationApplicationService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) ListPending(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	users, err := h.service.ListPending(c.Context(), current.Role)
	if err != nil {
		return mapModerationError(c, err)
	}
	public := make([]models.PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}
	return success(c, fiber.StatusOK, fiber.Map{"users": public})
}

func (h *UserHandler) Approve(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	role, userID, ok := parseModerationTarget(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user type or id")
	}

	user, err := h.service.Approve(c.Context(), current.Role, role, userID)
	if err != nil {
		return mapModerationError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"user": user.Public()})
}

func (h *UserHandler) Reject(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	role, userID, ok := parseModerationTarget(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user type or id")
	}

	if err := h.service.Reject(c.Context(), current.Role, role, userID); err != nil {
		return mapModerationError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "User rejected"})
}

func parseModerationTarget(c *fiber.Ctx) (models.Role, int64, bool) {
	role := models.Role(c.Params("type"))
	if !role.IsChatParticipant() {
		return "", 0, false
	}
	id, ok := parseIDParam(c, "id")
	return role, id, ok
}

func mapModerationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, "Invalid request")
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Pending user not found")
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to process request")
	}
}
