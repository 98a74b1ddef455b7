package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/services"
)

type authApplicationService interface {
	Signup(ctx context.Context, input services.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string, role models.Role) (*models.User, string, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type AuthHandler struct {
	service authApplicationService
}

func NewAuthHandler(service authApplicationService) *AuthHandler {
	return &AuthHandler{service: service}
}

type signupRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	UserType string  `json:"userType" validate:"required,oneof=volunteer organizer"`
	Phone    *string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"userType" validate:"required,oneof=volunteer organizer admin"`
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	user, err := h.service.Signup(c.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.UserType),
		Phone:    req.Phone,
	})
	if err != nil {
		return mapAuthError(c, err)
	}

	return success(c, fiber.StatusCreated, fiber.Map{
		"user":    user.Public(),
		"message": "Signup successful. Your account is awaiting approval.",
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	user, token, err := h.service.Login(c.Context(), req.Email, req.Password, models.Role(req.UserType))
	if err != nil {
		return mapAuthError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"user":  user.Public(),
		"token": token,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	user, err := h.service.GetUser(c.Context(), current.ID)
	if err != nil {
		return mapAuthError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"user": user.Public()})
}

func mapAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, "Invalid signup details")
	case errors.Is(err, services.ErrConflict):
		return fail(c, fiber.StatusConflict, "Email already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrAccountPending):
		return fail(c, fiber.StatusForbidden, "Account pending approval")
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "User not found")
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to process request")
	}
}
