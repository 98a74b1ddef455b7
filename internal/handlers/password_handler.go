package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/services"
)

type passwordResetApplicationService interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type PasswordHandler struct {
	service passwordResetApplicationService
}

func NewPasswordHandler(service passwordResetApplicationService) *PasswordHandler {
	return &PasswordHandler{service: service}
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *PasswordHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	if err := h.service.SendOTP(c.Context(), req.Email); err != nil {
		return mapPasswordError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"message": "If the email is registered, a verification code has been sent.",
	})
}

func (h *PasswordHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	if err := h.service.VerifyOTP(c.Context(), req.Email, req.OTP); err != nil {
		return mapPasswordError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "Code verified"})
}

func (h *PasswordHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	if err := h.service.ResetPassword(c.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		return mapPasswordError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "Password has been reset"})
}

func mapPasswordError(c *fiber.Ctx, err error) error {
	var mismatch *services.OTPMismatchError
	switch {
	case errors.As(err, &mismatch):
		return fail(c, fiber.StatusBadRequest, "Invalid code", fiber.Map{"remaining_attempts": mismatch.Remaining})
	case errors.Is(err, services.ErrOTPAttemptsExceeded):
		return fail(c, fiber.StatusTooManyRequests, "Too many attempts. Request a new code.")
	case errors.Is(err, services.ErrOTPExpired):
		return fail(c, fiber.StatusGone, "Code has expired. Request a new code.")
	case errors.Is(err, services.ErrOTPInvalid):
		return fail(c, fiber.StatusBadRequest, "Invalid or unverified code")
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, "Invalid request")
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to process password reset")
	}
}
