package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errInvalidActor = errors.New("invalid actor")

// success writes {"success": true, ...payload}.
func success(c *fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for key, value := range payload {
		body[key] = value
	}
	return c.Status(status).JSON(body)
}

// fail writes {"success": false, "error": message, ...extra}.
func fail(c *fiber.Ctx, status int, message string, extra ...fiber.Map) error {
	body := fiber.Map{"success": false, "error": message}
	for _, fields := range extra {
		for key, value := range fields {
			body[key] = value
		}
	}
	return c.Status(status).JSON(body)
}

// actor is the authenticated caller. UserID is ID in the string form the
// chat layer keys participants by.
type actor struct {
	ID     int64
	UserID string
	Role   models.Role
}

// currentActor reads the identity AuthRequired stored on the request.
func currentActor(c *fiber.Ctx) (actor, error) {
	userID, ok := c.Locals("user_id").(string)
	if !ok {
		return actor{}, errInvalidActor
	}
	role, ok := c.Locals("role").(string)
	if !ok || !models.Role(role).IsValid() {
		return actor{}, errInvalidActor
	}
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		return actor{}, errInvalidActor
	}
	return actor{ID: id, UserID: userID, Role: models.Role(role)}, nil
}

func parsePositiveInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// validationMessage returns a readable message for the first failed
// validation rule, or "" when req is valid.
func validationMessage(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "Invalid request"
	}

	field := validationErrors[0]
	name := field.Field()
	switch field.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email"
	case "min":
		return name + " must be at least " + field.Param() + " characters"
	case "oneof":
		return name + " must be one of: " + field.Param()
	case "len":
		return name + " must be " + field.Param() + " characters"
	case "numeric":
		return name + " must be numeric"
	case "gte":
		return name + " must be at least " + field.Param()
	default:
		return name + " is invalid"
	}
}
