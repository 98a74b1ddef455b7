package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/repository"
	"github.com/voluntrack/voluntrack/internal/services"
)

type eventApplicationService interface {
	List(ctx context.Context, query services.EventQuery) ([]models.Event, int, error)
	Get(ctx context.Context, id int64) (*models.Event, error)
	Create(ctx context.Context, actorID int64, role models.Role, input services.EventInput) (*models.Event, error)
	Update(ctx context.Context, actorID int64, role models.Role, id int64, input services.EventInput) (*models.Event, error)
	Volunteers(ctx context.Context, actorID int64, role models.Role, eventID int64) ([]models.EventVolunteer, error)
	OrganizerEvents(ctx context.Context, organizerID int64) ([]models.Event, error)
	VolunteerRegistrations(ctx context.Context, actorID int64, role models.Role, email string) ([]models.RegistrationDetail, error)
	Register(ctx context.Context, actorID int64, role models.Role, eventID int64) (*models.Registration, error)
	CompleteRegistration(ctx context.Context, actorID int64, role models.Role, eventID, volunteerID int64) (*models.Registration, error)
}

type EventHandler struct {
	service eventApplicationService
}

func NewEventHandler(service eventApplicationService) *EventHandler {
	return &EventHandler{service: service}
}

type eventRequest struct {
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description"`
	Location         string `json:"location"`
	Category         string `json:"category"`
	StartDate        string `json:"start_date" validate:"required"`
	EndDate          string `json:"end_date" validate:"required"`
	VolunteersNeeded int    `json:"volunteers_needed" validate:"gte=0"`
}

var eventDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseEventDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range eventDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func (r eventRequest) toInput() (services.EventInput, string) {
	start, ok := parseEventDate(r.StartDate)
	if !ok {
		return services.EventInput{}, "start_date must be a valid date"
	}
	end, ok := parseEventDate(r.EndDate)
	if !ok {
		return services.EventInput{}, "end_date must be a valid date"
	}
	if end.Before(start) {
		return services.EventInput{}, "end_date must not be before start_date"
	}
	return services.EventInput{
		Title:            r.Title,
		Description:      r.Description,
		Location:         r.Location,
		Category:         r.Category,
		StartDate:        start,
		EndDate:          end,
		VolunteersNeeded: r.VolunteersNeeded,
	}, ""
}

func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	page, limit := pageParams(c.Query("page"), c.Query("limit"))
	sort := repository.EventSort(strings.ToLower(strings.TrimSpace(c.Query("sort"))))
	if sort != "" && sort != repository.EventSortDate && sort != repository.EventSortTitle {
		return fail(c, fiber.StatusBadRequest, "sort must be one of: date title")
	}

	events, total, err := h.service.List(c.Context(), services.EventQuery{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
		Upcoming: c.QueryBool("upcoming", false),
		Sort:     sort,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return mapEventError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"events":     events,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid event id")
	}
	event, err := h.service.Get(c.Context(), id)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"event": event})
}

func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}
	input, msg := req.toInput()
	if msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	event, err := h.service.Create(c.Context(), current.ID, current.Role, input)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusCreated, fiber.Map{"event": event})
}

func (h *EventHandler) UpdateEvent(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid event id")
	}

	var req eventRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if msg := validationMessage(req); msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}
	input, msg := req.toInput()
	if msg != "" {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	event, err := h.service.Update(c.Context(), current.ID, current.Role, id, input)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"event": event})
}

func (h *EventHandler) EventVolunteers(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid event id")
	}

	volunteers, err := h.service.Volunteers(c.Context(), current.ID, current.Role, id)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"volunteers": volunteers})
}

func (h *EventHandler) OrganizerEvents(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid organizer id")
	}
	events, err := h.service.OrganizerEvents(c.Context(), id)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"events": events})
}

func (h *EventHandler) VolunteerRegistrations(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	email := strings.TrimSpace(c.Params("email"))
	if email == "" {
		return fail(c, fiber.StatusBadRequest, "email is required")
	}

	registrations, err := h.service.VolunteerRegistrations(c.Context(), current.ID, current.Role, email)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"registrations": registrations})
}

func (h *EventHandler) Register(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid event id")
	}

	registration, err := h.service.Register(c.Context(), current.ID, current.Role, id)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusCreated, fiber.Map{"registration": registration})
}

func (h *EventHandler) CompleteRegistration(c *fiber.Ctx) error {
	current, err := currentActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid event id")
	}
	volunteerID, ok := parseIDParam(c, "volunteerId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid volunteer id")
	}

	registration, err := h.service.CompleteRegistration(c.Context(), current.ID, current.Role, eventID, volunteerID)
	if err != nil {
		return mapEventError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"registration": registration})
}

func mapEventError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, "Invalid event request")
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrConflict):
		return fail(c, fiber.StatusConflict, "Already registered for this event")
	case errors.Is(err, services.ErrEventFull):
		return fail(c, fiber.StatusConflict, "Event is full")
	default:
		return fail(c, fiber.StatusInternalServerError, "Failed to process event request")
	}
}
