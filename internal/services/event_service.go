package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/repository"
)

type eventStore interface {
	List(ctx context.Context, filter repository.EventListFilter) ([]models.Event, int, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	Create(ctx context.Context, organizerID int64, input repository.EventInput) (*models.Event, error)
	Update(ctx context.Context, id int64, input repository.EventInput) (*models.Event, error)
}

type registrationStore interface {
	Create(ctx context.Context, eventID, volunteerID int64) (*models.Registration, error)
	UpdateStatus(ctx context.Context, eventID, volunteerID int64, status models.RegistrationState) (*models.Registration, error)
	ListVolunteers(ctx context.Context, eventID int64) ([]models.EventVolunteer, error)
	ListForVolunteer(ctx context.Context, volunteerID int64) ([]models.RegistrationDetail, error)
}

type userLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// conversationStatusUpdater mirrors registration progress onto the chat
// conversation between the two parties, when the chat store supports it.
type conversationStatusUpdater interface {
	UpdateRegistrationStatus(ctx context.Context, volunteerID, organizerID, eventID string, status models.RegistrationStatus) error
}

type EventService struct {
	events        eventStore
	registrations registrationStore
	users         userLookup
	notifier      Notifier
	conversations conversationStatusUpdater
	clock         clockwork.Clock
	log           zerolog.Logger
}

func NewEventService(
	events eventStore,
	registrations registrationStore,
	users userLookup,
	notifier Notifier,
	clock clockwork.Clock,
	log zerolog.Logger,
) *EventService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &EventService{
		events:        events,
		registrations: registrations,
		users:         users,
		notifier:      notifier,
		clock:         clock,
		log:           log.With().Str("component", "event-service").Logger(),
	}
}

// WithConversationStatus makes registration changes visible on chat
// conversations.
func (s *EventService) WithConversationStatus(updater conversationStatusUpdater) *EventService {
	s.conversations = updater
	return s
}

type EventQuery struct {
	Search   string
	Category string
	Upcoming bool
	Sort     repository.EventSort
	Page     int
	Limit    int
}

type EventInput struct {
	Title            string
	Description      string
	Location         string
	Category         string
	StartDate        time.Time
	EndDate          time.Time
	VolunteersNeeded int
}

func (in EventInput) normalize() (repository.EventInput, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.StartDate.IsZero() || in.EndDate.IsZero() {
		return repository.EventInput{}, ErrInvalidInput
	}
	if in.EndDate.Before(in.StartDate) || in.VolunteersNeeded < 0 {
		return repository.EventInput{}, ErrInvalidInput
	}
	return repository.EventInput{
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Location:         strings.TrimSpace(in.Location),
		Category:         strings.TrimSpace(in.Category),
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		VolunteersNeeded: in.VolunteersNeeded,
	}, nil
}

func (s *EventService) List(ctx context.Context, query EventQuery) ([]models.Event, int, error) {
	if query.Page <= 0 || query.Limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	switch query.Sort {
	case "", repository.EventSortDate, repository.EventSortTitle:
	default:
		return nil, 0, ErrInvalidInput
	}

	filter := repository.EventListFilter{
		Search:   query.Search,
		Category: query.Category,
		Sort:     query.Sort,
		Limit:    query.Limit,
		Offset:   (query.Page - 1) * query.Limit,
	}
	if query.Upcoming {
		now := s.clock.Now().UTC()
		filter.UpcomingAt = &now
	}
	return s.events.List(ctx, filter)
}

func (s *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *EventService) Create(ctx context.Context, actorID int64, role models.Role, input EventInput) (*models.Event, error) {
	if role != models.RoleOrganizer {
		return nil, ErrForbidden
	}
	normalized, err := input.normalize()
	if err != nil {
		return nil, err
	}
	event, err := s.events.Create(ctx, actorID, normalized)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("event_id", event.ID).Int64("organizer_id", actorID).Msg("event created")
	return event, nil
}

func (s *EventService) Update(ctx context.Context, actorID int64, role models.Role, id int64, input EventInput) (*models.Event, error) {
	if role != models.RoleOrganizer {
		return nil, ErrForbidden
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OrganizerID != actorID {
		return nil, ErrForbidden
	}
	normalized, err := input.normalize()
	if err != nil {
		return nil, err
	}

	event, err := s.events.Update(ctx, id, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *EventService) Volunteers(ctx context.Context, actorID int64, role models.Role, eventID int64) ([]models.EventVolunteer, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && (role != models.RoleOrganizer || event.OrganizerID != actorID) {
		return nil, ErrForbidden
	}
	return s.registrations.ListVolunteers(ctx, eventID)
}

func (s *EventService) OrganizerEvents(ctx context.Context, organizerID int64) ([]models.Event, error) {
	if organizerID <= 0 {
		return nil, ErrInvalidInput
	}
	events, _, err := s.events.List(ctx, repository.EventListFilter{OrganizerID: organizerID, Sort: repository.EventSortDate})
	return events, err
}

// VolunteerRegistrations lists the registrations of the volunteer with the
// given email. Only that volunteer or an administrator may ask.
func (s *EventService) VolunteerRegistrations(
	ctx context.Context,
	actorID int64,
	role models.Role,
	email string,
) ([]models.RegistrationDetail, error) {
	volunteer, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && volunteer.ID != actorID {
		return nil, ErrForbidden
	}
	if volunteer.Role != models.RoleVolunteer {
		return nil, ErrNotFound
	}
	return s.registrations.ListForVolunteer(ctx, volunteer.ID)
}

func (s *EventService) Register(ctx context.Context, actorID int64, role models.Role, eventID int64) (*models.Registration, error) {
	if role != models.RoleVolunteer {
		return nil, ErrForbidden
	}
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsFull() {
		return nil, ErrEventFull
	}

	registration, err := s.registrations.Create(ctx, eventID, actorID)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	volunteerName := "A volunteer"
	if volunteer, err := s.users.GetByID(ctx, actorID); err == nil && volunteer.Name != "" {
		volunteerName = volunteer.Name
	}
	notifyQuietly(ctx, s.notifier, s.log, event.OrganizerID,
		fmt.Sprintf("%s registered for %s.", volunteerName, event.Title))
	s.updateConversationStatus(ctx, actorID, event, models.RegistrationRegistered)
	return registration, nil
}

// CompleteRegistration marks a volunteer's participation as completed. Only
// the event's organizer may do this.
func (s *EventService) CompleteRegistration(
	ctx context.Context,
	actorID int64,
	role models.Role,
	eventID int64,
	volunteerID int64,
) (*models.Registration, error) {
	if role != models.RoleOrganizer {
		return nil, ErrForbidden
	}
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actorID {
		return nil, ErrForbidden
	}
	if volunteerID <= 0 {
		return nil, ErrInvalidInput
	}

	registration, err := s.registrations.UpdateStatus(ctx, eventID, volunteerID, models.RegistrationStateCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	notifyQuietly(ctx, s.notifier, s.log, volunteerID,
		fmt.Sprintf("Thank you! Your participation in %s is marked as completed.", event.Title))
	s.updateConversationStatus(ctx, volunteerID, event, models.RegistrationCompleted)
	return registration, nil
}

func (s *EventService) updateConversationStatus(ctx context.Context, volunteerID int64, event *models.Event, status models.RegistrationStatus) {
	if s.conversations == nil {
		return
	}
	err := s.conversations.UpdateRegistrationStatus(
		ctx,
		formatUserID(volunteerID),
		formatUserID(event.OrganizerID),
		formatUserID(event.ID),
		status,
	)
	if err != nil {
		s.log.Warn().Err(err).Int64("event_id", event.ID).Msg("failed to update conversation registration status")
	}
}
