package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
)

type statusUpdate struct {
	volunteerID string
	organizerID string
	eventID     string
	status      models.RegistrationStatus
}

type stubConversationStatus struct {
	updates []statusUpdate
}

func (s *stubConversationStatus) UpdateRegistrationStatus(_ context.Context, volunteerID, organizerID, eventID string, status models.RegistrationStatus) error {
	s.updates = append(s.updates, statusUpdate{volunteerID, organizerID, eventID, status})
	return nil
}

type eventFixture struct {
	service       *EventService
	events        *stubEventStore
	registrations *stubRegistrationStore
	notifier      *stubNotifier
	conversations *stubConversationStatus
}

func newEventFixture() *eventFixture {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	f := &eventFixture{
		events: &stubEventStore{events: map[int64]*models.Event{
			1: {ID: 1, OrganizerID: 2, Title: "Food Drive", StartDate: start, EndDate: start.Add(4 * time.Hour), VolunteersNeeded: 10},
			2: {ID: 2, OrganizerID: 2, Title: "Tree Planting", StartDate: start, EndDate: start, VolunteersNeeded: 1, RegisteredCount: 1},
		}},
		registrations: newStubRegistrationStore(),
		notifier:      &stubNotifier{},
		conversations: &stubConversationStatus{},
	}
	users := newStubUserStore(
		approvedUser(1, models.RoleVolunteer, "vera"),
		approvedUser(2, models.RoleOrganizer, "omar"),
		approvedUser(4, models.RoleOrganizer, "olga"),
	)
	f.service = NewEventService(f.events, f.registrations, users, f.notifier, clockwork.NewFakeClockAt(start), zerolog.Nop()).
		WithConversationStatus(f.conversations)
	return f
}

func TestRegisterNotifiesOrganizer(t *testing.T) {
	f := newEventFixture()

	registration, err := f.service.Register(context.Background(), 1, models.RoleVolunteer, 1)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if registration.Status != models.RegistrationStateRegistered {
		t.Fatalf("unexpected status %q", registration.Status)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].UserID != 2 {
		t.Fatalf("expected organizer notification, got %+v", f.notifier.sent)
	}
	if !strings.Contains(f.notifier.sent[0].Message, "vera") || !strings.Contains(f.notifier.sent[0].Message, "Food Drive") {
		t.Fatalf("unexpected notification %q", f.notifier.sent[0].Message)
	}
	want := statusUpdate{"1", "2", "1", models.RegistrationRegistered}
	if len(f.conversations.updates) != 1 || f.conversations.updates[0] != want {
		t.Fatalf("expected conversation status update, got %+v", f.conversations.updates)
	}

	if _, err := f.service.Register(context.Background(), 1, models.RoleVolunteer, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate registration, got %v", err)
	}
}

func TestRegisterRejectsFullEventsAndNonVolunteers(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()

	if _, err := f.service.Register(ctx, 1, models.RoleVolunteer, 2); !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected ErrEventFull, got %v", err)
	}
	if _, err := f.service.Register(ctx, 2, models.RoleOrganizer, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.Register(ctx, 1, models.RoleVolunteer, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteRegistrationOnlyByOwner(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()

	if _, err := f.service.Register(ctx, 1, models.RoleVolunteer, 1); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := f.service.CompleteRegistration(ctx, 4, models.RoleOrganizer, 1, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another organizer, got %v", err)
	}

	registration, err := f.service.CompleteRegistration(ctx, 2, models.RoleOrganizer, 1, 1)
	if err != nil {
		t.Fatalf("CompleteRegistration: %v", err)
	}
	if registration.Status != models.RegistrationStateCompleted {
		t.Fatalf("expected completed, got %q", registration.Status)
	}
	last := f.notifier.sent[len(f.notifier.sent)-1]
	if last.UserID != 1 {
		t.Fatalf("expected volunteer notification, got %+v", last)
	}
	if got := f.conversations.updates[len(f.conversations.updates)-1].status; got != models.RegistrationCompleted {
		t.Fatalf("expected completed conversation status, got %q", got)
	}

	if _, err := f.service.CompleteRegistration(ctx, 2, models.RoleOrganizer, 1, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unregistered volunteer, got %v", err)
	}
}

func TestCreateAndUpdateEventValidation(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()
	start := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	if _, err := f.service.Create(ctx, 1, models.RoleVolunteer, EventInput{Title: "x", StartDate: start, EndDate: start}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for volunteer, got %v", err)
	}
	if _, err := f.service.Create(ctx, 2, models.RoleOrganizer, EventInput{Title: "Park", StartDate: start, EndDate: start.Add(-time.Hour)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for end before start, got %v", err)
	}

	event, err := f.service.Create(ctx, 2, models.RoleOrganizer, EventInput{Title: " Park Day ", StartDate: start, EndDate: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if event.Title != "Park Day" || event.OrganizerID != 2 {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := f.service.Update(ctx, 4, models.RoleOrganizer, event.ID, EventInput{Title: "Mine", StartDate: start, EndDate: start}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	updated, err := f.service.Update(ctx, 2, models.RoleOrganizer, event.ID, EventInput{Title: "Park Day 2", StartDate: start, EndDate: start})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Park Day 2" {
		t.Fatalf("expected updated title, got %q", updated.Title)
	}
}

func TestListRejectsBadPaging(t *testing.T) {
	f := newEventFixture()

	if _, _, err := f.service.List(context.Background(), EventQuery{Page: 0, Limit: 10}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := f.service.List(context.Background(), EventQuery{Page: 1, Limit: 10, Sort: "popularity"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown sort, got %v", err)
	}
	events, total, err := f.service.List(context.Background(), EventQuery{Page: 1, Limit: 10, Upcoming: true})
	if err != nil || total != 2 || len(events) != 2 {
		t.Fatalf("unexpected list result %d %d %v", len(events), total, err)
	}
}

func TestVolunteerRegistrationsRequiresSelfOrAdmin(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()

	if _, err := f.service.Register(ctx, 1, models.RoleVolunteer, 1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.service.VolunteerRegistrations(ctx, 2, models.RoleOrganizer, "vera@example.com"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	registrations, err := f.service.VolunteerRegistrations(ctx, 1, models.RoleVolunteer, "VERA@example.com")
	if err != nil || len(registrations) != 1 {
		t.Fatalf("expected one registration, got %v %v", registrations, err)
	}
	if _, err := f.service.VolunteerRegistrations(ctx, 9, models.RoleAdmin, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
