package services

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/repository"
)

type stubUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
	lookup int
}

func newStubUserStore(users ...*models.User) *stubUserStore {
	store := &stubUserStore{users: make(map[int64]*models.User)}
	for _, user := range users {
		store.users[user.ID] = user
		if user.ID > store.nextID {
			store.nextID = user.ID
		}
	}
	return store
}

func (s *stubUserStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup++
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserStore) ListPending(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make([]models.User, 0)
	for _, user := range s.users {
		if user.Status == models.AccountPending {
			pending = append(pending, *user)
		}
	}
	return pending, nil
}

func (s *stubUserStore) Approve(_ context.Context, id int64, role models.Role) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.Role != role || user.Status != models.AccountPending {
		return nil, pgx.ErrNoRows
	}
	user.Status = models.AccountApproved
	copied := *user
	return &copied, nil
}

func (s *stubUserStore) DeletePending(_ context.Context, id int64, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.Role != role || user.Status != models.AccountPending {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}

func (s *stubUserStore) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

type sentNotification struct {
	UserID  int64
	Message string
}

type stubNotifier struct {
	sent []sentNotification
}

func (n *stubNotifier) Notify(_ context.Context, userID int64, message string) error {
	n.sent = append(n.sent, sentNotification{UserID: userID, Message: message})
	return nil
}

type stubEventStore struct {
	events map[int64]*models.Event
}

func (s *stubEventStore) List(_ context.Context, filter repository.EventListFilter) ([]models.Event, int, error) {
	events := make([]models.Event, 0)
	for _, event := range s.events {
		if filter.OrganizerID > 0 && event.OrganizerID != filter.OrganizerID {
			continue
		}
		events = append(events, *event)
	}
	return events, len(events), nil
}

func (s *stubEventStore) GetByID(_ context.Context, id int64) (*models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (s *stubEventStore) Create(_ context.Context, organizerID int64, input repository.EventInput) (*models.Event, error) {
	id := int64(len(s.events) + 1)
	event := &models.Event{
		ID:               id,
		OrganizerID:      organizerID,
		Title:            input.Title,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		VolunteersNeeded: input.VolunteersNeeded,
	}
	s.events[id] = event
	return event, nil
}

func (s *stubEventStore) Update(_ context.Context, id int64, input repository.EventInput) (*models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	event.Title = input.Title
	event.StartDate = input.StartDate
	event.EndDate = input.EndDate
	return event, nil
}

type stubRegistrationStore struct {
	registrations map[[2]int64]*models.Registration
}

func newStubRegistrationStore() *stubRegistrationStore {
	return &stubRegistrationStore{registrations: make(map[[2]int64]*models.Registration)}
}

func (s *stubRegistrationStore) Create(_ context.Context, eventID, volunteerID int64) (*models.Registration, error) {
	key := [2]int64{eventID, volunteerID}
	if _, exists := s.registrations[key]; exists {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	registration := &models.Registration{
		ID:          int64(len(s.registrations) + 1),
		EventID:     eventID,
		VolunteerID: volunteerID,
		Status:      models.RegistrationStateRegistered,
	}
	s.registrations[key] = registration
	return registration, nil
}

func (s *stubRegistrationStore) UpdateStatus(_ context.Context, eventID, volunteerID int64, status models.RegistrationState) (*models.Registration, error) {
	registration, ok := s.registrations[[2]int64{eventID, volunteerID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	registration.Status = status
	return registration, nil
}

func (s *stubRegistrationStore) ListVolunteers(_ context.Context, eventID int64) ([]models.EventVolunteer, error) {
	volunteers := make([]models.EventVolunteer, 0)
	for key, registration := range s.registrations {
		if key[0] == eventID {
			volunteers = append(volunteers, models.EventVolunteer{UserID: key[1], Status: registration.Status})
		}
	}
	return volunteers, nil
}

func (s *stubRegistrationStore) ListForVolunteer(_ context.Context, volunteerID int64) ([]models.RegistrationDetail, error) {
	details := make([]models.RegistrationDetail, 0)
	for key, registration := range s.registrations {
		if key[1] == volunteerID {
			details = append(details, models.RegistrationDetail{Registration: *registration})
		}
	}
	return details, nil
}

func approvedUser(id int64, role models.Role, name string) *models.User {
	return &models.User{
		ID:     id,
		Email:  name + "@example.com",
		Name:   name,
		Role:   role,
		Status: models.AccountApproved,
	}
}
