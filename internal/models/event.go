package models

import "time"

type Event struct {
	ID               int64     `json:"id"`
	OrganizerID      int64     `json:"organizer_id"`
	OrganizerName    string    `json:"organizer_name,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	Category         string    `json:"category"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	VolunteersNeeded int       `json:"volunteers_needed"`
	RegisteredCount  int       `json:"registered_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsFull reports whether the event has no volunteer slots left. A zero
// VolunteersNeeded means the event takes any number of volunteers.
func (e *Event) IsFull() bool {
	return e.VolunteersNeeded > 0 && e.RegisteredCount >= e.VolunteersNeeded
}

type RegistrationState string

const (
	RegistrationStateRegistered RegistrationState = "registered"
	RegistrationStateCompleted  RegistrationState = "completed"
	RegistrationStateCancelled  RegistrationState = "cancelled"
)

type Registration struct {
	ID          int64             `json:"id"`
	EventID     int64             `json:"event_id"`
	VolunteerID int64             `json:"volunteer_id"`
	Status      RegistrationState `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// RegistrationDetail is a volunteer's registration joined with its event.
type RegistrationDetail struct {
	Registration
	Event Event `json:"event"`
}

// EventVolunteer is a registered volunteer as seen by the event organizer.
type EventVolunteer struct {
	UserID       int64             `json:"user_id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        *string           `json:"phone,omitempty"`
	Status       RegistrationState `json:"status"`
	RegisteredAt time.Time         `json:"registered_at"`
}
