package models

import "time"

type RegistrationStatus string

const (
	RegistrationNone       RegistrationStatus = "none"
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationCompleted  RegistrationStatus = "completed"
)

func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationNone, RegistrationRegistered, RegistrationCompleted:
		return true
	}
	return false
}

// UnreadCounts holds one unread counter per conversation party.
type UnreadCounts struct {
	Volunteer int `json:"volunteer"`
	Organizer int `json:"organizer"`
}

func (u UnreadCounts) For(role Role) int {
	switch role {
	case RoleVolunteer:
		return u.Volunteer
	case RoleOrganizer:
		return u.Organizer
	}
	return 0
}

func (u *UnreadCounts) Increment(role Role) {
	switch role {
	case RoleVolunteer:
		u.Volunteer++
	case RoleOrganizer:
		u.Organizer++
	}
}

func (u *UnreadCounts) Reset(role Role) {
	switch role {
	case RoleVolunteer:
		u.Volunteer = 0
	case RoleOrganizer:
		u.Organizer = 0
	}
}

type Conversation struct {
	ID                 string             `json:"id"`
	VolunteerID        string             `json:"volunteer_id"`
	VolunteerName      string             `json:"volunteer_name"`
	OrganizerID        string             `json:"organizer_id"`
	OrganizerName      string             `json:"organizer_name"`
	EventID            string             `json:"event_id,omitempty"`
	EventName          string             `json:"event_name,omitempty"`
	LastMessage        string             `json:"last_message"`
	LastMessageTime    *time.Time         `json:"last_message_time,omitempty"`
	Unread             UnreadCounts       `json:"unread_count"`
	RegistrationStatus RegistrationStatus `json:"registration_status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// ParticipantID returns the id of the party holding role.
func (c *Conversation) ParticipantID(role Role) string {
	switch role {
	case RoleVolunteer:
		return c.VolunteerID
	case RoleOrganizer:
		return c.OrganizerID
	}
	return ""
}

// RoleOf returns the role userID plays in the conversation, if any.
func (c *Conversation) RoleOf(userID string) (Role, bool) {
	switch userID {
	case c.VolunteerID:
		return RoleVolunteer, true
	case c.OrganizerID:
		return RoleOrganizer, true
	}
	return "", false
}

// LastActivity is the time used to order conversation lists.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessageTime != nil {
		return *c.LastMessageTime
	}
	return c.CreatedAt
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     Role      `json:"sender_role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
}

type NewMessage struct {
	SenderID   string
	SenderRole Role
	Text       string
}
