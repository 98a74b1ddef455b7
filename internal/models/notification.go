package models

import "time"

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Audience string

const (
	AudienceAll       Audience = "all"
	AudienceVolunteer Audience = "volunteer"
	AudienceOrganizer Audience = "organizer"
)

func (a Audience) IsValid() bool {
	switch a {
	case AudienceAll, AudienceVolunteer, AudienceOrganizer:
		return true
	}
	return false
}

type Announcement struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Audience  Audience  `json:"audience"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordReset struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	Verified  bool
	CreatedAt time.Time
}
