package models

import "time"

type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleVolunteer, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// IsChatParticipant reports whether the role can own one side of a conversation.
func (r Role) IsChatParticipant() bool {
	return r == RoleVolunteer || r == RoleOrganizer
}

// Counterpart returns the other side of a conversation.
func (r Role) Counterpart() Role {
	if r == RoleVolunteer {
		return RoleOrganizer
	}
	return RoleVolunteer
}

type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountApproved AccountStatus = "approved"
)

type User struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Phone        *string       `json:"phone,omitempty"`
	Role         Role          `json:"role"`
	Status       AccountStatus `json:"status"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// PublicUser is the shape returned to clients after login or signup.
type PublicUser struct {
	ID     int64         `json:"id"`
	Email  string        `json:"email"`
	Name   string        `json:"name"`
	Role   Role          `json:"role"`
	Status AccountStatus `json:"status"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Status: u.Status,
	}
}
