package services

import (
	"context"
	"strings"

	"github.com/voluntrack/voluntrack/internal/models"
)

type announcementStore interface {
	Create(ctx context.Context, announcement *models.Announcement) error
	ListForAudiences(ctx context.Context, audiences []models.Audience) ([]models.Announcement, error)
}

type AnnouncementService struct {
	store announcementStore
}

func NewAnnouncementService(store announcementStore) *AnnouncementService {
	return &AnnouncementService{store: store}
}

type AnnouncementInput struct {
	Title    string
	Body     string
	Audience models.Audience
}

func (s *AnnouncementService) Create(
	ctx context.Context,
	authorID int64,
	role models.Role,
	input AnnouncementInput,
) (*models.Announcement, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	audience := input.Audience
	if audience == "" {
		audience = models.AudienceAll
	}
	if title == "" || body == "" || !audience.IsValid() {
		return nil, ErrInvalidInput
	}

	announcement := &models.Announcement{
		AuthorID: authorID,
		Title:    title,
		Body:     body,
		Audience: audience,
	}
	if err := s.store.Create(ctx, announcement); err != nil {
		return nil, err
	}
	return announcement, nil
}

// List returns the announcements addressed to role. Administrators see
// every audience.
func (s *AnnouncementService) List(ctx context.Context, role models.Role) ([]models.Announcement, error) {
	var audiences []models.Audience
	switch role {
	case models.RoleAdmin:
		audiences = []models.Audience{models.AudienceAll, models.AudienceVolunteer, models.AudienceOrganizer}
	case models.RoleVolunteer:
		audiences = []models.Audience{models.AudienceAll, models.AudienceVolunteer}
	case models.RoleOrganizer:
		audiences = []models.Audience{models.AudienceAll, models.AudienceOrganizer}
	default:
		return nil, ErrForbidden
	}
	return s.store.ListForAudiences(ctx, audiences)
}
