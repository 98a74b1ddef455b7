package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/services"
)

type stubNotificationService struct {
	markErr    error
	lastUserID int64
	lastID     int64
}

func (s *stubNotificationService) List(_ context.Context, userID int64) ([]models.Notification, error) {
	s.lastUserID = userID
	return []models.Notification{{ID: 1, UserID: userID, Message: "Welcome"}}, nil
}

func (s *stubNotificationService) MarkRead(_ context.Context, userID, notificationID int64) error {
	s.lastUserID = userID
	s.lastID = notificationID
	return s.markErr
}

type stubAnnouncementService struct {
	lastInput services.AnnouncementInput
	lastRole  models.Role
}

func (s *stubAnnouncementService) Create(_ context.Context, authorID int64, role models.Role, input services.AnnouncementInput) (*models.Announcement, error) {
	if role != models.RoleAdmin {
		return nil, services.ErrForbidden
	}
	s.lastInput = input
	return &models.Announcement{ID: 1, AuthorID: authorID, Title: input.Title, Body: input.Body, Audience: models.AudienceAll}, nil
}

func (s *stubAnnouncementService) List(_ context.Context, role models.Role) ([]models.Announcement, error) {
	s.lastRole = role
	return []models.Announcement{}, nil
}

func TestNotificationsAreScopedToCaller(t *testing.T) {
	notifications := &stubNotificationService{}
	handler := NewNotificationHandler(notifications, &stubAnnouncementService{})

	app := newActorApp("volunteer", "3")
	app.Get("/api/notifications", handler.ListNotifications)
	app.Patch("/api/notifications/:id/read", handler.MarkNotificationRead)

	resp, body := doRequest(t, app, http.MethodGet, "/api/notifications", "")
	expectEnvelope(t, resp, body, http.StatusOK, true)
	if notifications.lastUserID != 3 {
		t.Fatalf("expected user 3, got %d", notifications.lastUserID)
	}

	resp, body = doRequest(t, app, http.MethodPatch, "/api/notifications/9/read", "")
	expectEnvelope(t, resp, body, http.StatusOK, true)
	if notifications.lastID != 9 {
		t.Fatalf("expected notification 9, got %d", notifications.lastID)
	}

	notifications.markErr = services.ErrNotFound
	resp, body = doRequest(t, app, http.MethodPatch, "/api/notifications/10/read", "")
	expectEnvelope(t, resp, body, http.StatusNotFound, false)
}

func TestCreateAnnouncement(t *testing.T) {
	announcements := &stubAnnouncementService{}
	handler := NewNotificationHandler(&stubNotificationService{}, announcements)

	app := newActorApp("admin", "1")
	app.Post("/api/announcements", handler.CreateAnnouncement)
	resp, body := doRequest(t, app, http.MethodPost, "/api/announcements", `{"title":"Hello","body":"Welcome all","audience":"volunteer"}`)
	expectEnvelope(t, resp, body, http.StatusCreated, true)
	if announcements.lastInput.Audience != models.AudienceVolunteer {
		t.Fatalf("unexpected audience %q", announcements.lastInput.Audience)
	}

	resp, body = doRequest(t, app, http.MethodPost, "/api/announcements", `{"title":"Hello","body":"x","audience":"donors"}`)
	expectEnvelope(t, resp, body, http.StatusBadRequest, false)

	app = newActorApp("organizer", "7")
	app.Post("/api/announcements", handler.CreateAnnouncement)
	resp, body = doRequest(t, app, http.MethodPost, "/api/announcements", `{"title":"Hello","body":"x"}`)
	expectEnvelope(t, resp, body, http.StatusForbidden, false)
}
