package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voluntrack/voluntrack/internal/models"
)

type LoginResult struct {
	User  models.PublicUser `json:"user"`
	Token string            `json:"token"`
}

type SignupInput struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	UserType string  `json:"userType"`
	Phone    *string `json:"phone,omitempty"`
}

type EventQuery struct {
	Search   string
	Category string
	Upcoming bool
	Sort     string
	Page     int
	Limit    int
}

func (q EventQuery) params() map[string]string {
	params := map[string]string{}
	if q.Search != "" {
		params["search"] = q.Search
	}
	if q.Category != "" {
		params["category"] = q.Category
	}
	if q.Upcoming {
		params["upcoming"] = "true"
	}
	if q.Sort != "" {
		params["sort"] = q.Sort
	}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	return params
}

type EventList struct {
	Events     []models.Event        `json:"events"`
	Pagination models.PaginationMeta `json:"pagination"`
}

// EventInput dates accept RFC 3339, "2006-01-02T15:04" or "2006-01-02".
type EventInput struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Location         string `json:"location,omitempty"`
	Category         string `json:"category,omitempty"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	VolunteersNeeded int    `json:"volunteers_needed"`
}

type CreateConversationInput struct {
	VolunteerID string `json:"volunteer_id"`
	OrganizerID string `json:"organizer_id"`
	EventID     string `json:"event_id,omitempty"`
}

type AnnouncementInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Audience string `json:"audience,omitempty"`
}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password, userType string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"email": email, "password": password, "userType": userType},
	}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, input SignupInput) (*models.PublicUser, error) {
	var out struct {
		User models.PublicUser `json:"user"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/signup", body: input}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Me(ctx context.Context) (*models.PublicUser, error) {
	var out struct {
		User models.PublicUser `json:"user"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/me"}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) ListPendingUsers(ctx context.Context) ([]models.PublicUser, error) {
	var out struct {
		Users []models.PublicUser `json:"users"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users"}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) ApproveUser(ctx context.Context, role models.Role, id int64) (*models.PublicUser, error) {
	var out struct {
		User models.PublicUser `json:"user"`
	}
	path := "/api/users/approve/" + url.PathEscape(string(role)) + "/" + idPath(id)
	if err := c.do(ctx, request{method: http.MethodPatch, path: path}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) RejectUser(ctx context.Context, role models.Role, id int64) error {
	path := "/api/users/reject/" + url.PathEscape(string(role)) + "/" + idPath(id)
	return c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
}

func (c *Client) ListEvents(ctx context.Context, query EventQuery) (*EventList, error) {
	var out EventList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/events", query: query.params()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return c.eventCall(ctx, request{method: http.MethodGet, path: "/api/events/" + idPath(id)})
}

func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*models.Event, error) {
	return c.eventCall(ctx, request{method: http.MethodPost, path: "/api/events", body: input})
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, input EventInput) (*models.Event, error) {
	return c.eventCall(ctx, request{method: http.MethodPut, path: "/api/events/" + idPath(id), body: input})
}

func (c *Client) eventCall(ctx context.Context, r request) (*models.Event, error) {
	var out struct {
		Event models.Event `json:"event"`
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out.Event, nil
}

func (c *Client) EventVolunteers(ctx context.Context, eventID int64) ([]models.EventVolunteer, error) {
	var out struct {
		Volunteers []models.EventVolunteer `json:"volunteers"`
	}
	path := "/api/events/" + idPath(eventID) + "/volunteers"
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out.Volunteers, nil
}

func (c *Client) OrganizerEvents(ctx context.Context, organizerID int64) ([]models.Event, error) {
	var out struct {
		Events []models.Event `json:"events"`
	}
	path := "/api/events/organizer/" + idPath(organizerID)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) VolunteerRegistrations(ctx context.Context, email string) ([]models.RegistrationDetail, error) {
	var out struct {
		Registrations []models.RegistrationDetail `json:"registrations"`
	}
	path := "/api/events/volunteer/" + url.PathEscape(email) + "/registrations"
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out.Registrations, nil
}

func (c *Client) RegisterForEvent(ctx context.Context, eventID int64) (*models.Registration, error) {
	return c.registrationCall(ctx, request{
		method: http.MethodPost,
		path:   "/api/events/" + idPath(eventID) + "/register",
	})
}

func (c *Client) CompleteRegistration(ctx context.Context, eventID, volunteerID int64) (*models.Registration, error) {
	return c.registrationCall(ctx, request{
		method: http.MethodPatch,
		path:   "/api/events/" + idPath(eventID) + "/registrations/" + idPath(volunteerID) + "/complete",
	})
}

func (c *Client) registrationCall(ctx context.Context, r request) (*models.Registration, error) {
	var out struct {
		Registration models.Registration `json:"registration"`
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out.Registration, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return c.conversationsCall(ctx, "/api/conversations")
}

func (c *Client) ConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return c.conversationsCall(ctx, "/api/conversations/"+url.PathEscape(userID))
}

func (c *Client) conversationsCall(ctx context.Context, path string) ([]models.Conversation, error) {
	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) CreateConversation(ctx context.Context, input CreateConversationInput) (*models.Conversation, error) {
	var out struct {
		Conversation models.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/conversations", body: input}, &out); err != nil {
		return nil, err
	}
	return &out.Conversation, nil
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/api/messages/" + url.PathEscape(conversationID)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/messages/mark-read",
		body:   map[string]string{"conversation_id": conversationID},
	}, nil)
}

func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/forgot-password/send-otp",
		body:   map[string]string{"email": email},
	}, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/forgot-password/verify-otp",
		body:   map[string]string{"email": email, "otp": otp},
	}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/forgot-password/reset-password",
		body:   map[string]string{"email": email, "otp": otp, "new_password": newPassword},
	}, nil)
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/notifications"}, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodPatch, path: "/api/notifications/" + idPath(id) + "/read"}, nil)
}

func (c *Client) Announcements(ctx context.Context) ([]models.Announcement, error) {
	var out struct {
		Announcements []models.Announcement `json:"announcements"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/announcements"}, &out); err != nil {
		return nil, err
	}
	return out.Announcements, nil
}

func (c *Client) CreateAnnouncement(ctx context.Context, input AnnouncementInput) (*models.Announcement, error) {
	var out struct {
		Announcement models.Announcement `json:"announcement"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/announcements", body: input}, &out); err != nil {
		return nil, err
	}
	return &out.Announcement, nil
}
