package chatstore

import (
	"time"

	"github.com/voluntrack/voluntrack/internal/models"
)

// DefaultSeed returns the demo conversations written into an empty store.
// Unread counters match the read flags of the seeded messages.
func DefaultSeed(now time.Time) SeedData {
	now = now.UTC()
	at := func(ago time.Duration) time.Time { return now.Add(-ago) }
	ptr := func(t time.Time) *time.Time { return &t }

	beach := models.Conversation{
		ID:                 "conv_demo_beach",
		VolunteerID:        "v1",
		VolunteerName:      "Asha Menon",
		OrganizerID:        "org_123",
		OrganizerName:      "Green Shores Collective",
		EventID:            "evt_1",
		EventName:          "Beach Cleanup Drive",
		LastMessage:        "Will gloves be provided?",
		LastMessageTime:    ptr(at(time.Hour)),
		Unread:             models.UnreadCounts{Volunteer: 0, Organizer: 1},
		RegistrationStatus: models.RegistrationRegistered,
		CreatedAt:          at(3 * time.Hour),
	}
	foodBank := models.Conversation{
		ID:                 "conv_demo_foodbank",
		VolunteerID:        "v1",
		VolunteerName:      "Asha Menon",
		OrganizerID:        "org_456",
		OrganizerName:      "City Food Bank",
		EventID:            "evt_2",
		EventName:          "Saturday Sorting Shift",
		LastMessage:        "Thank you for volunteering last week!",
		LastMessageTime:    ptr(at(26 * time.Hour)),
		Unread:             models.UnreadCounts{Volunteer: 1, Organizer: 0},
		RegistrationStatus: models.RegistrationCompleted,
		CreatedAt:          at(72 * time.Hour),
	}

	return SeedData{
		Conversations: []models.Conversation{beach, foodBank},
		Messages: map[string][]models.Message{
			beach.ID: {
				{
					ID:             "msg_demo_beach_1",
					ConversationID: beach.ID,
					SenderID:       "org_123",
					SenderRole:     models.RoleOrganizer,
					Text:           "Thanks for registering! We meet at the north pier at 8am.",
					CreatedAt:      at(2 * time.Hour),
					Read:           true,
				},
				{
					ID:             "msg_demo_beach_2",
					ConversationID: beach.ID,
					SenderID:       "v1",
					SenderRole:     models.RoleVolunteer,
					Text:           "Will gloves be provided?",
					CreatedAt:      at(time.Hour),
				},
			},
			foodBank.ID: {
				{
					ID:             "msg_demo_foodbank_1",
					ConversationID: foodBank.ID,
					SenderID:       "org_456",
					SenderRole:     models.RoleOrganizer,
					Text:           "Thank you for volunteering last week!",
					CreatedAt:      at(26 * time.Hour),
				},
			},
		},
	}
}
