package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/config"
	"github.com/voluntrack/voluntrack/internal/handlers"
	"github.com/voluntrack/voluntrack/internal/middleware"
	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/repository"
	"github.com/voluntrack/voluntrack/internal/services"
	chatws "github.com/voluntrack/voluntrack/internal/websocket"
)

// Deps carries what the router needs from main. The hub is run by the
// caller.
type Deps struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	ChatStore chatstore.Store
	Hub       *chatws.Hub
	Clock     clockwork.Clock
	Log       zerolog.Logger
}

func RegisterRoutes(app *fiber.App, deps Deps) {
	cfg := deps.Config
	log := deps.Log
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	userRepo := repository.NewUserRepository(deps.DB)
	eventRepo := repository.NewEventRepository(deps.DB)
	registrationRepo := repository.NewRegistrationRepository(deps.DB)
	notificationRepo := repository.NewNotificationRepository(deps.DB)
	announcementRepo := repository.NewAnnouncementRepository(deps.DB)
	passwordResetRepo := repository.NewPasswordResetRepository(deps.DB)

	var mailer services.Mailer = services.NewLogMailer(log)
	if webhook := services.NewWebhookMailer(cfg.MailWebhookURL); webhook != nil {
		mailer = webhook
	}

	notificationService := services.NewNotificationService(notificationRepo, log)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, log)
	announcementService := services.NewAnnouncementService(announcementRepo)
	eventService := services.NewEventService(eventRepo, registrationRepo, userRepo, notificationService, clock, log)
	if cfg.ChatStore == config.ChatStorePostgres {
		eventService = eventService.WithConversationStatus(repository.NewConversationRepository(deps.DB))
	}
	chatService := services.NewChatService(deps.ChatStore, userRepo, eventRepo, log)
	moderationService := services.NewModerationService(userRepo, notificationService, log).WithUserCache(chatService)
	passwordService := services.NewPasswordResetService(
		passwordResetRepo,
		userRepo,
		mailer,
		log,
		services.WithOTPClock(clock),
		services.WithOTPPolicy(cfg.OTPTTL, cfg.OTPMaxAttempts),
	)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(moderationService)
	eventHandler := handlers.NewEventHandler(eventService)
	chatHandler := handlers.NewChatHandler(chatService, deps.Hub, cfg.JWTSecret)
	passwordHandler := handlers.NewPasswordHandler(passwordService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, announcementService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})
	if cfg.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := app.Group("/api")

	api.Post("/login", authHandler.Login)
	api.Post("/signup", authHandler.Signup)

	forgot := api.Group("/forgot-password")
	forgot.Post("/send-otp", passwordHandler.SendOTP)
	forgot.Post("/verify-otp", passwordHandler.VerifyOTP)
	forgot.Post("/reset-password", passwordHandler.ResetPassword)

	protected := api.Group("", middleware.AuthRequired(cfg.JWTSecret))
	protected.Get("/me", authHandler.Me)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	users := protected.Group("/users", adminOnly)
	users.Get("", userHandler.ListPending)
	users.Patch("/approve/:type/:id", userHandler.Approve)
	users.Delete("/reject/:type/:id", userHandler.Reject)

	events := protected.Group("/events")
	events.Get("", eventHandler.ListEvents)
	events.Post("", middleware.RequireRoles(models.RoleOrganizer), eventHandler.CreateEvent)
	events.Get("/organizer/:id", eventHandler.OrganizerEvents)
	events.Get("/volunteer/:email/registrations", eventHandler.VolunteerRegistrations)
	events.Get("/:id", eventHandler.GetEvent)
	events.Put("/:id", middleware.RequireRoles(models.RoleOrganizer), eventHandler.UpdateEvent)
	events.Get("/:id/volunteers", eventHandler.EventVolunteers)
	events.Post("/:id/register", middleware.RequireRoles(models.RoleVolunteer), eventHandler.Register)
	events.Patch(
		"/:id/registrations/:volunteerId/complete",
		middleware.RequireRoles(models.RoleOrganizer),
		eventHandler.CompleteRegistration,
	)

	conversations := protected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:userId", chatHandler.ConversationsForUser)

	messages := protected.Group("/messages")
	messages.Post("/mark-read", chatHandler.MarkRead)
	messages.Get("/:conversationId", chatHandler.GetMessages)

	notifications := protected.Group("/notifications")
	notifications.Get("", notificationHandler.ListNotifications)
	notifications.Patch("/:id/read", notificationHandler.MarkNotificationRead)

	announcements := protected.Group("/announcements")
	announcements.Get("", notificationHandler.ListAnnouncements)
	announcements.Post("", adminOnly, notificationHandler.CreateAnnouncement)

	app.Use("/socket", chatHandler.WebSocketAuth)
	app.Get("/socket", websocket.New(chatHandler.HandleWebSocket))
}
