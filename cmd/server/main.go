package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/config"
	"github.com/voluntrack/voluntrack/internal/database"
	"github.com/voluntrack/voluntrack/internal/logging"
	"github.com/voluntrack/voluntrack/internal/middleware"
	"github.com/voluntrack/voluntrack/internal/repository"
	"github.com/voluntrack/voluntrack/internal/routes"
	"github.com/voluntrack/voluntrack/internal/services"
	chatws "github.com/voluntrack/voluntrack/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal().Msg("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	clock := clockwork.NewRealClock()
	chatStore, closeChatStore, err := routes.OpenChatStore(ctx, cfg, pool, clock, log)
	if err != nil {
		log.Fatal().Err(err).Str("chat_store", cfg.ChatStore).Msg("failed to open chat store")
	}
	defer closeChatStore()
	log.Info().Str("chat_store", cfg.ChatStore).Msg("chat store ready")

	// 3. Bootstrap data
	if cfg.BootstrapAdminEnabled() {
		auth := services.NewAuthService(repository.NewUserRepository(pool), cfg.JWTSecret, log)
		created, err := auth.EnsureAdmin(ctx, cfg.DefaultAdminEmail, cfg.DefaultAdminPassword, cfg.DefaultAdminName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin account")
		}
		if created {
			log.Info().Str("email", cfg.DefaultAdminEmail).Msg("bootstrap admin created")
		}
	}
	if cfg.ChatSeedDemo {
		if seeder, ok := chatstore.Capability[chatstore.Seeder](chatStore); ok {
			seeded, err := seeder.SeedIfEmpty(ctx, chatstore.DefaultSeed(clock.Now()))
			if err != nil {
				log.Fatal().Err(err).Msg("failed to seed chat store")
			}
			log.Info().Bool("seeded", seeded).Msg("demo chat data checked")
		} else {
			log.Warn().Str("chat_store", cfg.ChatStore).Msg("chat store does not support seeding")
		}
	}

	// 4. Setup Fiber
	app := fiber.New(fiber.Config{DisableStartupMessage: !cfg.IsDevelopment()})

	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.TrimSpace(cfg.CORSAllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.RequestLogger(log))

	hub := chatws.NewHub(log)
	routes.RegisterRoutes(app, routes.Deps{
		Config:    cfg,
		DB:        pool,
		ChatStore: chatStore,
		Hub:       hub,
		Clock:     clock,
		Log:       log,
	})

	// 5. Start Server
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}
