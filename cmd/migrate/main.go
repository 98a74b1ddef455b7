package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/voluntrack/voluntrack/internal/logging"
)

func main() {
	_ = godotenv.Load()
	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).
		With().Str("component", "migrate").Logger()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal().Msg("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrations()
	if err != nil {
		log.Fatal().Err(err).Msg("migrations directory not found")
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open migrations")
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command, expected up or down")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Warn().Err(verr).Msg("could not read schema version")
	}
	log.Info().Str("command", cmd).Uint("version", version).Bool("dirty", dirty).Msg("migration successful")
}

// findMigrations looks for a migrations directory above the working directory
// and next to the executable.
func findMigrations() (string, error) {
	candidates := []string{}
	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", os.ErrNotExist
}
