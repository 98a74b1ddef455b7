package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voluntrack/voluntrack/internal/logging"
	"github.com/voluntrack/voluntrack/pkg/apiclient"
)

const (
	settingsFileName = ".voluntrack.json"
	apiTimeout       = 15 * time.Second
)

type settings struct {
	Server string `json:"server"`
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return settingsFileName
	}
	return filepath.Join(home, settingsFileName)
}

func loadSettings(path string) (*settings, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return &s, nil
}

func saveSettings(path string, s *settings) error {
	encoded, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s *settings) socketURL() string {
	return strings.TrimRight(s.Server, "/") + "/socket"
}

func settingsPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("settings")
	return path
}

// session loads settings that belong to a logged-in user and returns an API
// client carrying the token.
func session(cmd *cobra.Command) (*settings, *apiclient.Client, error) {
	s, err := loadSettings(settingsPathFlag(cmd))
	if err != nil {
		return nil, nil, err
	}
	if s.Server == "" || s.Token == "" {
		return nil, nil, errors.New("not logged in, run chatctl login first")
	}
	client := newAPIClient(s.Server)
	client.SetToken(s.Token)
	return s, client, nil
}

func newAPIClient(server string) *apiclient.Client {
	return apiclient.New(server, apiclient.WithTimeout(apiTimeout))
}

func cliLogger(cmd *cobra.Command) zerolog.Logger {
	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logging.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}, level)
}
