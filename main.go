package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/addisbroker/realtime/internal/client"
	"github.com/addisbroker/realtime/internal/config"
	"github.com/addisbroker/realtime/internal/logging"
	"github.com/addisbroker/realtime/internal/tui/models"
	"github.com/addisbroker/realtime/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := logging.New(cfg.LogLevel, logFile)

	apiClient := client.NewAPIClient(cfg.APIURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithTokenStore(openTokenStore(cfg, logger)),
		client.WithLogger(logging.Component(logger, "client")),
	)

	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 0, 0
	}

	app := models.NewAppModel(&models.Env{
		Client: apiClient,
		Config: cfg,
		Logger: logger,
	}, width, height)
	defer app.Shutdown()

	logger.Info().Str("api", cfg.APIURL).Bool("live", cfg.LiveEnabled()).Msg("starting")
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Error().Err(err).Msg("ui exited")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openTokenStore prefers the OS keyring and falls back to a plain file.
func openTokenStore(cfg config.Config, logger zerolog.Logger) utils.TokenStore {
	path := utils.DefaultTokenPath()
	if cfg.TokenStore == config.TokenStoreFile {
		return utils.FileTokenStore{Path: path}
	}
	ring, err := utils.OpenKeyring(filepath.Join(filepath.Dir(path), ".addis-broker-keyring"))
	if err != nil {
		logger.Warn().Err(err).Msg("keyring unavailable, storing tokens in a file")
		return utils.FileTokenStore{Path: path}
	}
	return utils.NewKeyringTokenStore(ring)
}
