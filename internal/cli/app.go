package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/snapshot"
)

type App struct {
	Config      config.Config
	ConfigPath  string
	ServerAddr  string
	SessionName string
	Store       *snapshot.FileStore
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	serverOverride, _ := cmd.Flags().GetString("server")
	sessionOverride, _ := cmd.Flags().GetString("session")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	name := sessionOverride
	if name == "" {
		name = loadActiveSession(cfg.DataDir)
	}
	if name == "" {
		name = defaultSessionName
	}

	return &App{
		Config:      cfg,
		ConfigPath:  configPath,
		ServerAddr:  resolveServer(serverOverride, cfg),
		SessionName: name,
		Store:       &snapshot.FileStore{BaseDir: cfg.DataDir},
	}, nil
}
