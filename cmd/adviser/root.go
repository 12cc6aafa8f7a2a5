package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairplaylabs/adviser/config"
	"github.com/fairplaylabs/adviser/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "adviser",
		Short:         "Governance and compliance question answering for sport participants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file")

	cmd.AddCommand(newAskCmd(&configPath))
	cmd.AddCommand(newIngestCmd(&configPath))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func loadConfig(path string) (config.Config, logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return cfg, logging.New(os.Stderr, level), nil
}
