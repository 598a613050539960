package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/calebmh/fedisync/internal/config"
)

var configPath string

// logWriter is where component loggers write. Set up by loadConfig; when a
// log file is configured, output is teed into a rotating file.
var logWriter io.Writer = os.Stderr

var rootCmd = &cobra.Command{
	Use:   "fedisync",
	Short: "Sync follows from Bluesky and Threads to the fediverse",
	Long: `fedisync mirrors the accounts you follow on Bluesky and Threads onto
your Mastodon account.

Each source follow is addressed through its bridge handle
(@user.bsky.social@bsky.brid.gy, @user@threads.net), resolved with a
Mastodon account search, and followed on an exact match. Fetched follow
lists are cached in a local SQLite database so subsequent runs only retry
the follows that haven't succeeded yet.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: config.toml in the working directory)")
}

// loadConfig loads the configuration and wires the log sink.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if cfg.Log.File != "" {
		logWriter = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}

	return cfg, nil
}

// componentLogger returns a prefixed logger writing to the configured sink.
func componentLogger(prefix string) *log.Logger {
	return log.New(logWriter, prefix, log.LstdFlags)
}
