package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/calebmh/fedisync/internal/config"
)

// promptBlueskyPassword fills in the Bluesky app password interactively
// when the config and environment left it empty. Fails rather than
// prompting when stdin is not a terminal, so scripted runs get a clear
// error instead of hanging.
func promptBlueskyPassword(cfg *config.Config) error {
	if !cfg.HasBluesky() || cfg.Bluesky.Password != "" {
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("bluesky password not configured and stdin is not a terminal (set bluesky.password or FEDISYNC_BLUESKY_PASSWORD)")
	}

	fmt.Fprintf(os.Stderr, "Bluesky app password for %s: ", cfg.Bluesky.Username)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("empty password")
	}

	cfg.Bluesky.Password = string(password)
	return nil
}
