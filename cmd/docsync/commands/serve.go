package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docsync/internal/daemon"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	SkipBootstrap bool `help:"Do not reconcile the working copies before serving"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, daemon.Options{SkipBootstrap: s.SkipBootstrap})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	slog.Info("Daemon stopped successfully")
	return nil
}
