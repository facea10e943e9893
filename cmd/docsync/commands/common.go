package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// Global is passed to every command's Run.
type Global struct {
	Logger *slog.Logger
}

// CLI defines the global flags and the command tree.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docsync.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve  ServeCmd  `cmd:"" help:"Run the webhook server and keep docs in sync" default:"1"`
	Sync   SyncCmd   `cmd:"" help:"Run the startup reconciliation once and exit"`
	Render RenderCmd `cmd:"" help:"Regenerate HTML for a local Markdown tree (no git)"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
}

// AfterApply installs a text logger on stderr before any command runs.
// nolint:unparam // AfterApply never fails today.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// newLogger builds the logger described by the logging section. --verbose
// always wins over the configured level.
func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := cfg.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig reads the configuration and switches logging to its settings.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.Logging, root.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}
