package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docsync/internal/bootstrap"
	"git.home.luguber.info/inful/docsync/internal/daemon"
)

// SyncCmd implements the 'sync' command: one reconciliation pass.
type SyncCmd struct{}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, daemon.Options{})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer func() { _ = d.Close() }()

	rep, err := d.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printSyncReport(os.Stdout, rep)
	return nil
}

func printSyncReport(out io.Writer, rep bootstrap.Report) {
	_, _ = fmt.Fprintf(out, "HTML: %d rendered, %d fresh, %d failed\n",
		rep.HTML.Rendered, rep.HTML.Skipped, len(rep.HTML.Failed))
	if rep.Migrated {
		_, _ = fmt.Fprintf(out, "Wiki: %d copied, %d mapped, %d cleaned\n",
			len(rep.Mirror.Copied), len(rep.Mirror.Mapped), rep.Cleaned)
	}
	if rep.Commit.Committed {
		_, _ = fmt.Fprintf(out, "Published %s (%d files)\n", rep.Commit.Commit, len(rep.Commit.Files))
	} else {
		_, _ = fmt.Fprintln(out, "Nothing to publish")
	}
}
