package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/htmlpub"
	"git.home.luguber.info/inful/docsync/internal/render"
)

// RenderCmd implements the 'render' command. It needs no configuration file.
type RenderCmd struct {
	Dir        string        `arg:"" help:"Directory to scan for Markdown files" type:"existingdir"`
	Renderer   string        `short:"r" help:"Renderer backend (github or goldmark)" default:"goldmark" enum:"github,goldmark,local"`
	Token      string        `help:"GitHub token for the github renderer" env:"DOCSYNC_GIT_TOKEN"`
	APIURL     string        `name:"api-url" help:"GitHub Enterprise API base URL"`
	Throttle   time.Duration `help:"Wait before every renderer call" default:"0s"`
	RetryDelay time.Duration `name:"retry-delay" help:"Wait before retrying a failed call" default:"5s"`
}

func (c *RenderCmd) Run(_ *Global, _ *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r, err := render.New(config.RendererConfig{
		Kind:   config.NormalizeRendererKind(c.Renderer),
		APIURL: c.APIURL,
	}, c.Token, nil)
	if err != nil {
		return err
	}
	return RunRender(ctx, os.Stdout, r, c.Dir, htmlpub.Options{Throttle: c.Throttle, RetryDelay: c.RetryDelay})
}

// RunRender regenerates every stale HTML file under dir.
func RunRender(ctx context.Context, out io.Writer, r render.Renderer, dir string, opts htmlpub.Options) error {
	rep, err := htmlpub.New(r, opts).Publish(ctx, dir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d scanned, %d rendered, %d fresh, %d failed\n",
		rep.Scanned, rep.Rendered, rep.Skipped, len(rep.Failed))
	for _, f := range rep.Failed {
		_, _ = fmt.Fprintf(out, "  %s: %v\n", f.Path, f.Err)
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d files failed to render", len(rep.Failed))
	}
	return nil
}
