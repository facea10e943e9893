// Package render converts Markdown text to HTML. Two backends exist: the
// GitHub Markdown API, which matches how GitHub itself shows the pages, and a
// local goldmark renderer for offline use.
package render

import (
	"context"
	"fmt"
	"net/http"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// Renderer turns one Markdown document into HTML. Implementations must be
// safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, markdown string) (string, error)
}

// Func adapts a plain function to Renderer.
type Func func(ctx context.Context, markdown string) (string, error)

func (f Func) Render(ctx context.Context, markdown string) (string, error) { return f(ctx, markdown) }

// New selects the backend named by cfg.Kind. token authenticates GitHub API
// calls and may be empty.
func New(cfg config.RendererConfig, token string, httpClient *http.Client) (Renderer, error) {
	switch cfg.Kind {
	case config.RendererGitHub, "":
		return NewGitHub(token, cfg.APIURL, httpClient)
	case config.RendererGoldmark:
		return NewGoldmark(), nil
	default:
		return nil, fmt.Errorf("unknown renderer kind %q", cfg.Kind)
	}
}
