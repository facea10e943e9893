package config

import "git.home.luguber.info/inful/docsync/internal/foundation/normalization"

// RendererKind selects the Markdown to HTML backend.
type RendererKind string

const (
	RendererGitHub   RendererKind = "github"
	RendererGoldmark RendererKind = "goldmark"
)

var rendererKinds = normalization.NewEnumNormalizer("renderer.kind", map[string]RendererKind{
	"github":   RendererGitHub,
	"goldmark": RendererGoldmark,
	"local":    RendererGoldmark,
}, RendererGitHub)

// NormalizeRendererKind case-folds raw and maps aliases; empty input selects GitHub.
// Unknown values are returned unchanged so validation can report them.
func NormalizeRendererKind(raw string) RendererKind {
	if raw == "" {
		return RendererGitHub
	}
	if k, err := rendererKinds.NormalizeWithValidation(raw); err == nil {
		return k
	}
	return RendererKind(raw)
}
