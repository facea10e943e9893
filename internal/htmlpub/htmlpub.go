// Package htmlpub regenerates the .html sibling of every Markdown file in a
// tree whose HTML is missing or older than the source.
package htmlpub

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/observability"
	"git.home.luguber.info/inful/docsync/internal/render"
	"git.home.luguber.info/inful/docsync/internal/retry"
)

const (
	DefaultThrottle   = time.Second
	DefaultRetryDelay = 5 * time.Second
	DefaultTimeout    = 30 * time.Second
)

// Options tunes the publisher. Negative durations are treated as zero; zero
// Timeout means DefaultTimeout.
type Options struct {
	Throttle   time.Duration // wait before every renderer call
	RetryDelay time.Duration // wait before the single retry
	Timeout    time.Duration // per renderer call
	Recorder   metrics.Recorder
}

// Job pairs a Markdown file with the HTML file generated from it.
type Job struct {
	MarkdownPath string
	HTMLPath     string
}

// FileFailure is a Markdown file that failed to render twice.
type FileFailure struct {
	Path string
	Err  error
}

// Report summarizes one pass over a tree.
type Report struct {
	Scanned  int
	Rendered int
	Skipped  int
	Failed   []FileFailure
}

// Publisher renders stale Markdown files through a Renderer.
type Publisher struct {
	renderer render.Renderer
	opts     Options
	policy   retry.Policy
	recorder metrics.Recorder
}

func New(r render.Renderer, opts Options) *Publisher {
	if opts.Throttle < 0 {
		opts.Throttle = 0
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Publisher{
		renderer: r,
		opts:     opts,
		policy:   retry.Fixed(opts.RetryDelay, 1),
		recorder: metrics.OrNoop(opts.Recorder),
	}
}

// HTMLPath returns the sibling HTML path of a Markdown file. The extension
// match is case-insensitive and the stem keeps its case.
func HTMLPath(markdownPath string) string {
	ext := filepath.Ext(markdownPath)
	if strings.EqualFold(ext, ".md") {
		return strings.TrimSuffix(markdownPath, ext) + ".html"
	}
	return markdownPath + ".html"
}

// Jobs lists a RenderJob for every .md file under root, skipping .git.
func Jobs(root string) ([]Job, error) {
	var jobs []Job
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(p), ".md") {
			jobs = append(jobs, Job{MarkdownPath: p, HTMLPath: HTMLPath(p)})
		}
		return nil
	})
	return jobs, err
}

// Fresh reports whether the HTML output exists and is not older than its source.
func Fresh(job Job) (bool, error) {
	md, err := os.Stat(job.MarkdownPath)
	if err != nil {
		return false, err
	}
	html, err := os.Stat(job.HTMLPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !html.ModTime().Before(md.ModTime()), nil
}

// Publish renders every stale Markdown file below rootDir. A file that fails
// twice is recorded in the report and the pass moves on. The returned error
// is non-nil only when the tree cannot be walked or ctx is cancelled.
func (p *Publisher) Publish(ctx context.Context, rootDir string) (Report, error) {
	var rep Report
	start := time.Now()

	jobs, err := Jobs(rootDir)
	if err != nil {
		return rep, ferrors.FileSystemError("failed to scan markdown tree").
			WithCause(err).WithContext("path", rootDir).Build()
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++

		fresh, err := Fresh(job)
		if err == nil && fresh {
			rep.Skipped++
			p.recorder.IncRenderCall(metrics.ResultSkipped)
			continue
		}
		if err == nil {
			err = p.publishOne(ctx, job)
		}
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Failed = append(rep.Failed, FileFailure{Path: job.MarkdownPath, Err: err})
			p.recorder.IncRenderCall(metrics.ResultFailed)
			observability.WarnContext(ctx, "Markdown render failed",
				logfields.File(job.MarkdownPath),
				logfields.Error(ferrors.RenderFailure(job.MarkdownPath, err).Build()))
			continue
		}
		rep.Rendered++
		p.recorder.IncRenderCall(metrics.ResultSuccess)
		observability.DebugContext(ctx, "Rendered markdown", logfields.File(job.HTMLPath))
	}

	observability.InfoContext(ctx, "HTML publish complete",
		logfields.Path(rootDir),
		slog.Int("scanned", rep.Scanned),
		slog.Int("rendered", rep.Rendered),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", len(rep.Failed)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return rep, nil
}

func (p *Publisher) publishOne(ctx context.Context, job Job) error {
	src, err := os.ReadFile(job.MarkdownPath)
	if err != nil {
		return err
	}
	var html string
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		if err := retry.Sleep(ctx, p.opts.Throttle); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
		out, err := p.renderer.Render(callCtx, string(src))
		if err != nil {
			return err
		}
		html = out
		return nil
	}, func(attempt int, err error) {
		p.recorder.IncRenderRetry()
		observability.WarnContext(ctx, "Retrying markdown render",
			logfields.File(job.MarkdownPath),
			slog.Int("attempt", attempt),
			logfields.Error(err))
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(job.HTMLPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", job.HTMLPath, err)
	}
	return nil
}
