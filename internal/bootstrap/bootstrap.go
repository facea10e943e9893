// Package bootstrap reconciles the local working copies with their remotes
// when the service starts, seeding the docs tree from the wiki if asked to.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docsync/internal/commitpub"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/htmlpub"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/mirror"
	"git.home.luguber.info/inful/docsync/internal/pipeline"
)

// Report summarizes a startup pass.
type Report struct {
	Migrated bool
	Cleaned  int
	Mirror   mirror.Report
	HTML     htmlpub.Report
	Commit   commitpub.Result
	Duration time.Duration
}

// Reconciler runs the startup pass with the same stages as the pipeline.
type Reconciler struct {
	deps  pipeline.Deps
	clean func(docsDir string) (int, error)
}

func New(deps pipeline.Deps) (*Reconciler, error) {
	if deps.Config == nil || deps.Sync == nil || deps.Mirror == nil || deps.HTML == nil || deps.Commit == nil {
		return nil, errors.New("bootstrap: config and all stages are required")
	}
	if deps.Rules == nil {
		deps.Rules = mirror.NewStaticStore(nil)
	}
	return &Reconciler{deps: deps, clean: mirror.Clean}, nil
}

// Run creates the local paths, brings docs up to date, migrates the wiki
// when enabled, regenerates stale HTML and publishes the result.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report
	start := time.Now()
	cfg := r.deps.Config
	docs := cfg.Docs.LocalPath

	if err := os.MkdirAll(docs, 0o750); err != nil {
		return rep, ferrors.FileSystemError("failed to create docs path").WithCause(err).WithContext("path", docs).Build()
	}
	if err := r.deps.Sync.EnsureUpToDate(ctx, cfg.Docs.CloneURL(), docs); err != nil {
		return rep, err
	}

	message := commitpub.MessageFor(cfg.Docs.FullName())
	if cfg.Migration.Enabled {
		if err := r.migrate(ctx, &rep); err != nil {
			return rep, err
		}
		message = commitpub.WikiMigrationMessage(cfg.Wiki.Owner, cfg.Wiki.Name)
	}

	html, err := r.deps.HTML.Publish(ctx, docs)
	rep.HTML = html
	if err != nil {
		return rep, err
	}

	rep.Commit, err = r.deps.Commit.CommitAndPush(ctx, docs, message, ".")
	if err != nil {
		return rep, err
	}
	rep.Duration = time.Since(start)
	slog.Info("Startup reconciliation complete",
		logfields.Path(docs),
		slog.Bool("migrated", rep.Migrated),
		slog.Bool("committed", rep.Commit.Committed),
		logfields.DurationMS(float64(rep.Duration.Milliseconds())))
	return rep, nil
}

func (r *Reconciler) migrate(ctx context.Context, rep *Report) error {
	cfg := r.deps.Config
	wiki, docs := cfg.Wiki.LocalPath, cfg.Docs.LocalPath

	if err := os.MkdirAll(wiki, 0o750); err != nil {
		return ferrors.FileSystemError("failed to create wiki path").WithCause(err).WithContext("path", wiki).Build()
	}
	if err := r.deps.Sync.EnsureUpToDate(ctx, cfg.Wiki.WikiCloneURL(), wiki); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(docs, mirror.WikiDir), 0o750); err != nil {
		return ferrors.FileSystemError("failed to create wiki mirror directory").WithCause(err).WithContext("path", docs).Build()
	}
	if cfg.Migration.CleanOnStart {
		n, err := r.clean(docs)
		rep.Cleaned = n
		if err != nil {
			return err
		}
	}

	mrep, err := r.deps.Mirror.Mirror(ctx, wiki, docs, r.deps.Rules.Rules())
	rep.Mirror = mrep
	rep.Migrated = true
	if err != nil {
		if ctx.Err() != nil || ferrors.GetSeverity(err) == ferrors.SeverityFatal {
			return err
		}
		slog.Warn("Wiki migration incomplete", logfields.Error(err))
	}
	return nil
}
