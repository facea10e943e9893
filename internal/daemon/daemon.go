// Package daemon assembles the docsync service and owns its lifecycle:
// startup reconciliation, the job queue, the periodic resync, the mapping
// file watcher and the HTTP server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsync/internal/bootstrap"
	"git.home.luguber.info/inful/docsync/internal/commitpub"
	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/eventstore"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/htmlpub"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/mirror"
	"git.home.luguber.info/inful/docsync/internal/notify"
	"git.home.luguber.info/inful/docsync/internal/pipeline"
	"git.home.luguber.info/inful/docsync/internal/queue"
	"git.home.luguber.info/inful/docsync/internal/render"
	"git.home.luguber.info/inful/docsync/internal/reposync"
	"git.home.luguber.info/inful/docsync/internal/server/httpserver"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

const shutdownTimeout = 30 * time.Second

// Options overrides parts of the stack, mostly for tests.
type Options struct {
	Renderer      render.Renderer // defaults to the backend named in the config
	HTTPClient    *http.Client    // used by the GitHub renderer
	SkipBootstrap bool
}

// Daemon is the assembled docsync service.
type Daemon struct {
	cfg    *config.Config
	status atomic.Value // Status

	deps         pipeline.Deps
	rules        *mirror.Store
	history      eventstore.Store
	notifier     notify.Notifier
	registry     *prom.Registry
	orchestrator *pipeline.Orchestrator
	queue        *queue.Queue
	scheduler    *Scheduler
	watcher      *MappingWatcher
	server       *httpserver.Server
	opts         Options
}

// New builds every component from cfg. Nothing runs until Run or Bootstrap.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	d := &Daemon{cfg: cfg, opts: opts}
	d.status.Store(StatusStopped)

	if err := d.build(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) build() error {
	cfg := d.cfg

	rules, err := mirror.NewStore(cfg.MappingFile)
	if err != nil {
		return fmt.Errorf("failed to load mapping file: %w", err)
	}
	d.rules = rules

	renderer := d.opts.Renderer
	if renderer == nil {
		renderer, err = render.New(cfg.Renderer, cfg.Bot.Token, d.opts.HTTPClient)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
	}

	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = ":memory:"
	}
	d.history, err = eventstore.NewSQLiteStore(historyPath)
	if err != nil {
		return err
	}

	d.notifier, err = notify.New(cfg.Notify)
	if err != nil {
		return err
	}

	d.registry = metrics.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(d.registry)

	client := git.NewClient(git.Credentials{Username: cfg.Bot.Username, Token: cfg.Bot.Token})
	bot := git.Identity{Name: cfg.Bot.Name, Email: cfg.Bot.Email}
	d.deps = pipeline.Deps{
		Config: cfg,
		Sync:   reposync.New(client, bot, cfg.Git.Timeout.Std()),
		Mirror: mirror.New(),
		HTML: htmlpub.New(renderer, htmlpub.Options{
			Throttle:   cfg.Renderer.Throttle.Std(),
			RetryDelay: cfg.Renderer.RetryDelay.Std(),
			Timeout:    cfg.Renderer.Timeout.Std(),
			Recorder:   recorder,
		}),
		Commit:   commitpub.New(client, bot, cfg.Git.PushTimeout.Std()),
		Rules:    rules,
		History:  d.history,
		Recorder: recorder,
		Notifier: d.notifier,
	}

	d.orchestrator, err = pipeline.New(d.deps)
	if err != nil {
		return err
	}
	d.queue = queue.New(cfg.Pipeline.QueueSize, cfg.Pipeline.Workers, d.orchestrator)
	d.queue.SetRecorder(recorder)
	d.orchestrator.SetQueue(d.queue)

	d.server = httpserver.New(cfg.Server, httpserver.Options{
		Events:   d.orchestrator,
		Runs:     d.history,
		Queue:    d.queue,
		Metrics:  metrics.HTTPHandler(d.registry),
		Recorder: recorder,
	})
	return nil
}

// Status reports the lifecycle state.
func (d *Daemon) Status() Status { return d.status.Load().(Status) }

// Handler exposes the HTTP routes without listening.
func (d *Daemon) Handler() http.Handler { return d.server.Handler() }

// Bootstrap runs the startup reconciliation once.
func (d *Daemon) Bootstrap(ctx context.Context) (bootstrap.Report, error) {
	r, err := bootstrap.New(d.deps)
	if err != nil {
		return bootstrap.Report{}, err
	}
	return r.Run(ctx)
}

// Run reconciles, starts every background component and serves until ctx
// is canceled, then shuts down in reverse order.
func (d *Daemon) Run(ctx context.Context) error {
	d.status.Store(StatusStarting)
	slog.Info("Starting docsync daemon",
		logfields.Repository(d.cfg.Docs.FullName()),
		slog.String("address", d.cfg.Server.Address))

	if !d.opts.SkipBootstrap {
		if _, err := d.Bootstrap(ctx); err != nil {
			d.status.Store(StatusStopped)
			return fmt.Errorf("startup reconciliation failed: %w", err)
		}
	}

	d.queue.Start(ctx)

	if interval := d.cfg.Schedule.ResyncInterval.Std(); interval > 0 {
		s, err := NewScheduler()
		if err != nil {
			return d.abort(err)
		}
		if _, err := s.ScheduleEvery("resync", interval, resyncTask(ctx, d.orchestrator.Resync)); err != nil {
			_ = s.Stop(ctx)
			return d.abort(err)
		}
		s.Start(ctx)
		d.scheduler = s
	}

	if d.rules.Path() != "" {
		w, err := NewMappingWatcher(d.rules, DefaultMappingDebounce)
		if err != nil {
			return d.abort(err)
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop(ctx)
			return d.abort(err)
		}
		d.watcher = w
	}

	if err := d.server.Start(ctx); err != nil {
		return d.abort(err)
	}

	d.status.Store(StatusRunning)
	slog.Info("docsync daemon running")
	<-ctx.Done()

	return d.shutdown()
}

func (d *Daemon) abort(err error) error {
	_ = d.shutdown()
	return err
}

func (d *Daemon) shutdown() error {
	d.status.Store(StatusStopping)
	slog.Info("Stopping docsync daemon")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.queue.Stop(ctx)
	if err := d.Close(); err != nil {
		errs = append(errs, err)
	}
	d.status.Store(StatusStopped)
	return errors.Join(errs...)
}

// Close releases the history database and the notifier connection.
func (d *Daemon) Close() error {
	var errs []error
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			errs = append(errs, err)
		}
		d.history = nil
	}
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			errs = append(errs, err)
		}
		d.notifier = nil
	}
	return errors.Join(errs...)
}
