// Package pipeline runs the synchronization and publish pipeline for one
// repository event: classify, sync, mirror, render, commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsync/internal/commitpub"
	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/event"
	"git.home.luguber.info/inful/docsync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/htmlpub"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/mirror"
	"git.home.luguber.info/inful/docsync/internal/notify"
	"git.home.luguber.info/inful/docsync/internal/observability"
	"git.home.luguber.info/inful/docsync/internal/queue"
)

// Stage collaborators. The concrete implementations live in reposync,
// mirror, htmlpub and commitpub.
type (
	Syncer interface {
		EnsureUpToDate(ctx context.Context, remoteURL, localPath string) error
	}
	Mirrorer interface {
		Mirror(ctx context.Context, wikiDir, docsDir string, rules []mirror.Rule) (mirror.Report, error)
	}
	HTMLPublisher interface {
		Publish(ctx context.Context, rootDir string) (htmlpub.Report, error)
	}
	CommitPublisher interface {
		CommitAndPush(ctx context.Context, workingCopy, message, scope string) (commitpub.Result, error)
	}
	RuleSource interface {
		Rules() []mirror.Rule
	}
	History interface {
		Append(ctx context.Context, rec eventstore.RunRecord) error
	}
	Enqueuer interface {
		Enqueue(job *queue.Job) error
	}
)

// Deps wires an Orchestrator. History, Recorder and Notifier are optional.
type Deps struct {
	Config   *config.Config
	Sync     Syncer
	Mirror   Mirrorer
	HTML     HTMLPublisher
	Commit   CommitPublisher
	Rules    RuleSource
	History  History
	Recorder metrics.Recorder
	Notifier notify.Notifier
}

type Orchestrator struct {
	cfg      *config.Config
	bot      event.Bot
	sync     Syncer
	mirror   Mirrorer
	html     HTMLPublisher
	commit   CommitPublisher
	rules    RuleSource
	history  History
	recorder metrics.Recorder
	notifier notify.Notifier
	queue    Enqueuer
}

func New(d Deps) (*Orchestrator, error) {
	if d.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if d.Sync == nil || d.Mirror == nil || d.HTML == nil || d.Commit == nil {
		return nil, errors.New("pipeline: sync, mirror, html and commit stages are required")
	}
	o := &Orchestrator{
		cfg:      d.Config,
		bot:      event.Bot{Name: d.Config.Bot.Name, Email: d.Config.Bot.Email},
		sync:     d.Sync,
		mirror:   d.Mirror,
		html:     d.HTML,
		commit:   d.Commit,
		rules:    d.Rules,
		history:  d.History,
		recorder: metrics.OrNoop(d.Recorder),
		notifier: d.Notifier,
	}
	if o.rules == nil {
		o.rules = mirror.NewStaticStore(nil)
	}
	if o.notifier == nil {
		o.notifier = notify.Noop{}
	}
	return o, nil
}

// SetQueue attaches the queue Handle enqueues on. The queue runs jobs
// through Run, so it is created after the Orchestrator.
func (o *Orchestrator) SetQueue(q Enqueuer) { o.queue = q }

// Handle classifies ev and, when it is relevant, queues a run for it. It
// never blocks on the run. accepted is false for discarded events and when
// the queue is full; jobID identifies the run history either way.
func (o *Orchestrator) Handle(ctx context.Context, ev event.RepoEvent) (jobID string, accepted bool) {
	job := queue.NewJob(kindOf(ev), ev)
	repo := ""
	if !event.IsNil(ev) {
		repo = ev.Repository().FullName
	}
	o.transition(ctx, job.ID, repo, StateReceived, "")

	d := event.Classify(ev, o.bot)
	o.transition(ctx, job.ID, repo, StateClassified, d.Reason)
	if !d.Relevant {
		o.discard(ctx, job.ID, repo, d.Reason)
		return job.ID, false
	}
	p, reason := planFor(o.cfg, ev)
	if reason != "" {
		o.discard(ctx, job.ID, repo, reason)
		return job.ID, false
	}
	job.Kind = p.Kind
	job.SetTargets(p.targets()...)

	if o.queue == nil {
		o.finish(ctx, job.ID, repo, time.Now(), errors.New("no queue attached"))
		return job.ID, false
	}
	if err := o.queue.Enqueue(job); err != nil {
		o.finish(ctx, job.ID, repo, time.Now(), ferrors.WrapError(err, ferrors.CategoryQueue, "run not queued").Build())
		return job.ID, false
	}
	slog.Info("Run queued", logfields.RunID(job.ID), logfields.Repository(repo), logfields.Event(string(job.Kind)))
	return job.ID, true
}

// Resync queues a run that refreshes and republishes the docs tree.
func (o *Orchestrator) Resync(ctx context.Context) (string, error) {
	p := resyncPlan(o.cfg)
	job := queue.NewJob(queue.JobKindResync, nil, p.targets()...)
	o.transition(ctx, job.ID, p.Repository, StateReceived, "scheduled resync")
	if o.queue == nil {
		return job.ID, errors.New("no queue attached")
	}
	if err := o.queue.Enqueue(job); err != nil {
		o.finish(ctx, job.ID, p.Repository, time.Now(), err)
		return job.ID, err
	}
	return job.ID, nil
}

// Run executes a queued job. It implements queue.Runner. Stage errors end
// the run in Failed and are returned for the queue's bookkeeping only.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job) error {
	ctx = observability.WithRunID(ctx, job.ID)
	var p plan
	switch job.Kind {
	case queue.JobKindResync:
		p = resyncPlan(o.cfg)
	default:
		if event.IsNil(job.Event) {
			return fmt.Errorf("job %s has no event", job.ID)
		}
		var reason string
		if p, reason = planFor(o.cfg, job.Event); reason != "" {
			o.discard(ctx, job.ID, job.Event.Repository().FullName, reason)
			return nil
		}
	}
	ctx = observability.WithRepository(ctx, p.Repository)
	start := time.Now()
	err := o.execute(ctx, job.ID, p)
	o.finish(ctx, job.ID, p.Repository, start, err)
	return err
}

func (o *Orchestrator) execute(ctx context.Context, runID string, p plan) error {
	o.transition(ctx, runID, p.Repository, StateSyncing, "")
	for _, c := range p.Sync {
		if err := o.stage(ctx, "sync", func(ctx context.Context) error {
			return o.sync.EnsureUpToDate(ctx, c.Remote, c.Path)
		}); err != nil {
			return err
		}
	}

	if p.Mirror {
		o.transition(ctx, runID, p.Repository, StateMirroring, "")
		err := o.stage(ctx, "mirror", func(ctx context.Context) error {
			_, err := o.mirror.Mirror(ctx, p.WikiDir, p.PublishDir, o.rules.Rules())
			return err
		})
		if err != nil {
			if ctx.Err() != nil || ferrors.GetSeverity(err) == ferrors.SeverityFatal {
				return err
			}
			observability.WarnContext(ctx, "Mirror incomplete, continuing", logfields.Error(err))
		}
	}

	o.transition(ctx, runID, p.Repository, StatePublishing, "")
	var htmlRep htmlpub.Report
	if err := o.stage(ctx, "render", func(ctx context.Context) error {
		var err error
		htmlRep, err = o.html.Publish(ctx, p.PublishDir)
		return err
	}); err != nil {
		return err
	}
	if len(htmlRep.Failed) > 0 {
		observability.WarnContext(ctx, "Some markdown files were not rendered", logfields.Count(len(htmlRep.Failed)))
	}

	o.transition(ctx, runID, p.Repository, StateCommitting, "")
	var res commitpub.Result
	if err := o.stage(ctx, "commit", func(ctx context.Context) error {
		var err error
		res, err = o.commit.CommitAndPush(ctx, p.PublishDir, p.Message, ".")
		return err
	}); err != nil {
		return err
	}

	if res.Committed {
		msg := notify.Message{RunID: runID, Repository: p.Repository, Commit: res.Commit, Timestamp: time.Now().UTC()}
		if err := o.notifier.Notify(ctx, msg); err != nil {
			observability.WarnContext(ctx, "Publish notification failed", logfields.Error(err))
		}
	}
	return nil
}

// stage times fn and records its result under name. fn gets a context
// tagged with the stage for logging.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn(observability.WithStage(ctx, name))
	o.recorder.ObserveStageDuration(name, time.Since(start))
	switch {
	case err == nil:
		o.recorder.IncStageResult(name, metrics.ResultSuccess)
	case ferrors.GetSeverity(err) == ferrors.SeverityWarning:
		o.recorder.IncStageResult(name, metrics.ResultWarning)
	default:
		o.recorder.IncStageResult(name, metrics.ResultFailed)
	}
	return err
}

func (o *Orchestrator) finish(ctx context.Context, runID, repo string, start time.Time, err error) {
	o.recorder.ObserveRunDuration(time.Since(start))
	logCtx := observability.WithRepository(observability.WithRunID(ctx, runID), repo)
	if err != nil {
		observability.ErrorContext(logCtx, "Run failed", logfields.Error(err))
		o.transition(ctx, runID, repo, StateFailed, err.Error())
		o.recorder.IncRunOutcome(StateFailed.outcome())
		return
	}
	observability.InfoContext(logCtx, "Run complete", logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	o.transition(ctx, runID, repo, StateDone, "")
	o.recorder.IncRunOutcome(StateDone.outcome())
}

func (o *Orchestrator) discard(ctx context.Context, runID, repo, reason string) {
	logCtx := observability.WithRepository(observability.WithRunID(ctx, runID), repo)
	observability.InfoContext(logCtx, "Event discarded", logfields.Reason(reason))
	o.transition(ctx, runID, repo, StateDiscarded, reason)
	o.recorder.IncRunOutcome(StateDiscarded.outcome())
}

// transition appends to the run history. History failures are logged and
// never affect the run. A cancelled run still gets its final record.
func (o *Orchestrator) transition(ctx context.Context, runID, repo string, s State, detail string) {
	o.recorder.IncStateTransition(string(s))
	slog.Debug("Run state", logfields.RunID(runID), logfields.State(string(s)), logfields.Reason(detail))
	if o.history == nil {
		return
	}
	rec := eventstore.RunRecord{RunID: runID, State: string(s), Repository: repo, Detail: detail}
	if err := o.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("Failed to record run state", logfields.RunID(runID), logfields.State(string(s)), logfields.Error(err))
	}
}

func kindOf(ev event.RepoEvent) queue.JobKind {
	if !event.IsNil(ev) && ev.Kind() == event.KindWiki {
		return queue.JobKindWiki
	}
	return queue.JobKindPush
}
