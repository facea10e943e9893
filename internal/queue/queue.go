// Package queue runs pipeline jobs on a fixed pool of workers. Jobs that
// touch the same working copy never run at the same time.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
)

// ErrQueueFull is returned by Enqueue when no buffer slot is free.
var ErrQueueFull = errors.New("queue is full")

// Runner executes a job. The pipeline orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *Job) error

func (f RunnerFunc) Run(ctx context.Context, job *Job) error { return f(ctx, job) }

// Queue is a bounded job queue served by a worker pool.
type Queue struct {
	jobs        chan *Job
	workers     int
	maxSize     int
	mu          sync.RWMutex
	pending     map[string]*Job
	active      map[string]*Job
	history     []*Job
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	runner      Runner
	paths       *KeyedMutex
	recorder    metrics.Recorder
}

// New creates a queue. Non-positive sizes fall back to 100 slots and 2 workers.
func New(maxSize, workers int, runner Runner) *Queue {
	if maxSize <= 0 {
		maxSize = 100
	}
	if workers <= 0 {
		workers = 2
	}
	if runner == nil {
		panic("queue.New: runner is required")
	}
	return &Queue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		pending:     make(map[string]*Job),
		active:      make(map[string]*Job),
		historySize: 50,
		stopChan:    make(chan struct{}),
		runner:      runner,
		paths:       NewKeyedMutex(),
		recorder:    metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder.
func (q *Queue) SetRecorder(r metrics.Recorder) {
	q.recorder = metrics.OrNoop(r)
}

// Start launches the workers. They stop when ctx ends or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting job queue", slog.Int("workers", q.workers), slog.Int("max_size", q.maxSize))
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still
// buffered are dropped.
func (q *Queue) Stop(_ context.Context) {
	q.stopOnce.Do(func() { close(q.stopChan) })

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// Length returns the number of buffered jobs.
func (q *Queue) Length() int { return len(q.jobs) }

// ActiveJobs returns copies of the jobs holding a worker.
func (q *Queue) ActiveJobs() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.active))
	for _, j := range q.active {
		out = append(out, *j)
	}
	return out
}

// Enqueue adds job without blocking.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if job.ID == "" {
		return errors.New("job ID is required")
	}
	q.mu.Lock()
	job.Status = JobStatusQueued
	q.pending[job.ID] = job
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		return nil
	default:
		q.mu.Lock()
		delete(q.pending, job.ID)
		q.mu.Unlock()
		return ErrQueueFull
	}
}

// JobSnapshot returns a copy of a queued, running or recently finished job.
func (q *Queue) JobSnapshot(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if j, ok := q.active[id]; ok {
		return *j, true
	}
	if j, ok := q.pending[id]; ok {
		return *j, true
	}
	for _, j := range q.history {
		if j.ID == id {
			return *j, true
		}
	}
	return Job{}, false
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			q.recorder.SetQueueDepth(len(q.jobs))
			if job != nil {
				q.processJob(ctx, job, id)
			}
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID int) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q.mu.Lock()
	job.cancel = cancel
	delete(q.pending, job.ID)
	q.active[job.ID] = job
	q.mu.Unlock()

	unlock := q.paths.Lock(job.TargetPaths...)
	defer unlock()

	start := time.Now()
	q.mu.Lock()
	job.StartedAt = &start
	job.Status = JobStatusRunning
	q.mu.Unlock()

	slog.Debug("Job started",
		logfields.RunID(job.ID),
		logfields.Worker(workerID),
		slog.String("kind", string(job.Kind)))

	err := q.runner.Run(jobCtx, job)
	q.markJobCompleted(job, err)
}

func (q *Queue) markJobCompleted(job *Job, err error) {
	end := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	job.CompletedAt = &end
	if job.StartedAt != nil {
		job.Duration = end.Sub(*job.StartedAt)
	}
	switch {
	case err == nil:
		job.Status = JobStatusCompleted
	case errors.Is(err, context.Canceled):
		job.Status = JobStatusCancelled
		job.Error = err.Error()
	default:
		job.Status = JobStatusFailed
		job.Error = err.Error()
	}
	delete(q.active, job.ID)
	q.addToHistory(job)
}

func (q *Queue) addToHistory(job *Job) {
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
