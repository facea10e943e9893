package queue

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docsync/internal/event"
)

// JobKind says what started a job.
type JobKind string

const (
	JobKindPush      JobKind = "push"      // docs or repository push webhook
	JobKindWiki      JobKind = "wiki"      // gollum webhook
	JobKindResync    JobKind = "resync"    // scheduled resync
	JobKindBootstrap JobKind = "bootstrap" // startup reconciliation
)

// JobStatus is the lifecycle state of a job in the queue.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "canceled"
)

// Job is one pipeline run waiting for or holding a worker.
type Job struct {
	ID          string          `json:"id"`
	Kind        JobKind         `json:"kind"`
	Event       event.RepoEvent `json:"-"`
	TargetPaths []string        `json:"target_paths"`
	Status      JobStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"`
	Error       string          `json:"error,omitempty"`

	cancel context.CancelFunc
}

// NewJob creates a queued job with a fresh ID. targets are the working
// copies the job mutates; they are cleaned, de-duplicated and sorted so
// that locks are always taken in the same order.
func NewJob(kind JobKind, ev event.RepoEvent, targets ...string) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Event:       ev,
		TargetPaths: normalizeTargets(targets),
		Status:      JobStatusQueued,
		CreatedAt:   time.Now(),
	}
}

// SetTargets replaces the job's working copies, normalized as in NewJob.
func (j *Job) SetTargets(targets ...string) {
	j.TargetPaths = normalizeTargets(targets)
}

func normalizeTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" {
			continue
		}
		c := filepath.Clean(t)
		if abs, err := filepath.Abs(c); err == nil {
			c = abs
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
