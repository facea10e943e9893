package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docsync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/queue"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

// RunLookup reads the run history.
type RunLookup interface {
	ByRun(ctx context.Context, runID string) ([]eventstore.RunRecord, error)
	Range(ctx context.Context, start, end time.Time) ([]eventstore.RunRecord, error)
	Recent(ctx context.Context, limit int) ([]eventstore.RunRecord, error)
}

// QueueStatus reports the job queue load and the state of individual jobs.
type QueueStatus interface {
	Length() int
	ActiveJobs() []queue.Job
	JobSnapshot(id string) (queue.Job, bool)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime_seconds"`
	Queued    int       `json:"queued"`
	Running   int       `json:"running"`
}

// RunResponse is the body of GET /runs/{id}: the recorded transitions plus
// the queue's view of the job while the queue still tracks it.
type RunResponse struct {
	eventstore.RunSummary
	Job *queue.Job `json:"job,omitempty"`
}

// RunListResponse is the body of GET /runs.
type RunListResponse struct {
	Records []eventstore.RunRecord `json:"records"`
}

// MonitoringHandlers serves health and run history endpoints.
type MonitoringHandlers struct {
	runs         RunLookup
	queue        QueueStatus
	started      time.Time
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates the handlers. runs and queue may be nil.
func NewMonitoringHandlers(runs RunLookup, queue QueueStatus) *MonitoringHandlers {
	return &MonitoringHandlers{
		runs:         runs,
		queue:        queue,
		started:      time.Now(),
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Seconds(),
	}
	if h.queue != nil {
		resp.Queued = h.queue.Length()
		resp.Running = len(h.queue.ActiveJobs())
	}
	_ = writeJSON(w, r, http.StatusOK, resp)
}

// HandleRun serves one run, GET /runs/{id}. A run is found when either the
// history or the queue knows it.
func (h *MonitoringHandlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := r.PathValue("id")

	var resp RunResponse
	found := false
	if h.runs != nil {
		recs, err := h.runs.ByRun(r.Context(), id)
		if err != nil {
			h.errorAdapter.WriteErrorResponse(w, r, err)
			return
		}
		resp.RunSummary, found = eventstore.Summarize(recs)
	}
	if h.queue != nil {
		if job, ok := h.queue.JobSnapshot(id); ok {
			resp.Job = &job
			if !found {
				resp.RunSummary = eventstore.RunSummary{
					RunID:   job.ID,
					State:   string(job.Status),
					Started: job.CreatedAt,
					Updated: job.CreatedAt,
				}
				found = true
			}
		}
	}
	if !found {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.NewError(ferrors.CategoryNotFound, "run not found").WithContext("run_id", id).Build())
		return
	}
	_ = writeJSON(w, r, http.StatusOK, resp)
}

// HandleRuns lists recorded transitions, GET /runs. With since (and
// optionally until) as RFC 3339 times it returns that window in append
// order; otherwise the latest limit records, newest first.
func (h *MonitoringHandlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if h.runs == nil {
		h.errorAdapter.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "run history disabled").Build())
		return
	}
	q := r.URL.Query()

	var (
		recs []eventstore.RunRecord
		err  error
	)
	if since := q.Get("since"); since != "" {
		start, perr := time.Parse(time.RFC3339, since)
		if perr != nil {
			h.badQuery(w, r, "since", perr)
			return
		}
		end := time.Now()
		if until := q.Get("until"); until != "" {
			if end, perr = time.Parse(time.RFC3339, until); perr != nil {
				h.badQuery(w, r, "until", perr)
				return
			}
		}
		recs, err = h.runs.Range(r.Context(), start, end)
	} else {
		limit := defaultRunsLimit
		if v := q.Get("limit"); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil || n <= 0 {
				h.badQuery(w, r, "limit", perr)
				return
			}
			limit = min(n, maxRunsLimit)
		}
		recs, err = h.runs.Recent(r.Context(), limit)
	}
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if recs == nil {
		recs = []eventstore.RunRecord{}
	}
	_ = writeJSON(w, r, http.StatusOK, RunListResponse{Records: recs})
}

func (h *MonitoringHandlers) badQuery(w http.ResponseWriter, r *http.Request, param string, cause error) {
	b := ferrors.ValidationError("invalid query parameter").WithContext("param", param)
	if cause != nil {
		b = b.WithCause(cause)
	}
	h.errorAdapter.WriteErrorResponse(w, r, b.Build())
}
