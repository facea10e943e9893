package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder receives pipeline observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // done|failed|discarded
	IncStateTransition(state string)
	IncRenderCall(result ResultLabel)
	IncRenderRetry()
	IncWebhook(event string, status int)
	SetQueueDepth(n int)
}

// NoopRecorder discards everything. It is the default when metrics are off.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) IncStateTransition(string)                  {}
func (NoopRecorder) IncRenderCall(ResultLabel)                  {}
func (NoopRecorder) IncRenderRetry()                            {}
func (NoopRecorder) IncWebhook(string, int)                     {}
func (NoopRecorder) SetQueueDepth(int)                          {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
