package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docsync"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	runDuration   prom.Histogram
	runOutcomes   *prom.CounterVec
	transitions   *prom.CounterVec
	renderCalls   *prom.CounterVec
	renderRetries prom.Counter
	webhooks      *prom.CounterVec
	queueDepth    prom.Gauge
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by final state",
		}, []string{"outcome"}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_state_transitions_total",
			Help:      "Pipeline state transitions by target state",
		}, []string{"state"}),
		renderCalls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "render_files_total",
			Help:      "Markdown files handled by the HTML publisher by result",
		}, []string{"result"}),
		renderRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "render_retries_total",
			Help:      "Renderer calls repeated after a failure",
		}),
		webhooks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by event type and response status",
		}, []string{"event", "status"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the pipeline queue",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.runOutcomes,
		pr.transitions, pr.renderCalls, pr.renderRetries, pr.webhooks, pr.queueDepth)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncStateTransition(state string) {
	p.transitions.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) IncRenderCall(result ResultLabel) {
	p.renderCalls.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncRenderRetry() { p.renderRetries.Inc() }

func (p *PrometheusRecorder) IncWebhook(event string, status int) {
	p.webhooks.WithLabelValues(event, strconv.Itoa(status)).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) { p.queueDepth.Set(float64(n)) }
