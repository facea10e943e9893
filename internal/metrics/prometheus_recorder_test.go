package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("publish", 150*time.Millisecond)
	pr.IncStageResult("publish", ResultSuccess)
	pr.ObserveRunDuration(2 * time.Second)
	pr.IncRunOutcome("done")
	pr.IncStateTransition("Syncing")
	pr.IncStateTransition("Syncing")
	pr.IncRenderCall(ResultFailed)
	pr.IncRenderRetry()
	pr.IncWebhook("push", 202)
	pr.SetQueueDepth(3)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.transitions.WithLabelValues("Syncing")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.renderCalls.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.webhooks.WithLabelValues("push", "202")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.queueDepth), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	reg := NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome("failed")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `docsync_run_outcomes_total{outcome="failed"} 1`)
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopRecorder{}, OrNoop(nil))
	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, OrNoop(pr))
}
