package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/render"
	helpers "git.home.luguber.info/inful/docsync/internal/testutil/testutils"
)

func testConfig(t *testing.T, docsRemote string, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
docs: {owner: acme, name: docs, remote_url: ` + docsRemote + `}
renderer: {kind: goldmark, throttle: 1ns}
pipeline: {repos_dir: ` + t.TempDir() + `}
server: {address: "127.0.0.1:0"}
` + extra))
	require.NoError(t, err)
	return cfg
}

func TestDaemonBootstrapPublishesHTML(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "# Docs\n\nHello"})
	d, err := New(testConfig(t, remote, ""), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	rep, err := d.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Commit.Committed)
	assert.False(t, rep.Migrated)

	html, ok := helpers.RemoteFile(t, remote, "README.html")
	require.True(t, ok)
	assert.Contains(t, html, "Hello")
	msg, _ := helpers.RemoteHead(t, remote)
	assert.Equal(t, "Latest changes from acme/docs.", msg)
}

func TestDaemonHandlerServesHealth(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "# Docs"})
	d, err := New(testConfig(t, remote, ""), Options{Renderer: render.NewGoldmark()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docsync_queue_depth")
}

func TestDaemonRunLifecycle(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "# Docs"})
	cfg := testConfig(t, remote, "schedule: {resync_interval: 1h}\n")
	d, err := New(cfg, Options{SkipBootstrap: true})
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, d.Status())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Status() == StatusRunning }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, StatusStopped, d.Status())
}

func TestNewRejectsMissingMappingFile(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "# Docs"})
	cfg := testConfig(t, remote, "mapping_file: "+t.TempDir()+"/missing.yaml\n")
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}
