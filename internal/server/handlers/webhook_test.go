package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/event"
)

const pushBody = `{
  "ref": "refs/heads/master",
  "repository": {"full_name": "acme/docs", "name": "docs", "owner": {"login": "acme"}},
  "pusher": {"email": "alice@example.com"},
  "commits": [{"id": "c1", "modified": ["guide.md"], "committer": {"email": "alice@example.com"}}]
}`

const gollumBody = `{
  "pages": [{"page_name": "Home", "action": "edited"}],
  "repository": {"full_name": "acme/project"},
  "sender": {"email": "bob@example.com"}
}`

type fakeEvents struct {
	mu       sync.Mutex
	got      []event.RepoEvent
	accepted bool
}

func (f *fakeEvents) Handle(_ context.Context, ev event.RepoEvent) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	if !f.accepted {
		return "", false
	}
	return "job-1", true
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func delivery(method, eventType, body string) *http.Request {
	req := httptest.NewRequest(method, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "d-1")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) WebhookResponse {
	t.Helper()
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWebhookQueuesPush(t *testing.T) {
	events := &fakeEvents{accepted: true}
	h := NewWebhookHandlers("", events, nil)

	rec := httptest.NewRecorder()
	h.HandleDocsWebhook(rec, delivery(http.MethodPost, "push", pushBody))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "d-1", resp.DeliveryID)
	require.Len(t, events.got, 1)
	assert.Equal(t, "acme/docs", events.got[0].Repository().FullName)
}

func TestWebhookReportsIgnoredWhenNotAccepted(t *testing.T) {
	h := NewWebhookHandlers("", &fakeEvents{}, nil)

	rec := httptest.NewRecorder()
	h.HandleWikiWebhook(rec, delivery(http.MethodPost, "gollum", gollumBody))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "ignored", resp.Status)
	assert.Empty(t, resp.JobID)
}

func TestWebhookSignature(t *testing.T) {
	events := &fakeEvents{accepted: true}
	h := NewWebhookHandlers("s3cret", events, nil)

	t.Run("valid", func(t *testing.T) {
		req := delivery(http.MethodPost, "push", pushBody)
		req.Header.Set("X-Hub-Signature-256", sign("s3cret", pushBody))
		rec := httptest.NewRecorder()
		h.HandleGenericWebhook(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		req := delivery(http.MethodPost, "push", pushBody)
		req.Header.Set("X-Hub-Signature-256", sign("other", pushBody))
		rec := httptest.NewRecorder()
		h.HandleGenericWebhook(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleGenericWebhook(rec, delivery(http.MethodPost, "push", pushBody))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	assert.Len(t, events.got, 1)
}

func TestWebhookRejectsNonPost(t *testing.T) {
	h := NewWebhookHandlers("", &fakeEvents{}, nil)
	rec := httptest.NewRecorder()
	h.HandleGenericWebhook(rec, delivery(http.MethodGet, "push", ""))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestWebhookPing(t *testing.T) {
	events := &fakeEvents{accepted: true}
	h := NewWebhookHandlers("", events, nil)
	rec := httptest.NewRecorder()
	h.HandleGenericWebhook(rec, delivery(http.MethodPost, "ping", `{"zen":"ok"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", decode(t, rec).Status)
	assert.Empty(t, events.got)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	events := &fakeEvents{accepted: true}
	h := NewWebhookHandlers("", events, nil)

	rec := httptest.NewRecorder()
	h.HandleGenericWebhook(rec, delivery(http.MethodPost, "issues", `{}`))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "ignored", decode(t, rec).Status)

	// the docs route only takes push events
	rec = httptest.NewRecorder()
	h.HandleDocsWebhook(rec, delivery(http.MethodPost, "gollum", gollumBody))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "ignored", decode(t, rec).Status)

	assert.Empty(t, events.got)
}

func TestWebhookMalformedPayload(t *testing.T) {
	h := NewWebhookHandlers("", &fakeEvents{accepted: true}, nil)
	rec := httptest.NewRecorder()
	h.HandleGenericWebhook(rec, delivery(http.MethodPost, "push", `{"ref":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookFormEncoded(t *testing.T) {
	events := &fakeEvents{accepted: true}
	h := NewWebhookHandlers("", events, nil)

	form := url.Values{"payload": {gollumBody}}.Encode()
	req := delivery(http.MethodPost, "gollum", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleWikiWebhook(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, events.got, 1)
	assert.Equal(t, event.KindWiki, events.got[0].Kind())
}
