package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"

	"github.com/google/go-github/v66/github"

	"git.home.luguber.info/inful/docsync/internal/event"
	"git.home.luguber.info/inful/docsync/internal/forge"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
)

// maxPayloadBytes matches GitHub's webhook payload cap.
const maxPayloadBytes = 25 << 20

// EventHandler accepts a parsed event; the pipeline orchestrator implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev event.RepoEvent) (jobID string, accepted bool)
}

// WebhookResponse is the body of every acknowledged delivery.
type WebhookResponse struct {
	Status     string `json:"status"` // queued | ignored | pong
	Event      string `json:"event"`
	JobID      string `json:"job_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// WebhookHandlers turns GitHub deliveries into pipeline runs.
type WebhookHandlers struct {
	secret       string
	events       EventHandler
	recorder     metrics.Recorder
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewWebhookHandlers creates the handlers. An empty secret disables
// signature checks.
func NewWebhookHandlers(secret string, events EventHandler, recorder metrics.Recorder) *WebhookHandlers {
	return &WebhookHandlers{
		secret:       secret,
		events:       events,
		recorder:     metrics.OrNoop(recorder),
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleDocsWebhook accepts push events for the docs repository (or any
// repository when other repositories are allowed).
func (h *WebhookHandlers) HandleDocsWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, forge.EventPush)
}

// HandleWikiWebhook accepts gollum events.
func (h *WebhookHandlers) HandleWikiWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, forge.EventGollum)
}

// HandleGenericWebhook accepts both push and gollum events.
func (h *WebhookHandlers) HandleGenericWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, forge.EventPush, forge.EventGollum)
}

func (h *WebhookHandlers) handle(w http.ResponseWriter, r *http.Request, accepted ...string) {
	eventType := github.WebHookType(r)
	delivery := github.DeliveryID(r)
	if r.Method != http.MethodPost {
		h.recorder.IncWebhook(eventType, http.StatusMethodNotAllowed)
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.fail(w, r, eventType, ferrors.ValidationError("failed to read webhook body").WithCause(err).Build())
		return
	}

	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(github.SHA1SignatureHeader)
	}
	if err := forge.ValidateSignature(body, signature, h.secret); err != nil {
		h.fail(w, r, eventType, err)
		return
	}

	if eventType == forge.EventPing {
		h.ack(w, r, http.StatusOK, WebhookResponse{Status: "pong", Event: eventType, DeliveryID: delivery})
		return
	}
	if !slices.Contains(accepted, eventType) {
		slog.Info("Webhook event ignored", logfields.Event(eventType), logfields.DeliveryID(delivery))
		h.ack(w, r, http.StatusAccepted, WebhookResponse{Status: "ignored", Event: eventType, DeliveryID: delivery})
		return
	}

	payload, err := payloadFrom(r.Header.Get("Content-Type"), body)
	if err != nil {
		h.fail(w, r, eventType, err)
		return
	}
	ev, err := forge.ParseEvent(eventType, payload)
	if err != nil {
		h.fail(w, r, eventType, err)
		return
	}

	jobID, queued := h.events.Handle(r.Context(), ev)
	status := "ignored"
	if queued {
		status = "queued"
	}
	slog.Info("Webhook received",
		logfields.Event(eventType),
		logfields.DeliveryID(delivery),
		logfields.Repository(ev.Repository().FullName),
		logfields.RunID(jobID),
		logfields.JobStatus(status))
	h.ack(w, r, http.StatusAccepted, WebhookResponse{Status: status, Event: eventType, JobID: jobID, DeliveryID: delivery})
}

// payloadFrom returns the JSON document of a delivery. Form-encoded
// deliveries carry it in the "payload" field.
func payloadFrom(contentType string, body []byte) ([]byte, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "application/x-www-form-urlencoded" {
		return body, nil
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, ferrors.ValidationError("malformed form payload").WithCause(err).Build()
	}
	p := form.Get("payload")
	if p == "" {
		return nil, ferrors.ValidationError("form payload missing").Build()
	}
	return []byte(p), nil
}

func (h *WebhookHandlers) ack(w http.ResponseWriter, r *http.Request, status int, resp WebhookResponse) {
	h.recorder.IncWebhook(resp.Event, status)
	if err := writeJSON(w, r, status, resp); err != nil {
		slog.Error("failed to write webhook response", logfields.Error(err))
	}
}

func (h *WebhookHandlers) fail(w http.ResponseWriter, r *http.Request, eventType string, err error) {
	if errors.Is(err, forge.ErrUnsupportedEvent) {
		h.ack(w, r, http.StatusAccepted, WebhookResponse{Status: "ignored", Event: eventType})
		return
	}
	h.recorder.IncWebhook(eventType, h.errorAdapter.StatusCodeFor(err))
	h.errorAdapter.WriteErrorResponse(w, r, err)
}
