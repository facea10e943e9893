package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter turns errors into JSON responses with a matching status code.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter uses slog.Default when logger is nil.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON body written for a failed request.
type HTTPErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusCodeFor maps an error category onto an HTTP status. Unclassified
// errors are 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	ce, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryNetwork, CategoryGit, CategoryForge:
		return http.StatusBadGateway
	case CategoryQueue, CategoryRuntime:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes err as JSON and logs it at a level derived from its severity.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := a.StatusCodeFor(err)
	body, jerr := json.Marshal(a.FormatErrorResponse(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if jerr != nil {
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
	} else {
		_, _ = w.Write(body)
	}

	level := slog.LevelError
	if ce, ok := AsClassified(err); ok {
		if ce.Severity() == SeverityWarning {
			level = slog.LevelWarn
		}
	}
	a.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))
}

// FormatErrorResponse builds the response body for err.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	ce, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{Error: ce.Message(), Code: string(ce.Category())}
	if len(ce.Context()) > 0 {
		resp.Details = map[string]any(ce.Context())
	}
	return resp
}
