package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// writeJSON buffers the encoded body so an encode error never leaves a
// half-written response. ?pretty=1 (or true) indents the output.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if r != nil {
		if p := r.URL.Query().Get("pretty"); p == "1" || p == "true" {
			enc.SetIndent("", "  ")
		}
	}
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", logfields.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed to write JSON response", logfields.Error(err))
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	_ = writeJSON(w, r, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
