package logfields

import "log/slog"

// Canonical log field names shared by every package.
const (
	KeyRunID      = "run_id"
	KeyJobStatus  = "job_status"
	KeyEvent      = "event"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyDurationMS = "duration_ms"
	KeyRepo       = "repository"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyURL        = "url"
	KeyName       = "name"
	KeyWorker     = "worker"
	KeyDelivery   = "delivery_id"
	KeyReason     = "reason"
	KeyCount      = "count"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
)

func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func JobStatus(s string) slog.Attr    { return slog.String(KeyJobStatus, s) }
func Event(kind string) slog.Attr     { return slog.String(KeyEvent, kind) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Worker(w int) slog.Attr          { return slog.Int(KeyWorker, w) }
func DeliveryID(id string) slog.Attr  { return slog.String(KeyDelivery, id) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }

func Method(m string) slog.Attr     { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr     { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr { return slog.String(KeyRemoteAddr, a) }

// Error renders err as a string attribute; nil becomes an empty value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
