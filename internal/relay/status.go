package relay

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"radio-relay/internal/mode"
	"radio-relay/internal/platform/durable"
)

// statusTimeLayout matches the listener API's expected "updated" format,
// e.g. 2026-10-18T21:04:05+0200.
const statusTimeLayout = "2006-01-02T15:04:05-0700"

const statusContentType = "application/json"

// NewStatusSnapshot builds the snapshot for mode m and sequence seq at t.
func NewStatusSnapshot(m mode.Mode, seq int64, t time.Time) StatusSnapshot {
	return StatusSnapshot{
		Source:  m.String(),
		Seq:     seq,
		Updated: t.Format(statusTimeLayout),
	}
}

// WriteStatus atomically replaces the status file, creating its directory
// if needed.
func WriteStatus(path string, s StatusSnapshot) error {
	if err := durable.EnsureDir(path); err != nil {
		return err
	}
	return durable.WriteJSON(path, s)
}

// StatusHandler serves the status file as written by the relay loop.
func StatusHandler(path string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Debug("status unavailable", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", statusContentType)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
