// Package monitor decides whether a live broadcast is on air by polling the
// ingest server's statistics and records the decision in the mode file.
package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"radio-relay/internal/mode"
	"radio-relay/internal/platform/metrics"
)

const (
	DefaultInterval = time.Second
	DefaultTimeout  = 3 * time.Second
	DefaultApp      = "club"
)

// Config holds the monitor settings.
type Config struct {
	StatURL  string
	App      string
	ModeFile string
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor polls the statistics endpoint and writes the mode file on change.
// It runs as a dskit timer service; Iterate may also be driven directly.
type Monitor struct {
	services.Service

	cfg     Config
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.Monitor

	// prev is the last mode successfully written. Empty until the first
	// write, so the first poll always records a mode.
	prev mode.Mode
}

// New returns a Monitor. m may be nil to disable metrics.
func New(cfg Config, log *slog.Logger, m *metrics.Monitor) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.App == "" {
		cfg.App = DefaultApp
	}

	mon := &Monitor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.With("component", "monitor"),
		metrics: m,
	}
	mon.Service = services.NewTimerService(cfg.Interval, mon.starting, mon.iteration, nil)
	return mon
}

func (m *Monitor) starting(ctx context.Context) error {
	m.log.Info("monitor starting",
		"stat_url", m.cfg.StatURL,
		"app", m.cfg.App,
		"mode_file", m.cfg.ModeFile,
		"interval", m.cfg.Interval.String())
	m.Iterate(ctx)
	return nil
}

// iteration never returns an error: a failed poll must not stop the service.
func (m *Monitor) iteration(ctx context.Context) error {
	m.Iterate(ctx)
	return nil
}

// Decide maps a client count to a mode. The publisher's own connection is
// counted by the ingest server, so any client means someone is broadcasting.
func Decide(nclients int) mode.Mode {
	if nclients > 0 {
		return mode.Live
	}
	return mode.AutoDJ
}

// Iterate runs one poll and returns the mode decided for it. There is no
// debounce: a single zero-client poll flips back to autodj.
func (m *Monitor) Iterate(ctx context.Context) mode.Mode {
	n, err := m.FetchStats(ctx)
	if err != nil {
		m.log.Debug("stat fetch failed, assuming no live source", "error", err)
		m.metrics.IncFetchFailures()
		n = 0
	}

	next := Decide(n)
	m.metrics.ObservePoll(n, next == mode.Live)

	if next == m.prev {
		return next
	}

	if err := mode.Write(m.cfg.ModeFile, next); err != nil {
		// prev is left alone so the write is retried on the next poll.
		m.log.Error("write mode file failed", "mode", next.String(), "error", err)
		return next
	}

	m.log.Info("active source changed",
		"mode", next.String(),
		"previous", m.prev.String(),
		"nclients", n)
	m.metrics.IncTransitions(next.String())
	m.prev = next
	return next
}

// FetchStats retrieves the statistics document and returns the monitored
// application's client count.
func (m *Monitor) FetchStats(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.StatURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build stat request")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetch stat")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("fetch stat: unexpected status %d", resp.StatusCode)
	}
	return ParseStats(resp.Body, m.cfg.App)
}
