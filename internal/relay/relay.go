// Package relay stitches whichever upstream source is active into a single
// outward HLS playlist with stable, monotonically increasing segment names.
package relay

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"radio-relay/internal/mode"
	"radio-relay/internal/platform/durable"
	"radio-relay/internal/platform/metrics"
)

const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultPlaylistWindow = 12
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid relay config")

// Config holds the relay settings.
type Config struct {
	ModeFile        string
	AutoDJDir       string
	LiveDir         string
	OutputDir       string
	StatusFile      string
	PlaylistWindow  int
	RetentionWindow int
	Interval        time.Duration
}

// ApplyDefaults fills zero-valued windows and interval.
func (c *Config) ApplyDefaults() {
	if c.PlaylistWindow <= 0 {
		c.PlaylistWindow = DefaultPlaylistWindow
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = DefaultRetentionWindow
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks the paths are set and that retention covers at least one
// full playlist, which is what bounds the output directory.
func (c Config) Validate() error {
	switch {
	case c.ModeFile == "":
		return errors.Wrap(ErrInvalidConfig, "mode file not set")
	case c.AutoDJDir == "" || c.LiveDir == "":
		return errors.Wrap(ErrInvalidConfig, "source directories not set")
	case c.OutputDir == "":
		return errors.Wrap(ErrInvalidConfig, "output directory not set")
	case c.RetentionWindow < c.PlaylistWindow:
		return errors.Wrapf(ErrInvalidConfig, "retention window %d smaller than playlist window %d",
			c.RetentionWindow, c.PlaylistWindow)
	}
	return nil
}

// SourceDir returns the native HLS directory for m.
func (c Config) SourceDir(m mode.Mode) string {
	if m == mode.Live {
		return c.LiveDir
	}
	return c.AutoDJDir
}

// PlaylistPath is the outward playlist location.
func (c Config) PlaylistPath() string {
	return filepath.Join(c.OutputDir, PlaylistName)
}

// Result describes one iteration, mostly for tests and logging.
type Result struct {
	Mode          mode.Mode
	Skipped       bool
	Discontinuity bool
	Segments      []OutputSegment
	Sequence      int64
	Deleted       int
}

// Relay owns RelayState and runs the polling loop. Only the loop goroutine
// touches state, so no locking is needed.
type Relay struct {
	services.Service

	cfg        Config
	store      StateStore
	state      RelayState
	strategies []Strategy
	log        *slog.Logger
	metrics    *metrics.Relay
	now        func() time.Time
}

// Option customises a Relay.
type Option func(*Relay)

// WithStrategies replaces the placement chain.
func WithStrategies(s ...Strategy) Option {
	return func(r *Relay) { r.strategies = s }
}

// WithClock replaces time.Now for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// New validates cfg, loads persisted state from store and returns a Relay.
// m may be nil to disable metrics.
func New(cfg Config, store StateStore, log *slog.Logger, m *metrics.Relay, opts ...Option) (*Relay, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Relay{
		cfg:        cfg,
		store:      store,
		strategies: DefaultStrategies(),
		log:        log.With("component", "relay"),
		metrics:    m,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	st, err := store.Load()
	if err != nil {
		r.log.Warn("relay state unreadable, starting from scratch", "error", err)
	}
	r.state = st

	r.Service = services.NewTimerService(cfg.Interval, r.starting, r.iteration, nil)
	return r, nil
}

// Current returns the in-memory relay state.
func (r *Relay) Current() RelayState {
	return r.state
}

func (r *Relay) starting(ctx context.Context) error {
	r.log.Info("relay starting",
		"output_dir", r.cfg.OutputDir,
		"autodj_dir", r.cfg.AutoDJDir,
		"live_dir", r.cfg.LiveDir,
		"sequence", r.state.Sequence,
		"last_mode", r.state.LastMode.String(),
		"playlist_window", r.cfg.PlaylistWindow,
		"retention_window", r.cfg.RetentionWindow)
	r.Iterate(ctx)
	return nil
}

// iteration never returns an error: nothing the relay meets at runtime is
// allowed to stop it.
func (r *Relay) iteration(ctx context.Context) error {
	r.Iterate(ctx)
	return nil
}

// Iterate performs one relay pass: read the mode, parse the active source's
// playlist, place and number its newest segments, publish the playlist,
// persist state, trim old segments and write the status snapshot. An
// upstream playlist with no segments leaves every output untouched.
func (r *Relay) Iterate(_ context.Context) Result {
	current := mode.Read(r.cfg.ModeFile)
	srcDir := r.cfg.SourceDir(current)
	upstream, err := ReadPlaylist(FindPlaylist(srcDir))
	if err != nil {
		r.log.Warn("upstream playlist unreadable", "mode", current.String(), "error", err)
	}

	if len(upstream.Segments) == 0 {
		r.metrics.IncSkipped()
		return Result{Mode: current, Skipped: true, Sequence: r.state.Sequence}
	}

	window := upstream.Segments
	if len(window) > r.cfg.PlaylistWindow {
		window = window[len(window)-r.cfg.PlaylistWindow:]
	}

	discontinuity := r.state.LastMode != "" && r.state.LastMode != current
	if discontinuity {
		r.log.Info("source switched", "from", r.state.LastMode.String(), "to", current.String())
	}

	next := r.state.Sequence
	placed := make([]OutputSegment, 0, len(window))
	for _, seg := range window {
		src := filepath.Join(srcDir, seg.Name)
		info, err := os.Stat(src)
		if err != nil {
			// Evicted upstream before we got to it.
			r.metrics.IncDropped("missing")
			continue
		}
		if !info.Mode().IsRegular() {
			r.log.Warn("upstream entry is not a regular file", "segment", seg.Name)
			r.metrics.IncDropped("not_regular")
			continue
		}

		name := SegmentName(next)
		strategy, err := Place(src, filepath.Join(r.cfg.OutputDir, name), r.strategies)
		if err != nil {
			r.log.Warn("segment placement failed", "segment", seg.Name, "error", err)
			r.metrics.IncDropped("place_failed")
			continue
		}
		r.metrics.IncPlaced(strategy)

		placed = append(placed, OutputSegment{Sequence: next, Duration: seg.Duration, Name: name})
		next++
	}

	// The advertised media sequence is the number of the first listed
	// segment, not the pre-iteration counter minus the upstream window.
	body := Render(OutputPlaylist{
		TargetDuration: upstream.TargetDuration,
		MediaSequence:  mediaSequence(next, len(placed)),
		Discontinuity:  discontinuity,
		Segments:       placed,
	})
	if err := durable.WriteFile(r.cfg.PlaylistPath(), []byte(body)); err != nil {
		r.log.Error("write playlist failed", "error", err)
	}

	// Numbers handed out above are on disk now, so state advances even if
	// the playlist write failed.
	r.state = RelayState{Sequence: next, LastMode: current}
	if err := r.store.Save(r.state); err != nil {
		r.log.Error("save relay state failed", "error", err)
	}

	deleted, err := Cleanup(r.cfg.OutputDir, next, r.cfg.RetentionWindow)
	if err != nil {
		r.log.Warn("segment cleanup failed", "error", err)
	}
	r.metrics.AddDeleted(deleted)

	if r.cfg.StatusFile != "" {
		if err := WriteStatus(r.cfg.StatusFile, NewStatusSnapshot(current, next, r.now())); err != nil {
			r.log.Debug("write status failed", "error", err)
		}
	}

	r.metrics.ObserveIteration(next, current == mode.Live, discontinuity)

	return Result{
		Mode:          current,
		Discontinuity: discontinuity,
		Segments:      placed,
		Sequence:      next,
		Deleted:       deleted,
	}
}
