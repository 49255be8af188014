package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-relay/internal/mode"
	"radio-relay/internal/platform/logger"
	"radio-relay/internal/platform/metrics"
)

func statBody(n string) string {
	return `<rtmp><server><application><name>club</name><live><nclients>` + n + `</nclients></live></application></server></rtmp>`
}

// fakeStats serves whatever body is currently stored.
type fakeStats struct {
	body atomic.Value
	hits atomic.Int64
}

func (f *fakeStats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	w.Write([]byte(f.body.Load().(string)))
}

func newTestMonitor(t *testing.T, url string) (*Monitor, string) {
	t.Helper()
	modeFile := filepath.Join(t.TempDir(), "active")
	m := New(Config{
		StatURL:  url,
		App:      "club",
		ModeFile: modeFile,
		Interval: 10 * time.Millisecond,
		Timeout:  200 * time.Millisecond,
	}, logger.Discard(), metrics.NewMonitor())
	return m, modeFile
}

func TestDecide(t *testing.T) {
	assert.Equal(t, mode.AutoDJ, Decide(0))
	assert.Equal(t, mode.Live, Decide(1))
	assert.Equal(t, mode.Live, Decide(2))
}

func TestIterate_writes_live_then_autodj(t *testing.T) {
	fs := &fakeStats{}
	fs.body.Store(statBody("2"))
	srv := httptest.NewServer(fs)
	defer srv.Close()

	m, modeFile := newTestMonitor(t, srv.URL)
	ctx := context.Background()

	assert.Equal(t, mode.Live, m.Iterate(ctx))
	raw, err := os.ReadFile(modeFile)
	require.NoError(t, err)
	assert.Equal(t, "live\n", string(raw))

	fs.body.Store(statBody("0"))
	assert.Equal(t, mode.AutoDJ, m.Iterate(ctx))
	assert.Equal(t, mode.AutoDJ, mode.Read(modeFile))
}

func TestIterate_absent_app_writes_autodj(t *testing.T) {
	fs := &fakeStats{}
	fs.body.Store(`<rtmp><server><application><name>other</name><live><nclients>4</nclients></live></application></server></rtmp>`)
	srv := httptest.NewServer(fs)
	defer srv.Close()

	m, modeFile := newTestMonitor(t, srv.URL)
	assert.Equal(t, mode.AutoDJ, m.Iterate(context.Background()))
	raw, err := os.ReadFile(modeFile)
	require.NoError(t, err)
	assert.Equal(t, "autodj\n", string(raw))
}

func TestIterate_no_redundant_writes(t *testing.T) {
	fs := &fakeStats{}
	fs.body.Store(statBody("1"))
	srv := httptest.NewServer(fs)
	defer srv.Close()

	m, modeFile := newTestMonitor(t, srv.URL)
	ctx := context.Background()
	m.Iterate(ctx)

	// Replace the file behind the monitor's back; an unchanged decision
	// must not rewrite it.
	require.NoError(t, os.WriteFile(modeFile, []byte("sentinel"), 0o644))
	m.Iterate(ctx)
	m.Iterate(ctx)

	raw, _ := os.ReadFile(modeFile)
	assert.Equal(t, "sentinel", string(raw))
}

func TestIterate_fetch_failure_fails_open_to_autodj(t *testing.T) {
	fs := &fakeStats{}
	fs.body.Store(statBody("1"))
	srv := httptest.NewServer(fs)

	m, modeFile := newTestMonitor(t, srv.URL)
	ctx := context.Background()
	require.Equal(t, mode.Live, m.Iterate(ctx))

	srv.Close()
	assert.Equal(t, mode.AutoDJ, m.Iterate(ctx))
	assert.Equal(t, mode.AutoDJ, mode.Read(modeFile))
}

func TestIterate_non_200_is_failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	m, _ := newTestMonitor(t, srv.URL)
	_, err := m.FetchStats(context.Background())
	assert.Error(t, err)
}

func TestFetchStats_timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m, _ := newTestMonitor(t, srv.URL)
	start := time.Now()
	_, err := m.FetchStats(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestIterate_write_failure_retries(t *testing.T) {
	fs := &fakeStats{}
	fs.body.Store(statBody("1"))
	srv := httptest.NewServer(fs)
	defer srv.Close()

	dir := t.TempDir()
	modeFile := filepath.Join(dir, "missing-dir", "active")
	m := New(Config{StatURL: srv.URL, App: "club", ModeFile: modeFile}, logger.Discard(), nil)
	ctx := context.Background()

	m.Iterate(ctx)
	_, err := os.Stat(modeFile)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, os.MkdirAll(filepath.Dir(modeFile), 0o755))
	m.Iterate(ctx)
	assert.Equal(t, mode.Live, mode.Read(modeFile))
}

func TestMonitor_runs_as_service(t *testing.T) {
	fs := &fakeStats{}
	fs.body.Store(statBody("1"))
	srv := httptest.NewServer(fs)
	defer srv.Close()

	m, modeFile := newTestMonitor(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, m))

	assert.Eventually(t, func() bool { return fs.hits.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, mode.Live, mode.Read(modeFile))

	require.NoError(t, services.StopAndAwaitTerminated(ctx, m))
}
