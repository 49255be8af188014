package durable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_replaces_and_leaves_no_temp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "active")

	require.NoError(t, WriteFile(path, []byte("autodj\n")))
	require.NoError(t, WriteFile(path, []byte("live\n")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "live\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestWriteFile_missing_dir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "file"), []byte("x"))
	assert.Error(t, err)
}

func TestJSON_roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	type rec struct {
		Seq  int64   `json:"seq"`
		Mode *string `json:"last_mode"`
	}
	live := "live"
	require.NoError(t, WriteJSON(path, rec{Seq: 9, Mode: &live}))

	var got rec
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, int64(9), got.Seq)
	require.NotNil(t, got.Mode)
	assert.Equal(t, "live", *got.Mode)
}

func TestReadJSON_errors(t *testing.T) {
	dir := t.TempDir()
	var v map[string]any

	assert.Error(t, ReadJSON(filepath.Join(dir, "missing.json"), &v))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	assert.Error(t, ReadJSON(bad, &v))
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "a", "b", "status.json")
	require.NoError(t, EnsureDir(path))
	info, err := os.Stat(filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
