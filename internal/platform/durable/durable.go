// Package durable implements the write-to-temp-then-rename primitive behind
// every file the monitor and relay share: the mode file, the relay state,
// the output playlist and the status snapshot. Readers observe either the
// old or the new content, never a partial write.
package durable

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const filePerm = 0o644

// WriteFile atomically replaces path with data. The temporary file lives in
// the same directory so the final rename never crosses a filesystem.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	tmpName := tmp.Name()

	// Best-effort removal if anything below fails; after a successful rename
	// the temp name no longer exists and this is a no-op.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write temp file for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close temp file for %s", path)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return errors.Wrapf(err, "chmod temp file for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}

// WriteJSON marshals v and writes it with WriteFile.
func WriteJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", path)
	}
	return WriteFile(path, data)
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	return EnsureDirs(filepath.Dir(path))
}

// EnsureDirs creates each directory (and parents) if missing.
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", d)
		}
	}
	return nil
}
