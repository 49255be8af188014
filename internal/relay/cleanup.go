package relay

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DefaultRetentionWindow is how many recent output segments stay on disk.
const DefaultRetentionWindow = 30

// Cleanup deletes output segments numbered below next-retention and returns
// how many were removed. Names that are not "seg-<n>.ts" are never touched.
func Cleanup(dir string, next int64, retention int) (int, error) {
	cutoff := next - int64(retention)
	if cutoff <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "list %s", dir)
	}

	deleted := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := ParseSegmentName(e.Name())
		if !ok || n >= cutoff {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
