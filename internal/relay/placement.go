package relay

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Strategy is one way of making an upstream segment available under its
// output name.
type Strategy struct {
	Name  string
	Place func(src, dst string) error
}

// ErrPlacementFailed is returned by Place when every strategy failed.
var ErrPlacementFailed = errors.New("all placement strategies failed")

// DefaultStrategies links where possible and copies otherwise.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "symlink", Place: symlinkSegment},
		{Name: "hardlink", Place: hardlinkSegment},
		{Name: "copy", Place: copySegment},
	}
}

// Place removes any existing dst and tries each strategy in order,
// returning the name of the first that succeeds.
func Place(src, dst string, strategies []Strategy) (string, error) {
	var errs []error
	for _, s := range strategies {
		if err := removeIfExists(dst); err != nil {
			return "", errors.Wrapf(err, "clear %s", dst)
		}
		err := s.Place(src, dst)
		if err == nil {
			return s.Name, nil
		}
		errs = append(errs, errors.Wrap(err, s.Name))
	}
	return "", errors.Wrapf(ErrPlacementFailed, "%s: %v", filepath.Base(src), errs)
}

func removeIfExists(p string) error {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func symlinkSegment(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	return os.Symlink(abs, dst)
}

func hardlinkSegment(src, dst string) error {
	return os.Link(src, dst)
}

// copySegment copies into a temp file beside dst and renames it into place
// so the HTTP server never serves a half-copied segment.
func copySegment(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	if err = os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
