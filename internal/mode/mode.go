// Package mode defines which upstream source is on air and the one-token
// file the monitor uses to tell the relay about it.
package mode

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"radio-relay/internal/platform/durable"
)

// Mode identifies the active upstream source.
type Mode string

const (
	// Live is a broadcaster publishing to the ingest server.
	Live Mode = "live"
	// AutoDJ is the pre-recorded rotation.
	AutoDJ Mode = "autodj"
)

// ErrUnknownMode is returned by Parse for anything other than live/autodj.
var ErrUnknownMode = errors.New("unknown mode")

func (m Mode) String() string { return string(m) }

// Valid reports whether m is one of the two known modes.
func (m Mode) Valid() bool {
	return m == Live || m == AutoDJ
}

// Parse accepts a mode token, ignoring surrounding whitespace.
func Parse(s string) (Mode, error) {
	m := Mode(strings.TrimSpace(s))
	if !m.Valid() {
		return "", errors.Wrapf(ErrUnknownMode, "%q", s)
	}
	return m, nil
}

// Read returns the mode recorded at path. A missing, unreadable, or
// unrecognized file reads as AutoDJ.
func Read(path string) Mode {
	data, err := os.ReadFile(path)
	if err != nil {
		return AutoDJ
	}
	m, err := Parse(string(data))
	if err != nil {
		return AutoDJ
	}
	return m
}

// Write atomically records m at path, newline-terminated.
func Write(path string, m Mode) error {
	if !m.Valid() {
		return errors.Wrapf(ErrUnknownMode, "%q", string(m))
	}
	return durable.WriteFile(path, []byte(m.String()+"\n"))
}
