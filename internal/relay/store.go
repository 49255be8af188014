package relay

import (
	"os"

	"github.com/pkg/errors"

	"radio-relay/internal/mode"
	"radio-relay/internal/platform/durable"
)

// StateStore is the persistence abstraction for RelayState.
// Load always returns a usable state; a non-nil error reports why it had
// to fall back to InitialState.
type StateStore interface {
	Load() (RelayState, error)
	Save(st RelayState) error
}

// stateFile is the on-disk shape: {"seq": 12, "last_mode": "live"}.
type stateFile struct {
	Seq      int64   `json:"seq"`
	LastMode *string `json:"last_mode"`
}

// FileStateStore keeps RelayState in a JSON document replaced atomically.
type FileStateStore struct {
	path string
}

// NewFileStateStore returns a store backed by path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load implements StateStore.Load. A missing file is a clean first start
// and is not reported as an error.
func (s *FileStateStore) Load() (RelayState, error) {
	var raw stateFile
	if err := durable.ReadJSON(s.path, &raw); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return InitialState(), nil
		}
		return InitialState(), err
	}

	st := RelayState{Sequence: raw.Seq}
	if st.Sequence < 1 {
		st.Sequence = 1
	}
	if raw.LastMode != nil {
		if m, err := mode.Parse(*raw.LastMode); err == nil {
			st.LastMode = m
		}
	}
	return st, nil
}

// Save implements StateStore.Save.
func (s *FileStateStore) Save(st RelayState) error {
	raw := stateFile{Seq: st.Sequence}
	if st.LastMode != "" {
		m := st.LastMode.String()
		raw.LastMode = &m
	}
	return durable.WriteJSON(s.path, raw)
}

// InMemoryStateStore is an in-memory implementation of StateStore.
type InMemoryStateStore struct {
	state *RelayState
	saves int
}

// NewInMemoryStateStore returns an empty in-memory store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{}
}

// Load implements StateStore.Load.
func (s *InMemoryStateStore) Load() (RelayState, error) {
	if s.state == nil {
		return InitialState(), nil
	}
	return *s.state, nil
}

// Save implements StateStore.Save.
func (s *InMemoryStateStore) Save(st RelayState) error {
	s.state = &st
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *InMemoryStateStore) Saves() int {
	return s.saves
}
