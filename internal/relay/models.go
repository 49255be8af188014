package relay

import "radio-relay/internal/mode"

// UpstreamSegment is one EXTINF/URI pair from a native playlist. Duration is
// kept as the upstream wrote it so the outward playlist repeats it verbatim.
type UpstreamSegment struct {
	Duration string
	Name     string
}

// UpstreamPlaylist is the parsed native playlist of the active source.
type UpstreamPlaylist struct {
	TargetDuration int
	Segments       []UpstreamSegment
}

// OutputSegment is a segment as published in the outward playlist.
type OutputSegment struct {
	Sequence int64
	Duration string
	Name     string
}

// RelayState is what the relay persists between iterations and restarts.
// An empty LastMode means no iteration has completed yet.
type RelayState struct {
	Sequence int64
	LastMode mode.Mode
}

// InitialState is the state used on first start or after corruption.
func InitialState() RelayState {
	return RelayState{Sequence: 1}
}

// StatusSnapshot is the record served to the listener API.
type StatusSnapshot struct {
	Source  string `json:"source"`
	Seq     int64  `json:"seq"`
	Updated string `json:"updated"`
}
