package relay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultTargetDuration is used when the native playlist has no usable
	// #EXT-X-TARGETDURATION.
	DefaultTargetDuration = 6

	// PlaylistName is the well-known playlist filename, both upstream and
	// in the output directory.
	PlaylistName = "index.m3u8"

	segmentPrefix = "seg-"
	segmentSuffix = ".ts"

	// maxLineSize bounds a single playlist line; upstream comment lines can
	// run far past bufio's 64 KiB default.
	maxLineSize = 16 * 1024 * 1024

	tagTargetDuration = "#EXT-X-TARGETDURATION:"
	tagExtInf         = "#EXTINF:"
)

// SegmentName returns the output filename for sequence n.
func SegmentName(n int64) string {
	return segmentPrefix + strconv.FormatInt(n, 10) + segmentSuffix
}

// ParseSegmentName extracts n from "seg-<n>.ts". ok is false for any other name.
func ParseSegmentName(name string) (n int64, ok bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	digits := name[len(segmentPrefix) : len(name)-len(segmentSuffix)]
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FindPlaylist returns the native playlist path inside dir. The well-known
// name wins; otherwise the most recently modified *.m3u8 (nginx-rtmp names
// live playlists after the stream key). With no candidates the well-known
// path is returned even though it does not exist.
func FindPlaylist(dir string) string {
	fixed := filepath.Join(dir, PlaylistName)
	if _, err := os.Stat(fixed); err == nil {
		return fixed
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.m3u8"))
	if err != nil || len(matches) == 0 {
		return fixed
	}

	type candidate struct {
		path  string
		mtime int64
	}
	cands := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		cands = append(cands, candidate{path: m, mtime: info.ModTime().UnixNano()})
	}
	if len(cands) == 0 {
		return fixed
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].mtime != cands[j].mtime {
			return cands[i].mtime > cands[j].mtime
		}
		return cands[i].path < cands[j].path
	})
	return cands[0].path
}

// ReadPlaylist parses the playlist at p. A missing file yields an empty
// playlist with the default target duration and no error; any other read
// failure is returned alongside whatever was parsed before it.
func ReadPlaylist(p string) (UpstreamPlaylist, error) {
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return UpstreamPlaylist{TargetDuration: DefaultTargetDuration}, nil
		}
		return UpstreamPlaylist{TargetDuration: DefaultTargetDuration}, errors.Wrapf(err, "open %s", p)
	}
	defer f.Close()

	pl, err := ParsePlaylist(f)
	if err != nil {
		return pl, errors.Wrapf(err, "read %s", p)
	}
	return pl, nil
}

// ParsePlaylist extracts the target duration and the ordered EXTINF/URI
// pairs. Tags other than the two it understands are skipped without
// disturbing a pending EXTINF. Segment URIs lose any query string and
// directory part; a URI with no file name left is dropped. Lines may be up
// to maxLineSize long; a scan error is returned with the pairs read so far.
func ParsePlaylist(r io.Reader) (UpstreamPlaylist, error) {
	pl := UpstreamPlaylist{TargetDuration: DefaultTargetDuration}

	var pending *string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, tagTargetDuration):
			if td, err := strconv.Atoi(strings.TrimSpace(line[len(tagTargetDuration):])); err == nil && td >= 1 {
				pl.TargetDuration = td
			}
		case strings.HasPrefix(line, tagExtInf):
			dur, _, _ := strings.Cut(line[len(tagExtInf):], ",")
			dur = strings.TrimSpace(dur)
			pending = &dur
		case strings.HasPrefix(line, "#"):
		default:
			if pending == nil {
				continue
			}
			dur := *pending
			pending = nil
			uri, _, _ := strings.Cut(line, "?")
			name := path.Base(uri)
			if uri == "" || strings.HasSuffix(uri, "/") || name == "." || name == ".." || name == "/" {
				continue
			}
			pl.Segments = append(pl.Segments, UpstreamSegment{Duration: dur, Name: name})
		}
	}
	if err := sc.Err(); err != nil {
		return pl, errors.Wrap(err, "scan playlist")
	}
	return pl, nil
}

// OutputPlaylist is everything Render needs.
type OutputPlaylist struct {
	TargetDuration int
	MediaSequence  int64
	Discontinuity  bool
	Segments       []OutputSegment
}

// Render produces the outward version 3 media playlist.
func Render(p OutputPlaylist) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", p.TargetDuration)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.MediaSequence)
	if p.Discontinuity {
		b.WriteString("#EXT-X-DISCONTINUITY\n")
	}

	for _, seg := range p.Segments {
		fmt.Fprintf(&b, "#EXTINF:%s,\n", seg.Duration)
		b.WriteString(seg.Name)
		b.WriteString("\n")
	}

	return b.String()
}

// mediaSequence is next minus the number of listed segments, clamped at 0.
func mediaSequence(next int64, listed int) int64 {
	if ms := next - int64(listed); ms > 0 {
		return ms
	}
	return 0
}
