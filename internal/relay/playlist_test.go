package relay

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const nginxLive = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-MEDIA-SEQUENCE:118
#EXT-X-TARGETDURATION:4
#EXT-X-DISCONTINUITY
#EXTINF:4.000,
people-118.ts?token=abc
#EXT-X-PROGRAM-DATE-TIME:2026-10-18T20:00:04Z
#EXTINF:3.967,
/var/www/hls/live/people-119.ts

#EXTINF:4.033,
people-120.ts
`

func TestParsePlaylist_pairs(t *testing.T) {
	pl, err := ParsePlaylist(strings.NewReader(nginxLive))
	if err != nil {
		t.Fatalf("ParsePlaylist: %v", err)
	}
	if pl.TargetDuration != 4 {
		t.Errorf("target duration = %d, want 4", pl.TargetDuration)
	}
	want := []UpstreamSegment{
		{Duration: "4.000", Name: "people-118.ts"},
		{Duration: "3.967", Name: "people-119.ts"},
		{Duration: "4.033", Name: "people-120.ts"},
	}
	if !reflect.DeepEqual(pl.Segments, want) {
		t.Errorf("segments = %+v, want %+v", pl.Segments, want)
	}
}

func TestParsePlaylist_target_duration_fallback(t *testing.T) {
	for _, in := range []string{
		"#EXTM3U\n#EXTINF:2,\na.ts\n",
		"#EXTM3U\n#EXT-X-TARGETDURATION:abc\n",
		"#EXTM3U\n#EXT-X-TARGETDURATION:0\n",
	} {
		pl, err := ParsePlaylist(strings.NewReader(in))
		if err != nil {
			t.Fatalf("ParsePlaylist(%q): %v", in, err)
		}
		if pl.TargetDuration != DefaultTargetDuration {
			t.Errorf("TargetDuration(%q) = %d, want %d", in, pl.TargetDuration, DefaultTargetDuration)
		}
	}
}

func TestParsePlaylist_uri_without_extinf_ignored(t *testing.T) {
	pl, _ := ParsePlaylist(strings.NewReader("#EXTM3U\norphan.ts\n#EXTINF:2.0,\nkept.ts\n"))
	if len(pl.Segments) != 1 || pl.Segments[0].Name != "kept.ts" {
		t.Errorf("unexpected segments: %+v", pl.Segments)
	}
}

func TestParsePlaylist_long_line(t *testing.T) {
	in := "#EXTM3U\n" + strings.Repeat("#", 80*1024) + "\n#EXTINF:4,\na.ts\n"
	pl, err := ParsePlaylist(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParsePlaylist: %v", err)
	}
	if len(pl.Segments) != 1 || pl.Segments[0].Name != "a.ts" {
		t.Errorf("unexpected segments: %+v", pl.Segments)
	}
}

func TestParsePlaylist_line_too_long(t *testing.T) {
	in := "#EXTM3U\n#EXTINF:4,\na.ts\n" + strings.Repeat("#", maxLineSize+1) + "\n"
	pl, err := ParsePlaylist(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected an error for a line past the limit")
	}
	if len(pl.Segments) != 1 {
		t.Errorf("pairs before the bad line should be kept: %+v", pl.Segments)
	}
}

func TestParsePlaylist_uri_without_file_name_ignored(t *testing.T) {
	in := "#EXTM3U\n#EXTINF:4,\n?token=x\n#EXTINF:4,\nsub/\n#EXTINF:4,\n/\n#EXTINF:4,\n..\n#EXTINF:4,\nkept.ts?token=y\n"
	pl, err := ParsePlaylist(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParsePlaylist: %v", err)
	}
	if len(pl.Segments) != 1 || pl.Segments[0].Name != "kept.ts" {
		t.Errorf("unexpected segments: %+v", pl.Segments)
	}
}

func TestReadPlaylist_unreadable(t *testing.T) {
	// A directory opens but cannot be scanned.
	dir := filepath.Join(t.TempDir(), PlaylistName)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPlaylist(dir); err == nil {
		t.Error("expected an error reading a directory as a playlist")
	}
}

func TestReadPlaylist_missing_file(t *testing.T) {
	pl, err := ReadPlaylist(filepath.Join(t.TempDir(), "index.m3u8"))
	if err != nil {
		t.Errorf("missing file should not be an error: %v", err)
	}
	if len(pl.Segments) != 0 || pl.TargetDuration != DefaultTargetDuration {
		t.Errorf("missing file should parse empty: %+v", pl)
	}
}

func TestRender(t *testing.T) {
	out := Render(OutputPlaylist{
		TargetDuration: 6,
		MediaSequence:  40,
		Segments: []OutputSegment{
			{Sequence: 40, Duration: "6.000", Name: "seg-40.ts"},
			{Sequence: 41, Duration: "5.5", Name: "seg-41.ts"},
		},
	})
	want := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:40\n" +
		"#EXTINF:6.000,\nseg-40.ts\n#EXTINF:5.5,\nseg-41.ts\n"
	if out != want {
		t.Errorf("Render:\n%s\nwant:\n%s", out, want)
	}
}

func TestRender_discontinuity_after_header(t *testing.T) {
	out := Render(OutputPlaylist{
		TargetDuration: 4,
		MediaSequence:  7,
		Discontinuity:  true,
		Segments:       []OutputSegment{{Sequence: 7, Duration: "4.0", Name: "seg-7.ts"}},
	})
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:7\n#EXT-X-DISCONTINUITY\n#EXTINF:4.0,\n") {
		t.Errorf("discontinuity misplaced:\n%s", out)
	}
	if strings.Count(out, "#EXT-X-DISCONTINUITY") != 1 {
		t.Errorf("expected exactly one discontinuity:\n%s", out)
	}
}

func TestRender_parse_roundtrip(t *testing.T) {
	segs := []OutputSegment{
		{Sequence: 101, Duration: "3.967", Name: "seg-101.ts"},
		{Sequence: 102, Duration: "4", Name: "seg-102.ts"},
		{Sequence: 103, Duration: "4.033", Name: "seg-103.ts"},
	}
	out := Render(OutputPlaylist{TargetDuration: 5, MediaSequence: 101, Discontinuity: true, Segments: segs})

	pl, err := ParsePlaylist(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParsePlaylist: %v", err)
	}
	if pl.TargetDuration != 5 {
		t.Errorf("target duration = %d, want 5", pl.TargetDuration)
	}
	if len(pl.Segments) != len(segs) {
		t.Fatalf("got %d segments, want %d", len(pl.Segments), len(segs))
	}
	for i, s := range segs {
		if pl.Segments[i].Duration != s.Duration || pl.Segments[i].Name != s.Name {
			t.Errorf("segment %d = %+v, want (%s, %s)", i, pl.Segments[i], s.Duration, s.Name)
		}
	}
}

func TestSegmentName(t *testing.T) {
	if got := SegmentName(101); got != "seg-101.ts" {
		t.Errorf("SegmentName = %q", got)
	}
	for name, want := range map[string]int64{"seg-1.ts": 1, "seg-0042.ts": 42} {
		if n, ok := ParseSegmentName(name); !ok || n != want {
			t.Errorf("ParseSegmentName(%q) = %d, %v", name, n, ok)
		}
	}
	for _, name := range []string{"seg-.ts", "seg-x.ts", "seg-1.ts.tmp", "index.m3u8", "seg-1.mp4", "people-3.ts"} {
		if _, ok := ParseSegmentName(name); ok {
			t.Errorf("ParseSegmentName(%q) should not match", name)
		}
	}
}

func TestMediaSequence(t *testing.T) {
	if got := mediaSequence(113, 12); got != 101 {
		t.Errorf("mediaSequence(113, 12) = %d", got)
	}
	if got := mediaSequence(3, 12); got != 0 {
		t.Errorf("mediaSequence should clamp at 0, got %d", got)
	}
}

func TestFindPlaylist(t *testing.T) {
	dir := t.TempDir()
	fixed := filepath.Join(dir, PlaylistName)

	if got := FindPlaylist(dir); got != fixed {
		t.Errorf("empty dir: got %q, want fallback %q", got, fixed)
	}

	older := filepath.Join(dir, "people.m3u8")
	newer := filepath.Join(dir, "guest.m3u8")
	os.WriteFile(older, []byte("#EXTM3U\n"), 0o644)
	os.WriteFile(newer, []byte("#EXTM3U\n"), 0o644)
	past := time.Now().Add(-time.Minute)
	os.Chtimes(older, past, past)

	if got := FindPlaylist(dir); got != newer {
		t.Errorf("expected newest playlist %q, got %q", newer, got)
	}

	os.WriteFile(fixed, []byte("#EXTM3U\n"), 0o644)
	os.Chtimes(fixed, past.Add(-time.Hour), past.Add(-time.Hour))
	if got := FindPlaylist(dir); got != fixed {
		t.Errorf("well-known name should win, got %q", got)
	}
}
