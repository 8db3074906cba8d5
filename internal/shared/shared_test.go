package shared

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArtists(t *testing.T) {
	tc := []struct {
		name    string
		artists []string
		joined  string
	}{
		{name: "none", artists: nil, joined: ""},
		{name: "single", artists: []string{"Björk"}, joined: "Björk"},
		{name: "pair", artists: []string{"Daft Punk", "Pharrell Williams"}, joined: "Daft Punk & Pharrell Williams"},
		{name: "many", artists: []string{"A", "B", "C"}, joined: "A, B & C"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinArtists(tt.artists); got != tt.joined {
				t.Errorf("JoinArtists() = %q, want %q", got, tt.joined)
			}
			if got := SplitArtists(tt.joined); !reflect.DeepEqual(got, tt.artists) {
				t.Errorf("SplitArtists(%q) = %v, want %v", tt.joined, got, tt.artists)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "test")
		logger.Info("hello")

		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "component=test") {
			t.Errorf("unexpected log output: %q", out)
		}
	})

	t.Run("GenerateID returns unique values", func(t *testing.T) {
		if a, b := GenerateID(), GenerateID(); a == b || len(a) != 36 {
			t.Errorf("expected two distinct uuids, got %q and %q", a, b)
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	orig := getRuntime
	t.Cleanup(func() { getRuntime = orig })
	getRuntime = func() string { return "plan9" }

	if err := OpenBrowser("https://example.com"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
	}
}
