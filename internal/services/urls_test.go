package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

func TestParsePlaylistURL(t *testing.T) {
	tc := []struct {
		name     string
		url      string
		platform models.Platform
		id       string
	}{
		{"spotify", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", models.Spotify, "37i9dQZF1DXcBWIGoYBM5M"},
		{"spotify intl path", "https://open.spotify.com/intl-de/playlist/ABC123", models.Spotify, "ABC123"},
		{"apple", "https://music.apple.com/us/playlist/todays-hits/pl.f4d106fed2bd41149aaacabb233eb5eb", models.Apple, "pl.f4d106fed2bd41149aaacabb233eb5eb"},
		{"apple user playlist", "https://music.apple.com/us/playlist/mix/pl.u-8aAVZAoCrEL6Kx?l=en", models.Apple, "pl.u-8aAVZAoCrEL6Kx"},
		{"deezer", "https://www.deezer.com/en/playlist/908622995", models.Deezer, "908622995"},
		{"apple slug naming another platform", "https://music.apple.com/us/playlist/spotify-viral-hits/pl.u-abc123", models.Apple, "pl.u-abc123"},
		{"query naming another platform", "https://open.spotify.com/playlist/ABC123?ref=deezer", models.Spotify, "ABC123"},
		{"no scheme", "open.spotify.com/playlist/ABC123", models.Spotify, "ABC123"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			p, id, err := ParsePlaylistURL(tt.url)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p != tt.platform || id != tt.id {
				t.Errorf("ParsePlaylistURL() = %v, %q; want %v, %q", p, id, tt.platform, tt.id)
			}
		})
	}

	t.Run("unknown platform", func(t *testing.T) {
		_, _, err := ParsePlaylistURL("https://tidal.com/browse/playlist/1")
		if !errors.Is(err, shared.ErrUnsupportedPlatform) {
			t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
		}
	})

	t.Run("platform name outside the host", func(t *testing.T) {
		for _, raw := range []string{
			"https://tidal.com/browse/playlist/spotify-mix/1",
			"https://notspotify.com/playlist/ABC123",
		} {
			if _, _, err := ParsePlaylistURL(raw); !errors.Is(err, shared.ErrUnsupportedPlatform) {
				t.Errorf("%s: expected ErrUnsupportedPlatform, got %v", raw, err)
			}
		}
	})

	t.Run("missing id", func(t *testing.T) {
		_, _, err := ParsePlaylistURL("https://open.spotify.com/album/xyz")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("short links", func(t *testing.T) {
		if !IsShortLink("https://deezer.page.link/abc") || !IsShortLink("https://link.deezer.com/s/xyz") {
			t.Error("expected deezer short links to be detected")
		}
		if IsShortLink("https://www.deezer.com/playlist/1") {
			t.Error("full URL is not a short link")
		}
		if IsShortLink("https://music.apple.com/us/playlist/link.deezer.com/pl.u-abc") {
			t.Error("short link host in the path is not a short link")
		}
	})
}

func TestResolver(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "1"})
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.Error(w, "no cookie", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
<meta property="og:title" content="Deezer Hits">
<meta property="og:url" content="https://www.deezer.com/en/playlist/908622995">
</head><body>Open in app</body></html>`)
	})
	mux.HandleFunc("/canonical", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><link rel="canonical" href="https://www.deezer.com/playlist/42"></head></html>`)
	})
	mux.HandleFunc("/playlist/77", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/direct", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/playlist/77", http.StatusMovedPermanently)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Run("reads og:url from an interstitial", func(t *testing.T) {
		r := NewResolver(time.Minute, nil, quietLogger())
		t.Cleanup(r.Close)

		got, err := r.Resolve(context.Background(), server.URL+"/short")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "https://www.deezer.com/en/playlist/908622995" {
			t.Errorf("unexpected resolved URL %q", got)
		}
	})

	t.Run("falls back to the canonical link", func(t *testing.T) {
		r := NewResolver(time.Minute, nil, quietLogger())
		t.Cleanup(r.Close)

		got, err := r.Resolve(context.Background(), server.URL+"/canonical")
		if err != nil || got != "https://www.deezer.com/playlist/42" {
			t.Errorf("unexpected result %q, %v", got, err)
		}
	})

	t.Run("returns the redirect target when it is a playlist URL", func(t *testing.T) {
		r := NewResolver(time.Minute, nil, quietLogger())
		t.Cleanup(r.Close)

		got, err := r.Resolve(context.Background(), server.URL+"/direct")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != server.URL+"/playlist/77" {
			t.Errorf("unexpected resolved URL %q", got)
		}
	})

	t.Run("client is created lazily and released when idle", func(t *testing.T) {
		r := NewResolver(20*time.Millisecond, nil, quietLogger())
		if r.Active() {
			t.Fatal("client should not exist before first use")
		}

		if _, err := r.Resolve(context.Background(), server.URL+"/canonical"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !r.Active() {
			t.Fatal("client should exist right after use")
		}

		deadline := time.Now().Add(2 * time.Second)
		for r.Active() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if r.Active() {
			t.Error("client was not released after the idle timeout")
		}
	})

	t.Run("Close releases immediately", func(t *testing.T) {
		r := NewResolver(time.Hour, nil, quietLogger())
		if _, err := r.Resolve(context.Background(), server.URL+"/canonical"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		r.Close()
		if r.Active() {
			t.Error("client should be released by Close")
		}
	})
}
