package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUpstreamError(t *testing.T) {
	t.Run("matches ErrAPIRequest", func(t *testing.T) {
		err := fmt.Errorf("search failed: %w", &UpstreamError{Platform: "spotify", StatusCode: 500, Body: "boom"})
		if !errors.Is(err, ErrAPIRequest) {
			t.Error("expected ErrAPIRequest to match")
		}
		if errors.Is(err, ErrNotAuthenticated) {
			t.Error("500 should not be an auth failure")
		}

		var upstream *UpstreamError
		if !errors.As(err, &upstream) || upstream.StatusCode != 500 {
			t.Fatalf("expected UpstreamError with status 500, got %v", err)
		}
	})

	t.Run("401 and 403 are auth failures", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			err := &UpstreamError{Platform: "apple", StatusCode: status}
			if !errors.Is(err, ErrNotAuthenticated) {
				t.Errorf("status %d should match ErrNotAuthenticated", status)
			}
		}
	})

	t.Run("not found playlist lookups", func(t *testing.T) {
		err := &UpstreamError{Platform: "deezer", StatusCode: 404, NotFound: true}
		if !errors.Is(err, ErrPlaylistNotFound) {
			t.Error("expected ErrPlaylistNotFound to match")
		}
	})
}

func TestPartialWriteError(t *testing.T) {
	cause := &UpstreamError{Platform: "spotify", StatusCode: 502}
	err := &PartialWriteError{PlaylistID: "pl1", Status: 502, Written: 100, Total: 250, Err: cause}

	if !errors.Is(err, ErrAPIRequest) {
		t.Error("expected partial write to unwrap to the upstream cause")
	}
	if want := "partial write to playlist pl1: 100/250 tracks saved (status 502): spotify API error: status 502"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
