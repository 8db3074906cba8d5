package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"golang.org/x/oauth2"
)

func deezerNotFound() map[string]any {
	return map[string]any{"error": map[string]any{"type": "DataException", "message": "no data", "code": 800}}
}

type deezerStub struct {
	mu      sync.Mutex
	server  *httptest.Server
	details []string
	songs   string
	token   string
}

func newDeezerStub(t *testing.T) *deezerStub {
	t.Helper()
	stub := &deezerStub{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /playlist/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "908622995" {
			writeJSON(w, http.StatusOK, deezerNotFound())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         908622995,
			"title":      "Deezer Hits",
			"picture":    "https://api.deezer.com/playlist/908622995/image",
			"picture_xl": "https://e-cdns-images.dzcdn.net/images/playlist/xl.jpg",
			"link":       "https://www.deezer.com/playlist/908622995",
		})
	})

	mux.HandleFunc("GET /playlist/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("index") == "2" {
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": 3, "title": "Three", "artist": map[string]string{"name": "Solo"}},
			}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"id": 1, "title": "One", "artist": map[string]string{"name": "A"}},
				{"id": 2, "title": "Two", "artist": map[string]string{"name": "B"}},
			},
			"next": stub.server.URL + "/playlist/908622995/tracks?index=2",
		})
	})

	mux.HandleFunc("GET /track/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		stub.mu.Lock()
		stub.details = append(stub.details, id)
		stub.mu.Unlock()

		switch {
		case id == "isrc:USRC1", id == "1":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":           1,
				"title":        "One",
				"isrc":         "USRC1",
				"link":         "https://www.deezer.com/track/1",
				"contributors": []map[string]string{{"name": "A"}, {"name": "Featured"}},
				"album":        map[string]string{"cover": "small.jpg", "cover_xl": "xl.jpg"},
			})
		case id == "2":
			writeJSON(w, http.StatusOK, map[string]any{"id": 2, "title": "Two", "isrc": "USRC2", "artist": map[string]string{"name": "B"}})
		case id == "3":
			writeJSON(w, http.StatusOK, map[string]any{"error": map[string]any{"type": "Exception", "message": "Quota limit exceeded", "code": 4}})
		default:
			writeJSON(w, http.StatusOK, deezerNotFound())
		}
	})

	mux.HandleFunc("GET /search/track", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("order") != "RANKING" {
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
			return
		}
		q := r.URL.Query().Get("q")
		if !strings.Contains(q, `track:"Two"`) {
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"id": 2, "title": "Two", "artist": map[string]string{"name": "B"}},
			{"id": 22, "title": "Two (Remix)", "artist": map[string]string{"name": "B"}},
		}})
	})

	mux.HandleFunc("POST /user/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.token = r.URL.Query().Get("access_token")
		stub.mu.Unlock()
		if stub.token == "expired" {
			writeJSON(w, http.StatusOK, map[string]any{"error": map[string]any{"type": "OAuthException", "message": "Invalid OAuth access token.", "code": 300}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 555})
	})

	mux.HandleFunc("POST /playlist/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.songs = r.URL.Query().Get("songs")
		stub.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "true")
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *deezerStub) service() *DeezerService {
	return NewDeezerService(WithBaseURL(s.server.URL), WithHTTPClient(s.server.Client()), WithLogger(quietLogger()))
}

func TestDeezerService(t *testing.T) {
	stub := newDeezerStub(t)
	srv := stub.service()

	t.Run("FetchPlaylist", func(t *testing.T) {
		p, err := srv.FetchPlaylist(context.Background(), "908622995")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Title != "Deezer Hits" || p.ImageURL != "https://e-cdns-images.dzcdn.net/images/playlist/xl.jpg" || p.Platform != models.Deezer {
			t.Errorf("unexpected playlist %+v", p)
		}

		t.Run("in-body error 800 is not found", func(t *testing.T) {
			_, err := srv.FetchPlaylist(context.Background(), "1")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("FetchTracks fetches details in order", func(t *testing.T) {
		stub.mu.Lock()
		stub.details = nil
		stub.mu.Unlock()

		tracks, err := srv.FetchTracks(context.Background(), "908622995")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(tracks))
		}
		if got := strings.Join(stub.details, ","); got != "1,2,3" {
			t.Errorf("expected detail calls in order, got %s", got)
		}

		one := tracks[0]
		if one.ISRC != "USRC1" || one.CoverArtURL != "xl.jpg" || len(one.Artists) != 2 || one.Artists[1] != "Featured" {
			t.Errorf("unexpected detail normalization %+v", one)
		}
		if one.Ref == nil || one.Ref.ID != "1" || one.Ref.Platform != models.Deezer {
			t.Errorf("unexpected ref %+v", one.Ref)
		}
		if tracks[1].Artists[0] != "B" {
			t.Errorf("expected artist fallback, got %v", tracks[1].Artists)
		}
		if tracks[2].Title != "Three" || tracks[2].ISRC != "" {
			t.Errorf("expected list entry when detail fails, got %+v", tracks[2])
		}
	})

	t.Run("Search", func(t *testing.T) {
		t.Run("ISRC hit is authoritative", func(t *testing.T) {
			tracks, err := srv.Search(context.Background(), models.SearchQuery{ISRC: "USRC1", Title: "Two"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 || tracks[0].ID != "1" {
				t.Errorf("expected the ISRC track, got %+v", tracks)
			}
		})

		t.Run("ISRC miss falls back to ranked text", func(t *testing.T) {
			tracks, err := srv.Search(context.Background(), models.SearchQuery{ISRC: "NOPE", Title: "Two", Artist: "B"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 || tracks[0].ID != "2" {
				t.Errorf("expected ranked results, got %+v", tracks)
			}
		})

		t.Run("no results", func(t *testing.T) {
			tracks, err := srv.Search(context.Background(), models.SearchQuery{Title: "Nothing"})
			if err != nil || len(tracks) != 0 {
				t.Errorf("expected empty result, got %v, %v", tracks, err)
			}
		})
	})

	t.Run("Writes", func(t *testing.T) {
		if _, err := srv.CreatePlaylist(context.Background(), "Mix"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		ctx := WithUserToken(context.Background(), &oauth2.Token{AccessToken: "dz-token"})
		id, err := srv.CreatePlaylist(ctx, "Mix")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "555" || stub.token != "dz-token" {
			t.Errorf("unexpected id %q or token %q", id, stub.token)
		}

		status, err := srv.AddTracks(ctx, id, []models.TrackRef{{ID: "1"}, {ID: "2"}, {ID: "3"}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if status != http.StatusOK || stub.songs != "1,2,3" {
			t.Errorf("unexpected status %d or songs %q", status, stub.songs)
		}

		t.Run("OAuth errors map to not authenticated", func(t *testing.T) {
			ctx := WithUserToken(context.Background(), &oauth2.Token{AccessToken: "expired"})
			_, err := srv.CreatePlaylist(ctx, "Mix")
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})
}
