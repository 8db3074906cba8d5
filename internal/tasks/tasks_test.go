package tasks

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	tu "github.com/desertthunder/playvert/internal/testing"
)

type memoryConversions struct {
	mu   sync.Mutex
	rows []*models.Conversion
}

func (m *memoryConversions) Create(_ context.Context, c *models.Conversion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, c)
	return nil
}

func (m *memoryConversions) Get(_ context.Context, id string) (*models.Conversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ConversionID == id {
			return c, nil
		}
	}
	return nil, shared.ErrInvalidInput
}

func spotifySource() *tu.MockService {
	return &tu.MockService{
		Plat: models.Spotify,
		Playlist: &models.Playlist{
			Platform: models.Spotify,
			Title:    "Road Trip",
		},
		Tracks: []models.Track{
			{ID: "spotify:track:1", ISRC: "USRC1", Title: "First", Artists: []string{"Band"},
				Ref: &models.TrackRef{Platform: models.Spotify, ID: "1", URI: "spotify:track:1"}},
			{ID: "spotify:track:2", ISRC: "USRC2", Title: "Second", Artists: []string{"Band"},
				Ref: &models.TrackRef{Platform: models.Spotify, ID: "2", URI: "spotify:track:2"}},
		},
	}
}

func newEngine(t *testing.T, clock func() time.Time, opts Options, svcs ...services.Service) (*PlaylistEngine, *tu.MemoryLinkStore) {
	t.Helper()
	links := tu.NewMemoryLinkStore(clock)
	engine := NewPlaylistEngine(svcs, links, nil, opts, quietLogger())
	if clock != nil {
		engine.WithClock(clock)
	}
	return engine, links
}

func TestPlaylistEngineResolve(t *testing.T) {
	const url = "https://open.spotify.com/playlist/ABC123"

	t.Run("fetches metadata and tracks", func(t *testing.T) {
		engine, _ := newEngine(t, nil, Options{}, spotifySource())
		updates := make(chan ProgressUpdate, 10)

		playlist, err := engine.Resolve(context.Background(), url, updates)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Title != "Road Trip" || playlist.Platform != models.Spotify || playlist.PlaylistURL != url {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if len(playlist.Tracks) != 2 || playlist.Tracks[0].ISRC != "USRC1" || playlist.Tracks[1].ISRC != "USRC2" {
			t.Errorf("unexpected tracks %+v", playlist.Tracks)
		}
		if len(updates) == 0 {
			t.Error("expected progress updates")
		}
	})

	t.Run("timeout is reported as not found", func(t *testing.T) {
		slow := spotifySource()
		slow.Delay = time.Second
		engine, _ := newEngine(t, nil, Options{FetchTimeout: 30 * time.Millisecond}, slow)

		start := time.Now()
		_, err := engine.Resolve(context.Background(), url, nil)
		if !errors.Is(err, shared.ErrPlaylistNotFound) || !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Error("resolve did not stop at the fetch timeout")
		}
	})

	t.Run("upstream not found passes through", func(t *testing.T) {
		missing := spotifySource()
		missing.FetchErr = &shared.UpstreamError{Platform: "Spotify", StatusCode: http.StatusNotFound, NotFound: true}
		engine, _ := newEngine(t, nil, Options{}, missing)

		_, err := engine.Resolve(context.Background(), url, nil)
		if !errors.Is(err, shared.ErrPlaylistNotFound) || errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected plain ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("unconfigured platform", func(t *testing.T) {
		engine, _ := newEngine(t, nil, Options{}, spotifySource())
		_, err := engine.Resolve(context.Background(), "https://www.deezer.com/playlist/1", nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("unsupported URL", func(t *testing.T) {
		engine, _ := newEngine(t, nil, Options{}, spotifySource())
		_, err := engine.Resolve(context.Background(), "https://tidal.com/playlist/1", nil)
		if !errors.Is(err, shared.ErrUnsupportedPlatform) {
			t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
		}
	})
}

func TestPlaylistEngineShare(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	engine, links := newEngine(t, clock, Options{})

	playlist := &models.Playlist{Platform: models.Deezer, Title: "Mix", Tracks: makeTracks(3)}

	link, err := engine.Share(context.Background(), playlist)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if link.LinkUUID == "" || link.TTL != now.Add(24*time.Hour).Unix() {
		t.Errorf("unexpected link %+v", link)
	}

	t.Run("snapshot is independent of the caller's playlist", func(t *testing.T) {
		playlist.Tracks[0].Title = "changed"
		got, err := engine.Shared(context.Background(), link.LinkUUID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Playlist.Tracks[0].Title != "Song 0" {
			t.Error("stored playlist was mutated")
		}
	})

	t.Run("ids are unique", func(t *testing.T) {
		other, err := engine.Share(context.Background(), playlist)
		if err != nil || other.LinkUUID == link.LinkUUID {
			t.Errorf("expected a fresh id, got %v %v", other, err)
		}
		if links.Len() != 2 {
			t.Errorf("expected 2 stored links, got %d", links.Len())
		}
	})

	t.Run("expired and unknown links are not found", func(t *testing.T) {
		now = now.Add(25 * time.Hour)
		if _, err := engine.Shared(context.Background(), link.LinkUUID); !errors.Is(err, shared.ErrLinkNotFound) {
			t.Errorf("expected ErrLinkNotFound after expiry, got %v", err)
		}
		if _, err := engine.Shared(context.Background(), "nope"); !errors.Is(err, shared.ErrLinkNotFound) {
			t.Errorf("expected ErrLinkNotFound, got %v", err)
		}
	})

	t.Run("invalid playlists are rejected", func(t *testing.T) {
		if _, err := engine.Share(context.Background(), &models.Playlist{Platform: models.Deezer}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := engine.Share(context.Background(), nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestPlaylistEngineSave(t *testing.T) {
	t.Run("tracks already native to the target skip matching", func(t *testing.T) {
		source := spotifySource()
		engine, _ := newEngine(t, nil, Options{}, source)

		result, err := engine.Save(context.Background(), SaveRequest{
			Target: models.Spotify,
			Name:   "Copy",
			Tracks: source.Tracks,
		}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(source.SearchCalls()) != 0 {
			t.Error("expected no searches for native refs")
		}
		if len(result.Included) != 2 || result.Refs[0].URI != "spotify:track:1" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("refs are written without matching", func(t *testing.T) {
		target := &tu.MockService{Plat: models.Deezer}
		engine, _ := newEngine(t, nil, Options{}, target)

		result, err := engine.Save(context.Background(), SaveRequest{Target: models.Deezer, Name: "Direct", Refs: makeRefs(3)}, nil)
		if err != nil || result.Status != http.StatusCreated {
			t.Fatalf("unexpected result %+v, %v", result, err)
		}
		if calls := target.AddCalls(); len(calls) != 1 || len(calls[0]) != 3 {
			t.Errorf("expected one insert of 3 refs, got %+v", calls)
		}
	})

	t.Run("name is required", func(t *testing.T) {
		engine, _ := newEngine(t, nil, Options{}, &tu.MockService{Plat: models.Deezer})
		if _, err := engine.Save(context.Background(), SaveRequest{Target: models.Deezer, Name: "  "}, nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("partial writes return the result with the error", func(t *testing.T) {
		target := &tu.MockService{Plat: models.Deezer}
		target.AddFunc = func(context.Context, string, []models.TrackRef) (int, error) {
			return http.StatusForbidden, &shared.UpstreamError{Platform: "Deezer", StatusCode: http.StatusForbidden}
		}
		conversions := &memoryConversions{}
		engine, _ := newEngine(t, nil, Options{}, target)
		engine.WithConversions(conversions)

		result, err := engine.Save(context.Background(), SaveRequest{Target: models.Deezer, Name: "Mix", Refs: makeRefs(2)}, nil)

		var partial *shared.PartialWriteError
		if !errors.As(err, &partial) || result == nil || result.Status != http.StatusForbidden {
			t.Fatalf("expected partial write with result, got %+v, %v", result, err)
		}
		if len(conversions.rows) != 1 || conversions.rows[0].Status != http.StatusForbidden {
			t.Errorf("expected the failed save to be recorded, got %+v", conversions.rows)
		}
	})
}

func TestConvertSpotifyToApple(t *testing.T) {
	ctx := context.Background()
	source := spotifySource()
	target := &tu.MockService{Plat: models.Apple, CreateID: "p.apple", SearchFunc: tu.ISRCCatalog(models.Apple, "USRC1")}
	conversions := &memoryConversions{}

	engine, _ := newEngine(t, nil, Options{}, source, target)
	engine.WithConversions(conversions)

	playlist, err := engine.Resolve(ctx, "https://open.spotify.com/playlist/ABC123", nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	link, err := engine.Share(ctx, playlist)
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}

	stored, err := engine.Shared(ctx, link.LinkUUID)
	if err != nil {
		t.Fatalf("shared failed: %v", err)
	}
	got := stored.Playlist.Tracks
	if len(got) != 2 || got[0].ISRC != "USRC1" || got[1].ISRC != "USRC2" {
		t.Fatalf("share link lost track order: %+v", got)
	}

	result, err := engine.Save(ctx, SaveRequest{
		Target:   models.Apple,
		Name:     stored.Playlist.Title,
		Tracks:   got,
		LinkUUID: link.LinkUUID,
		Source:   stored.Playlist.Platform,
	}, nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if result.PlaylistID != "p.apple" || result.Status != http.StatusCreated {
		t.Errorf("unexpected save result %+v", result)
	}
	if len(result.Included) != 1 || result.Included[0].Ref.ID != "target-USRC1" {
		t.Errorf("expected USRC1 to be included, got %+v", result.Included)
	}
	if len(result.Unmatched) != 1 || !errors.Is(result.Unmatched[0].Err, shared.ErrNoMatch) || result.Unmatched[0].Index != 1 {
		t.Errorf("expected USRC2 to be unmatched, got %+v", result.Unmatched)
	}

	calls := target.AddCalls()
	if len(calls) != 1 || len(calls[0]) != 1 || calls[0][0].ID != "target-USRC1" {
		t.Errorf("expected a single insert of one track, got %+v", calls)
	}

	if len(conversions.rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(conversions.rows))
	}
	row := conversions.rows[0]
	if row.Source != models.Spotify || row.Target != models.Apple || row.Matched != 1 || row.Total != 2 || row.LinkUUID != link.LinkUUID {
		t.Errorf("unexpected audit row %+v", row)
	}
}
