package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/stretchr/testify/require"
)

func TestBoltStore_Links(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "links.bolt")

	now := time.Unix(1_700_000_000, 0)
	store, err := NewBoltStore(dbPath)
	require.NoError(t, err, "Failed to create new bbolt store")
	defer store.Close()
	store.WithClock(func() time.Time { return now })

	link := models.NewShareLink("link-1", testPlaylist(), now, 24*time.Hour)
	require.NoError(t, store.Create(ctx, link))
	require.ErrorIs(t, store.Create(ctx, link), shared.ErrInvalidInput, "Links are write-once")

	got, err := store.Get(ctx, "link-1")
	require.NoError(t, err)
	require.Equal(t, link.TTL, got.TTL)
	require.Equal(t, "Road Trip", got.Playlist.Title)
	require.Len(t, got.Playlist.Tracks, 2)
	require.Equal(t, "USRC1", got.Playlist.Tracks[0].ISRC, "Track order should be preserved")
	require.True(t, got.Created.Equal(now))

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, shared.ErrLinkNotFound)

	now = now.Add(24 * time.Hour)
	_, err = store.Get(ctx, "link-1")
	require.ErrorIs(t, err, shared.ErrLinkNotFound, "Link should expire at its ttl")
}

func TestBoltStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	store, err := NewBoltStore(filepath.Join(t.TempDir(), "links.bolt"))
	require.NoError(t, err)
	defer store.Close()
	store.WithClock(func() time.Time { return now })

	require.NoError(t, store.Create(ctx, models.NewShareLink("a", testPlaylist(), now, time.Hour)))
	require.NoError(t, store.Create(ctx, models.NewShareLink("b", testPlaylist(), now, 2*time.Hour)))
	require.NoError(t, store.Create(ctx, models.NewShareLink("c", testPlaylist(), now, 48*time.Hour)))

	purged, err := store.PurgeExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, purged)

	_, err = store.Get(ctx, "c")
	require.NoError(t, err, "Live link should survive a purge")

	purged, err = store.PurgeExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Zero(t, purged)
}

func TestBoltStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "links.bolt")

	store, err := NewBoltStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, models.NewShareLink("kept", testPlaylist(), time.Now(), time.Hour)))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "kept")
	require.NoError(t, err)
	require.Equal(t, "kept", got.LinkUUID)
}

func TestBoltConversions(t *testing.T) {
	ctx := context.Background()

	store, err := NewBoltStore(filepath.Join(t.TempDir(), "links.bolt"))
	require.NoError(t, err)
	defer store.Close()

	repo := store.Conversions()
	conv := &models.Conversion{LinkUUID: "link-1", Source: models.Deezer, Target: models.Spotify, TargetPlaylistID: "abc", Status: 201, Matched: 3, Total: 4}
	require.NoError(t, repo.Create(ctx, conv))
	require.NotEmpty(t, conv.ConversionID)

	got, err := repo.Get(ctx, conv.ConversionID)
	require.NoError(t, err)
	require.Equal(t, models.Spotify, got.Target)
	require.Equal(t, 3, got.Matched)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrConversionNotFound)

	require.ErrorIs(t, repo.Create(ctx, &models.Conversion{Source: models.Platform(9)}), shared.ErrInvalidInput)
}
