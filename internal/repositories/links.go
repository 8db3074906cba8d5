package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

// LinkRepository implements [models.LinkStore] on the playlist_links table.
//
// Expired rows stay on disk until [LinkRepository.PurgeExpired] runs but are never returned.
type LinkRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLinkRepository creates a new LinkRepository with the given database connection
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db, now: time.Now}
}

// WithClock replaces time.Now for expiry checks.
func (r *LinkRepository) WithClock(now func() time.Time) *LinkRepository {
	r.now = now
	return r
}

// Create inserts a share link. Links are write-once; reusing an id fails.
func (r *LinkRepository) Create(ctx context.Context, link *models.ShareLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	playlist, err := link.EncodePlaylist()
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}
	if link.Created.IsZero() {
		link.Created = r.now()
	}

	query := `
		INSERT INTO playlist_links (link_uuid, platform, title, playlist, ttl, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		link.LinkUUID,
		int(link.Playlist.Platform),
		link.Playlist.Title,
		string(playlist),
		link.TTL,
		link.Created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert share link: %w", err)
	}

	return nil
}

// Get retrieves a live link by id. Unknown and expired ids return [shared.ErrLinkNotFound].
func (r *LinkRepository) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	query := `
		SELECT link_uuid, playlist, ttl, created_at
		FROM playlist_links
		WHERE link_uuid = ? AND ttl > ?
	`

	var (
		link     models.ShareLink
		playlist string
	)

	err := r.db.QueryRowContext(ctx, query, id, epoch(r.now())).Scan(&link.LinkUUID, &playlist, &link.TTL, &link.Created)
	if err != nil {
		return nil, notFound(err, shared.ErrLinkNotFound, id)
	}

	if err := json.Unmarshal([]byte(playlist), &link.Playlist); err != nil {
		return nil, fmt.Errorf("failed to decode playlist for link %s: %w", id, err)
	}

	return &link, nil
}

// PurgeExpired deletes links whose TTL is at or before now.
func (r *LinkRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM playlist_links WHERE ttl <= ?", epoch(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge share links: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

func (r *LinkRepository) Close() error {
	return r.db.Close()
}
