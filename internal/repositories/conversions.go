package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

// ConversionRepository stores [models.Conversion] audit rows.
type ConversionRepository struct {
	db *sql.DB
}

func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

// Create inserts a conversion, generating its id when empty.
func (r *ConversionRepository) Create(ctx context.Context, c *models.Conversion) error {
	if c.ConversionID == "" {
		c.ConversionID = shared.GenerateID()
	}
	if c.Created.IsZero() {
		c.Created = time.Now()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO conversions (id, link_uuid, source_platform, target_platform, target_playlist_id, status, matched, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ConversionID,
		sql.NullString{String: c.LinkUUID, Valid: c.LinkUUID != ""},
		int(c.Source),
		int(c.Target),
		c.TargetPlaylistID,
		c.Status,
		c.Matched,
		c.Total,
		c.Created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}

	return nil
}

// Get retrieves a conversion by id
func (r *ConversionRepository) Get(ctx context.Context, id string) (*models.Conversion, error) {
	query := `
		SELECT id, link_uuid, source_platform, target_platform, target_playlist_id, status, matched, total, created_at
		FROM conversions
		WHERE id = ?
	`
	c, err := scanConversion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrConversionNotFound, id)
	}
	return c, nil
}

// ListByLink returns the conversions made from one share link, oldest first.
func (r *ConversionRepository) ListByLink(ctx context.Context, linkUUID string) ([]*models.Conversion, error) {
	query := `
		SELECT id, link_uuid, source_platform, target_platform, target_playlist_id, status, matched, total, created_at
		FROM conversions
		WHERE link_uuid = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, linkUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var out []*models.Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(s scanner) (*models.Conversion, error) {
	var (
		c              models.Conversion
		link           sql.NullString
		source, target int
	)

	err := s.Scan(&c.ConversionID, &link, &source, &target, &c.TargetPlaylistID, &c.Status, &c.Matched, &c.Total, &c.Created)
	if err != nil {
		return nil, err
	}

	c.LinkUUID = link.String
	c.Source = models.Platform(source)
	c.Target = models.Platform(target)
	return &c, nil
}
