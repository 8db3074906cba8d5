package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"go.etcd.io/bbolt"
)

var (
	linksBucket       = []byte("playlist_links")
	conversionsBucket = []byte("conversions")
)

// boltLink is the stored form of a share link; [models.ShareLink] hides Created from JSON.
type boltLink struct {
	LinkUUID string          `json:"linkUuid"`
	Playlist models.Playlist `json:"playlist"`
	TTL      int64           `json:"ttl"`
	Created  time.Time       `json:"createdAt"`
}

// BoltStore implements [models.LinkStore] in a single bbolt file keyed by link id.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	options := &bbolt.Options{Timeout: 1 * time.Second}
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{linksBucket, conversionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create buckets: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// WithClock replaces time.Now for expiry checks.
func (s *BoltStore) WithClock(now func() time.Time) *BoltStore {
	s.now = now
	return s
}

func (s *BoltStore) Create(_ context.Context, link *models.ShareLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}
	if link.Created.IsZero() {
		link.Created = s.now()
	}

	value, err := json.Marshal(boltLink{
		LinkUUID: link.LinkUUID,
		Playlist: link.Playlist,
		TTL:      link.TTL,
		Created:  link.Created,
	})
	if err != nil {
		return fmt.Errorf("error serializing share link: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(linksBucket)
		key := []byte(link.LinkUUID)
		if b.Get(key) != nil {
			return fmt.Errorf("%w: share link %s already exists", shared.ErrInvalidInput, link.LinkUUID)
		}
		return b.Put(key, value)
	})
}

func (s *BoltStore) Get(_ context.Context, id string) (*models.ShareLink, error) {
	var stored boltLink
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(linksBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", shared.ErrLinkNotFound, id)
		}
		if err := json.Unmarshal(v, &stored); err != nil {
			return fmt.Errorf("error deserializing share link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	link := &models.ShareLink{LinkUUID: stored.LinkUUID, Playlist: stored.Playlist, TTL: stored.TTL, Created: stored.Created}
	if link.Expired(s.now()) {
		return nil, fmt.Errorf("%w: %s", shared.ErrLinkNotFound, id)
	}
	return link, nil
}

// PurgeExpired deletes links whose TTL is at or before now.
func (s *BoltStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	purged := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(linksBucket)

		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var stored struct {
				TTL int64 `json:"ttl"`
			}
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("error deserializing share link %s: %w", k, err)
			}
			if now.Unix() >= stored.TTL {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(expired)
		return nil
	})
	return purged, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Conversions returns the audit repository kept in the same file.
func (s *BoltStore) Conversions() *BoltConversions {
	return &BoltConversions{db: s.db}
}

// BoltConversions stores [models.Conversion] rows as JSON in the conversions bucket.
type BoltConversions struct {
	db *bbolt.DB
}

func (c *BoltConversions) Create(_ context.Context, conv *models.Conversion) error {
	if conv.ConversionID == "" {
		conv.ConversionID = shared.GenerateID()
	}
	if conv.Created.IsZero() {
		conv.Created = time.Now()
	}
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	value, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("error serializing conversion: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(conversionsBucket).Put([]byte(conv.ConversionID), value)
	})
}

func (c *BoltConversions) Get(_ context.Context, id string) (*models.Conversion, error) {
	var conv models.Conversion
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(conversionsBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrConversionNotFound, id)
		}
		return json.Unmarshal(v, &conv)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
