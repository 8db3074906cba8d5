// package models defines the data model for the playlist conversion service
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines write-once persistence for a model type.
//
// Records are never updated in place; a new conversion produces a new record.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error     // Create inserts a new model
	Get(ctx context.Context, id string) (T, error) // Get retrieves a model by its ID
}

// LinkStore is the TTL key-value store behind share links.
type LinkStore interface {
	Repository[*ShareLink]
	// PurgeExpired deletes every record whose TTL is before now and reports how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Platform identifies a streaming service. The numeric values are part of the share link format.
type Platform int

const (
	Spotify Platform = iota
	Apple
	Deezer
)

// Platforms lists every supported platform in enum order.
func Platforms() []Platform {
	return []Platform{Spotify, Apple, Deezer}
}

// String returns the lowercase slug used in API paths.
func (p Platform) String() string {
	switch p {
	case Spotify:
		return "spotify"
	case Apple:
		return "apple"
	case Deezer:
		return "deezer"
	default:
		return fmt.Sprintf("platform(%d)", int(p))
	}
}

// Title returns the display name.
func (p Platform) Title() string {
	switch p {
	case Spotify:
		return "Spotify"
	case Apple:
		return "Apple Music"
	case Deezer:
		return "Deezer"
	default:
		return p.String()
	}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p >= Spotify && p <= Deezer
}

// ParsePlatform accepts a slug ("spotify"), a display name ("Apple Music") or an enum value ("2").
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spotify", "0":
		return Spotify, nil
	case "apple", "apple music", "applemusic", "1":
		return Apple, nil
	case "deezer", "2":
		return Deezer, nil
	}
	return 0, fmt.Errorf("unknown platform %q", s)
}

// TrackRef is the platform-native handle needed to add a track to a playlist.
type TrackRef struct {
	Platform Platform `json:"platform"`
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"` // Apple resource type ("songs")
	URI      string   `json:"uri,omitempty"`  // Spotify URI
}

// Track is a platform-neutral song. Matching identity is the ISRC, not ID.
type Track struct {
	ID          string    `json:"id"`
	ISRC        string    `json:"isrc"`
	Title       string    `json:"title"`
	Artists     []string  `json:"artists"`
	CoverArtURL string    `json:"coverArtUrl"`
	LinkToSong  string    `json:"linkToSong"`
	Ref         *TrackRef `json:"ref,omitempty"`
}

// Artist returns the primary (first) artist.
func (t Track) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Playlist is a normalized playlist. Track order is the source platform's order.
type Playlist struct {
	Platform    Platform `json:"platform"`
	PlaylistURL string   `json:"playlistUrl"`
	Title       string   `json:"title"`
	ImageURL    string   `json:"imageUrl"`
	Tracks      []Track  `json:"tracks"`
}

// Validate checks the fields a share link needs.
func (p *Playlist) Validate() error {
	if !p.Platform.Valid() {
		return fmt.Errorf("invalid platform %d", int(p.Platform))
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("playlist title is required")
	}
	return nil
}

// Clone returns a deep copy so callers can reorder or filter without touching the original.
func (p Playlist) Clone() Playlist {
	out := p
	out.Tracks = make([]Track, len(p.Tracks))
	for i, t := range p.Tracks {
		t.Artists = append([]string(nil), t.Artists...)
		if t.Ref != nil {
			ref := *t.Ref
			t.Ref = &ref
		}
		out.Tracks[i] = t
	}
	return out
}

// SearchQuery carries the lookup keys for a track search. Any field may be empty.
type SearchQuery struct {
	ISRC   string
	Title  string
	Artist string
}

// Empty reports whether the query has nothing to search for.
func (q SearchQuery) Empty() bool {
	return q.ISRC == "" && q.Title == "" && q.Artist == ""
}

// Text returns a copy with the ISRC removed, for free-text searches.
func (q SearchQuery) Text() SearchQuery {
	q.ISRC = ""
	return q
}

// ShareLink is the durable record behind a shareable playlist URL.
//
// TTL is the expiry as epoch seconds.
type ShareLink struct {
	LinkUUID string    `json:"linkUuid"`
	Playlist Playlist  `json:"playlist"`
	TTL      int64     `json:"ttl"`
	Created  time.Time `json:"-"`
}

// NewShareLink builds a link that expires ttl after now.
func NewShareLink(id string, playlist Playlist, now time.Time, ttl time.Duration) *ShareLink {
	return &ShareLink{
		LinkUUID: id,
		Playlist: playlist,
		TTL:      now.Add(ttl).Unix(),
		Created:  now,
	}
}

func (l *ShareLink) ID() string           { return l.LinkUUID }
func (l *ShareLink) CreatedAt() time.Time { return l.Created }

// ExpiresAt returns the TTL as a time.
func (l *ShareLink) ExpiresAt() time.Time {
	return time.Unix(l.TTL, 0)
}

// Expired reports whether the link is past its TTL at now.
func (l *ShareLink) Expired(now time.Time) bool {
	return now.Unix() >= l.TTL
}

func (l *ShareLink) Validate() error {
	if l.LinkUUID == "" {
		return fmt.Errorf("link id is required")
	}
	if l.TTL <= 0 {
		return fmt.Errorf("ttl is required")
	}
	return l.Playlist.Validate()
}

// EncodePlaylist serializes the embedded playlist for storage.
func (l *ShareLink) EncodePlaylist() ([]byte, error) {
	return json.Marshal(l.Playlist)
}

// Conversion records one save operation for auditing. It never stores track ids.
type Conversion struct {
	ConversionID     string
	LinkUUID         string
	Source           Platform
	Target           Platform
	TargetPlaylistID string
	Status           int
	Matched          int
	Total            int
	Created          time.Time
}

func (c *Conversion) ID() string           { return c.ConversionID }
func (c *Conversion) CreatedAt() time.Time { return c.Created }

func (c *Conversion) Validate() error {
	if !c.Source.Valid() || !c.Target.Valid() {
		return fmt.Errorf("invalid platform pair %d -> %d", int(c.Source), int(c.Target))
	}
	if c.Matched > c.Total {
		return fmt.Errorf("matched %d exceeds total %d", c.Matched, c.Total)
	}
	return nil
}
