package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
)

// DefaultMatchTimeout bounds a single track lookup.
const DefaultMatchTimeout = 30 * time.Second

// Matcher resolves source tracks against one target platform's catalog.
type Matcher struct {
	target  services.Service
	timeout time.Duration
}

// NewMatcher creates a matcher for target. A timeout of zero uses [DefaultMatchTimeout].
func NewMatcher(target services.Service, timeout time.Duration) *Matcher {
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	return &Matcher{target: target, timeout: timeout}
}

// Match finds the target platform's reference for source.
//
// An ISRC lookup runs first and any candidate it returns wins. Otherwise the top free-text
// result for the title and first artist is taken. No candidates yields [shared.ErrNoMatch].
func (m *Matcher) Match(ctx context.Context, source models.Track) (*models.TrackRef, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if source.ISRC != "" {
		candidates, err := m.target.Search(ctx, models.SearchQuery{ISRC: source.ISRC})
		if err != nil {
			return nil, fmt.Errorf("isrc search for %s on %s: %w", source.ISRC, m.target.Name(), err)
		}
		if ref := pickISRC(candidates, source.ISRC); ref != nil {
			return ref, nil
		}
	}

	q := models.SearchQuery{Title: source.Title, Artist: source.Artist()}
	if q.Empty() {
		return nil, fmt.Errorf("%w: track has no isrc, title or artist", shared.ErrNoMatch)
	}

	candidates, err := m.target.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search for %q on %s: %w", source.Title, m.target.Name(), err)
	}
	for _, c := range candidates {
		if c.Ref != nil {
			return c.Ref, nil
		}
	}
	return nil, fmt.Errorf("%w: %s - %s on %s", shared.ErrNoMatch, source.Artist(), source.Title, m.target.Name())
}

// pickISRC prefers the candidate whose ISRC equals isrc, then the first usable candidate.
func pickISRC(candidates []models.Track, isrc string) *models.TrackRef {
	var first *models.TrackRef
	for _, c := range candidates {
		if c.Ref == nil {
			continue
		}
		if strings.EqualFold(c.ISRC, isrc) {
			return c.Ref
		}
		if first == nil {
			first = c.Ref
		}
	}
	return first
}
