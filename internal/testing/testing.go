// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

// MockService is a test double for services.Service.
//
// Zero values give an empty playlist, no search results and a "mock-playlist" shell.
// Every call is recorded so tests can assert on order.
type MockService struct {
	Plat     models.Platform
	Playlist *models.Playlist
	Tracks   []models.Track
	FetchErr error
	// Delay blocks FetchPlaylist and FetchTracks until it elapses or ctx is done.
	Delay time.Duration

	SearchFunc func(ctx context.Context, q models.SearchQuery) ([]models.Track, error)
	CreateID   string
	CreateErr  error
	AddFunc    func(ctx context.Context, playlistID string, refs []models.TrackRef) (int, error)

	mu       sync.Mutex
	Searches []models.SearchQuery
	Created  []string
	Added    [][]models.TrackRef
}

func (m *MockService) Name() string              { return "mock " + m.Plat.String() }
func (m *MockService) Platform() models.Platform { return m.Plat }

func (m *MockService) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockService) FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Playlist == nil {
		return &models.Playlist{Platform: m.Plat, Title: "Mock " + id}, nil
	}
	p := m.Playlist.Clone()
	p.Tracks = nil
	return &p, nil
}

func (m *MockService) FetchTracks(ctx context.Context, id string) ([]models.Track, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return append([]models.Track(nil), m.Tracks...), nil
}

func (m *MockService) Search(ctx context.Context, q models.SearchQuery) ([]models.Track, error) {
	m.mu.Lock()
	m.Searches = append(m.Searches, q)
	m.mu.Unlock()

	if m.SearchFunc == nil {
		return nil, nil
	}
	return m.SearchFunc(ctx, q)
}

func (m *MockService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.Created = append(m.Created, name)
	m.mu.Unlock()

	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if m.CreateID == "" {
		return "mock-playlist", nil
	}
	return m.CreateID, nil
}

func (m *MockService) AddTracks(ctx context.Context, playlistID string, refs []models.TrackRef) (int, error) {
	m.mu.Lock()
	m.Added = append(m.Added, append([]models.TrackRef(nil), refs...))
	m.mu.Unlock()

	if m.AddFunc == nil {
		return http.StatusCreated, nil
	}
	return m.AddFunc(ctx, playlistID, refs)
}

// SearchCalls returns a copy of the recorded search queries.
func (m *MockService) SearchCalls() []models.SearchQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SearchQuery(nil), m.Searches...)
}

// AddCalls returns a copy of the recorded insert batches.
func (m *MockService) AddCalls() [][]models.TrackRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]models.TrackRef(nil), m.Added...)
}

// ISRCCatalog returns a SearchFunc that only knows the given ISRCs and never matches free text.
func ISRCCatalog(p models.Platform, isrcs ...string) func(context.Context, models.SearchQuery) ([]models.Track, error) {
	known := make(map[string]bool, len(isrcs))
	for _, isrc := range isrcs {
		known[isrc] = true
	}
	return func(_ context.Context, q models.SearchQuery) ([]models.Track, error) {
		if q.ISRC == "" || !known[q.ISRC] {
			return nil, nil
		}
		id := "target-" + q.ISRC
		return []models.Track{{
			ID:    id,
			ISRC:  q.ISRC,
			Title: q.Title,
			Ref:   &models.TrackRef{Platform: p, ID: id, Type: "songs"},
		}}, nil
	}
}

// MemoryLinkStore is an in-memory models.LinkStore. Now defaults to time.Now.
type MemoryLinkStore struct {
	Now func() time.Time

	mu    sync.Mutex
	links map[string]*models.ShareLink
}

func NewMemoryLinkStore(now func() time.Time) *MemoryLinkStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryLinkStore{Now: now, links: make(map[string]*models.ShareLink)}
}

func (s *MemoryLinkStore) Create(_ context.Context, link *models.ShareLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.LinkUUID]; ok {
		return fmt.Errorf("%w: duplicate link %s", shared.ErrInvalidInput, link.LinkUUID)
	}
	s.links[link.LinkUUID] = link
	return nil
}

func (s *MemoryLinkStore) Get(_ context.Context, id string) (*models.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok || link.Expired(s.Now()) {
		return nil, fmt.Errorf("%w: %s", shared.ErrLinkNotFound, id)
	}
	return link, nil
}

func (s *MemoryLinkStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, link := range s.links {
		if link.Expired(now) {
			delete(s.links, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryLinkStore) Close() error { return nil }

// Len returns the number of stored links, expired or not.
func (s *MemoryLinkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// RoundTripperFunc adapts a function to [http.RoundTripper].
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// MustConfig returns the embedded default configuration.
func MustConfig(t *testing.T) *shared.Config {
	t.Helper()
	return shared.DefaultConfig()
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
