// package services defines interface Service for interacting with streaming platform HTTP APIs
//
// Spotify, Apple Music, Deezer
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"golang.org/x/oauth2"
)

// Service is a platform adapter. Every method returns platform-neutral models.
type Service interface {
	// Name returns the display name of the platform (e.g., "Spotify", "Apple Music")
	Name() string

	Platform() models.Platform

	// FetchPlaylist retrieves playlist metadata (title, image, URL) without tracks.
	FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error)

	// FetchTracks retrieves the full ordered track list, following pagination.
	FetchTracks(ctx context.Context, id string) ([]models.Track, error)

	// Search returns ranked candidates for q. An empty result is not an error.
	Search(ctx context.Context, q models.SearchQuery) ([]models.Track, error)

	// CreatePlaylist creates an empty playlist for the user in ctx and returns its id.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// AddTracks inserts refs with a single upstream call and returns the upstream HTTP status.
	AddTracks(ctx context.Context, playlistID string, refs []models.TrackRef) (int, error)
}

// CoverUploader is implemented by services that accept a custom playlist image.
type CoverUploader interface {
	UploadCoverArt(ctx context.Context, playlistID string, jpeg []byte) error
	// CoverLimit is the maximum base64-encoded image size in bytes.
	CoverLimit() int
}

type userTokenKey struct{}

// WithUserToken attaches a user's OAuth token to ctx for write operations.
func WithUserToken(ctx context.Context, token *oauth2.Token) context.Context {
	return context.WithValue(ctx, userTokenKey{}, token)
}

// UserToken returns the token stored by [WithUserToken], or nil.
func UserToken(ctx context.Context) *oauth2.Token {
	token, _ := ctx.Value(userTokenKey{}).(*oauth2.Token)
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return nil
	}
	return token
}

type options struct {
	baseURL  string
	tokenURL string
	client   *http.Client
	logger   *log.Logger
}

// Option configures a platform adapter.
type Option func(*options)

// WithBaseURL points the adapter at a different API host (used by tests).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimSuffix(u, "/") }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(o *options) { o.tokenURL = u }
}

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithGate routes every request through g.
func WithGate(g *Gate) Option {
	return func(o *options) { o.client = &http.Client{Transport: g} }
}

// WithLogger sets the adapter's logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(baseURL string, opts []Option) options {
	o := options{baseURL: baseURL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = http.DefaultClient
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	return o
}

// apiClient performs JSON requests against one platform and classifies failures.
type apiClient struct {
	platform models.Platform
	baseURL  string
	http     *http.Client
}

type apiRequest struct {
	method      string
	endpoint    string // absolute URL, or a path relative to baseURL
	body        any    // JSON encoded unless it is a []byte
	contentType string
	header      http.Header
	playlist    bool // a 404 means the playlist does not exist
}

// maxErrorBody bounds the upstream body kept on an [shared.UpstreamError].
const maxErrorBody = 2048

// doRequest sends r and decodes a 2xx JSON body into result when result is non-nil.
//
// It returns the upstream status code alongside any error.
func (c *apiClient) doRequest(ctx context.Context, r apiRequest, result any) (int, error) {
	apiURL := r.endpoint
	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		apiURL = c.baseURL + r.endpoint
	}

	var body io.Reader
	contentType := r.contentType
	switch b := r.body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, apiURL, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s request failed: %w", shared.ErrAPIRequest, c.platform.Title(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &shared.UpstreamError{
			Platform:   c.platform.Title(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
			NotFound:   r.playlist && resp.StatusCode == http.StatusNotFound,
		}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", c.platform.Title(), err)
		}
	}

	return resp.StatusCode, nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

// textQuery renders the `track:"T" artist:"A"` search syntax shared by Spotify and Deezer.
func textQuery(q models.SearchQuery) string {
	var parts []string
	if t := strings.TrimSpace(q.Title); t != "" {
		parts = append(parts, fmt.Sprintf("track:%q", t))
	}
	if a := strings.TrimSpace(q.Artist); a != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", a))
	}
	return strings.Join(parts, " ")
}

// New builds the adapter for p from cfg. Each adapter gets its own gate.
func New(p models.Platform, cfg *shared.Config, gate *Gate, logger *log.Logger) (Service, error) {
	opts := []Option{WithGate(gate), WithLogger(logger)}
	switch p {
	case models.Spotify:
		return NewSpotifyService(cfg.Credentials.Spotify, opts...)
	case models.Apple:
		return NewAppleService(cfg.Credentials.Apple, opts...)
	case models.Deezer:
		return NewDeezerService(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %v", shared.ErrUnsupportedPlatform, p)
	}
}
