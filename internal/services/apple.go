// Apple Music API implementation of [Service]
//
// Response types based on https://developer.apple.com/documentation/applemusicapi
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

const (
	appleBaseURL = "https://api.music.apple.com"
	// appleArtworkSize replaces the {w} and {h} placeholders of artwork templates.
	appleArtworkSize = "700"
	appleSongType    = "songs"
)

type appleArtwork struct {
	URL string `json:"url"`
}

// AppleResource is a catalog resource with its attributes. Songs and playlists share the shape.
type AppleResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name       string       `json:"name"`
		ArtistName string       `json:"artistName"`
		ISRC       string       `json:"isrc"`
		URL        string       `json:"url"`
		Artwork    appleArtwork `json:"artwork"`
	} `json:"attributes"`
}

// AppleResponse is the document envelope of every Apple Music response.
type AppleResponse struct {
	Data []AppleResource `json:"data"`
	Next string          `json:"next"`
}

type appleSearchResponse struct {
	Results struct {
		Songs AppleResponse `json:"songs"`
	} `json:"results"`
}

// AppleService implements [Service] for the Apple Music catalog and library APIs.
//
// The developer token authorizes every call. Library writes also need the user's
// Music-User-Token from the context.
type AppleService struct {
	api        apiClient
	devToken   string
	storefront string
	logger     *log.Logger
}

// NewAppleService creates an Apple Music service for cfg's storefront.
func NewAppleService(cfg shared.AppleConfig, opts ...Option) (*AppleService, error) {
	if cfg.DeveloperToken == "" {
		return nil, fmt.Errorf("%w: missing apple developer_token", shared.ErrMissingCredentials)
	}
	storefront := cfg.Storefront
	if storefront == "" {
		storefront = "us"
	}

	o := newOptions(appleBaseURL, opts)
	return &AppleService{
		api:        apiClient{platform: models.Apple, baseURL: o.baseURL, http: o.client},
		devToken:   cfg.DeveloperToken,
		storefront: storefront,
		logger:     o.logger.With("platform", models.Apple.String()),
	}, nil
}

func (s *AppleService) Name() string              { return models.Apple.Title() }
func (s *AppleService) Platform() models.Platform { return models.Apple }

func (s *AppleService) catalog(path string) string {
	return "/v1/catalog/" + url.PathEscape(s.storefront) + path
}

func (s *AppleService) doRequest(ctx context.Context, r apiRequest, write bool, result any) (int, error) {
	r.header = bearer(s.devToken)
	if write {
		token := UserToken(ctx)
		if token == nil {
			return 0, shared.ErrNotAuthenticated
		}
		r.header.Set("Music-User-Token", token.AccessToken)
	}
	return s.api.doRequest(ctx, r, result)
}

// FetchPlaylist retrieves a catalog playlist's metadata.
func (s *AppleService) FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var resp AppleResponse
	r := apiRequest{method: http.MethodGet, endpoint: s.catalog("/playlists/" + url.PathEscape(id)), playlist: true}
	if _, err := s.doRequest(ctx, r, false, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: apple playlist %s", shared.ErrPlaylistNotFound, id)
	}

	attrs := resp.Data[0].Attributes
	return &models.Playlist{
		Platform:    models.Apple,
		PlaylistURL: attrs.URL,
		Title:       attrs.Name,
		ImageURL:    artworkURL(attrs.Artwork.URL),
	}, nil
}

// FetchTracks follows the next links of the playlist's tracks relationship.
func (s *AppleService) FetchTracks(ctx context.Context, id string) ([]models.Track, error) {
	var tracks []models.Track
	next := s.catalog("/playlists/" + url.PathEscape(id) + "/tracks")

	for next != "" {
		var page AppleResponse
		r := apiRequest{method: http.MethodGet, endpoint: next, playlist: true}
		if _, err := s.doRequest(ctx, r, false, &page); err != nil {
			return nil, err
		}
		for _, res := range page.Data {
			tracks = append(tracks, res.normalize())
		}
		next = page.Next
	}

	s.logger.Debug("fetched tracks", "playlist", id, "count", len(tracks))
	return tracks, nil
}

func (r AppleResource) normalize() models.Track {
	kind := r.Type
	if kind == "" {
		kind = appleSongType
	}
	return models.Track{
		ID:          r.ID,
		ISRC:        r.Attributes.ISRC,
		Title:       r.Attributes.Name,
		Artists:     shared.SplitArtists(r.Attributes.ArtistName),
		CoverArtURL: artworkURL(r.Attributes.Artwork.URL),
		LinkToSong:  r.Attributes.URL,
		Ref:         &models.TrackRef{Platform: models.Apple, ID: r.ID, Type: kind},
	}
}

func artworkURL(template string) string {
	return strings.NewReplacer("{w}", appleArtworkSize, "{h}", appleArtworkSize).Replace(template)
}

// Search runs a free-text song search and moves exact ISRC hits to the front.
//
// When the text results hold no ISRC hit, the ISRC filter endpoint is queried and its
// results are ranked ahead of the text results.
func (s *AppleService) Search(ctx context.Context, q models.SearchQuery) ([]models.Track, error) {
	var text []models.Track
	if term := strings.TrimSpace(strings.Join(nonEmpty(q.Title, q.Artist), " ")); term != "" {
		params := url.Values{"types": {appleSongType}, "term": {term}}

		var resp appleSearchResponse
		r := apiRequest{method: http.MethodGet, endpoint: s.catalog("/search?" + params.Encode())}
		if _, err := s.doRequest(ctx, r, false, &resp); err != nil {
			return nil, err
		}
		for _, res := range resp.Results.Songs.Data {
			text = append(text, res.normalize())
		}
	}

	if q.ISRC == "" {
		return text, nil
	}

	exact, rest := partitionISRC(text, q.ISRC)
	if len(exact) > 0 {
		return append(exact, rest...), nil
	}

	params := url.Values{"filter[isrc]": {q.ISRC}}
	var resp AppleResponse
	r := apiRequest{method: http.MethodGet, endpoint: s.catalog("/songs?" + params.Encode())}
	if _, err := s.doRequest(ctx, r, false, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resp.Data)+len(text))
	for _, res := range resp.Data {
		tracks = append(tracks, res.normalize())
	}
	return append(tracks, text...), nil
}

func partitionISRC(tracks []models.Track, isrc string) (exact, rest []models.Track) {
	for _, t := range tracks {
		if strings.EqualFold(t.ISRC, isrc) {
			exact = append(exact, t)
		} else {
			rest = append(rest, t)
		}
	}
	return exact, rest
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// CreatePlaylist creates an empty library playlist for the user.
func (s *AppleService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	body := map[string]any{"attributes": map[string]string{"name": name}}

	var resp AppleResponse
	r := apiRequest{method: http.MethodPost, endpoint: "/v1/me/library/playlists", body: body}
	if _, err := s.doRequest(ctx, r, true, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].ID == "" {
		return "", fmt.Errorf("%w: apple returned no playlist id", shared.ErrAPIRequest)
	}
	return resp.Data[0].ID, nil
}

type appleTrackRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AddTracks adds catalog songs to a library playlist.
func (s *AppleService) AddTracks(ctx context.Context, playlistID string, refs []models.TrackRef) (int, error) {
	data := make([]appleTrackRef, 0, len(refs))
	for _, ref := range refs {
		kind := ref.Type
		if kind == "" {
			kind = appleSongType
		}
		data = append(data, appleTrackRef{ID: ref.ID, Type: kind})
	}

	r := apiRequest{
		method:   http.MethodPost,
		endpoint: "/v1/me/library/playlists/" + url.PathEscape(playlistID) + "/tracks",
		body:     map[string][]appleTrackRef{"data": data},
	}
	return s.doRequest(ctx, r, true, nil)
}
