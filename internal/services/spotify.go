// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"
	// spotifyPageSize is the maximum page size of the playlist tracks endpoint.
	spotifyPageSize = 100
	// spotifyCoverLimit is the maximum base64 payload for a playlist image.
	spotifyCoverLimit = 256 * 1024
	// tokenEarlyExpiry refreshes user tokens this long before they expire.
	tokenEarlyExpiry = 60 * time.Second
)

// SpotifyScopes are requested at login. Image upload and playlist modification are needed to save.
var SpotifyScopes = []string{
	spotifyauth.ScopeImageUpload,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserLibraryModify,
	spotifyauth.ScopeUserLibraryRead,
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	IsLocal      bool            `json:"is_local"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Images       []SpotifyImage `json:"images"`
	ExternalURLs externalURLs   `json:"external_urls"`
	URI          string         `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is null for removed items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks is one page of a playlist's tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
//
// Reads use the user token from the context when present and fall back to an app token
// from the client credentials flow. Writes require a user token.
type SpotifyService struct {
	api     apiClient
	auth    *spotifyauth.Authenticator
	oauth   *oauth2.Config
	app     oauth2.TokenSource
	authCtx context.Context
	logger  *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...Option) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	o := newOptions(spotifyBaseURL, opts)
	tokenURL := o.tokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	// token requests share the gated client
	authCtx := context.WithValue(context.Background(), oauth2.HTTPClient, o.client)

	app := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	return &SpotifyService{
		api: apiClient{platform: models.Spotify, baseURL: o.baseURL, http: o.client},
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(cfg.RedirectURI),
			spotifyauth.WithScopes(SpotifyScopes...),
		),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       SpotifyScopes,
			Endpoint:     oauth2.Endpoint{AuthURL: spotifyauth.AuthURL, TokenURL: tokenURL},
		},
		app:     app.TokenSource(authCtx),
		authCtx: authCtx,
		logger:  o.logger.With("platform", models.Spotify.String()),
	}, nil
}

func (s *SpotifyService) Name() string              { return models.Spotify.Title() }
func (s *SpotifyService) Platform() models.Platform { return models.Spotify }
func (s *SpotifyService) CoverLimit() int           { return spotifyCoverLimit }

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.auth.AuthURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a user token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// userToken returns the context's user token, refreshed when it expires within a minute.
func (s *SpotifyService) userToken(ctx context.Context) (string, error) {
	token := UserToken(ctx)
	if token == nil {
		return "", shared.ErrNotAuthenticated
	}
	if token.RefreshToken == "" {
		return token.AccessToken, nil
	}

	// the inner source only holds the refresh token, so it refreshes whenever asked
	refresher := s.oauth.TokenSource(s.authCtx, &oauth2.Token{RefreshToken: token.RefreshToken})
	src := oauth2.ReuseTokenSourceWithExpiry(token, refresher, tokenEarlyExpiry)
	fresh, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: token refresh failed: %v", shared.ErrNotAuthenticated, err)
	}
	if fresh.AccessToken != token.AccessToken {
		s.logger.Debug("refreshed user token", "expiry", fresh.Expiry)
	}
	return fresh.AccessToken, nil
}

// readToken prefers the user's token and falls back to the app token.
func (s *SpotifyService) readToken(ctx context.Context) (string, error) {
	if UserToken(ctx) != nil {
		return s.userToken(ctx)
	}

	token, err := s.app.Token()
	if err != nil {
		return "", fmt.Errorf("%w: client credentials: %v", shared.ErrInvalidCredentials, err)
	}
	return token.AccessToken, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, r apiRequest, write bool, result any) (int, error) {
	var (
		token string
		err   error
	)
	if write {
		token, err = s.userToken(ctx)
	} else {
		token, err = s.readToken(ctx)
	}
	if err != nil {
		return 0, err
	}
	r.header = bearer(token)
	status, err := s.api.doRequest(ctx, r, result)
	if err == nil || (status != http.StatusUnauthorized && status != http.StatusForbidden) {
		return status, err
	}

	// a token taken from request headers carries no expiry, so rejection is the only signal
	user := UserToken(ctx)
	if user == nil || user.RefreshToken == "" {
		return status, err
	}
	fresh, rerr := s.refreshUserToken(user)
	if rerr != nil {
		return status, rerr
	}
	s.logger.Debug("retrying with refreshed user token", "endpoint", r.endpoint, "status", status)
	r.header = bearer(fresh.AccessToken)
	return s.api.doRequest(ctx, r, result)
}

// refreshUserToken exchanges the refresh token regardless of the access token's expiry.
func (s *SpotifyService) refreshUserToken(token *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := s.oauth.TokenSource(s.authCtx, &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %v", shared.ErrNotAuthenticated, err)
	}
	return fresh, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if _, err := s.doRequest(ctx, apiRequest{method: http.MethodGet, endpoint: "/me"}, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchPlaylist retrieves a playlist's metadata by ID.
func (s *SpotifyService) FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	r := apiRequest{
		method:   http.MethodGet,
		endpoint: "/playlists/" + url.PathEscape(id),
		playlist: true,
	}
	if _, err := s.doRequest(ctx, r, false, &sp); err != nil {
		return nil, err
	}

	playlist := &models.Playlist{
		Platform:    models.Spotify,
		PlaylistURL: sp.ExternalURLs.Spotify,
		Title:       sp.Name,
	}
	if len(sp.Images) > 0 {
		playlist.ImageURL = sp.Images[0].URL
	}
	return playlist, nil
}

// FetchTracks pages through a playlist's tracks until a short page. Local and removed items are skipped.
func (s *SpotifyService) FetchTracks(ctx context.Context, id string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(id), spotifyPageSize, offset)

		var page SpotifyPaginatedTracks
		r := apiRequest{method: http.MethodGet, endpoint: endpoint, playlist: true}
		if _, err := s.doRequest(ctx, r, false, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.IsLocal || item.Track.IsLocal || item.Track.URI == "" {
				continue
			}
			tracks = append(tracks, item.Track.normalize())
		}

		if len(page.Items) < spotifyPageSize {
			break
		}
		offset += spotifyPageSize
	}

	s.logger.Debug("fetched tracks", "playlist", id, "count", len(tracks))
	return tracks, nil
}

func (t SpotifyTrack) normalize() models.Track {
	track := models.Track{
		ID:         t.URI,
		ISRC:       t.ExternalIDs.ISRC,
		Title:      t.Name,
		LinkToSong: t.ExternalURLs.Spotify,
		Ref:        &models.TrackRef{Platform: models.Spotify, ID: t.ID, URI: t.URI},
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		track.CoverArtURL = t.Album.Images[0].URL
	}
	return track
}

// Search looks the ISRC up first. Free text on title and artist is used when that finds nothing.
func (s *SpotifyService) Search(ctx context.Context, q models.SearchQuery) ([]models.Track, error) {
	if q.ISRC != "" {
		tracks, err := s.search(ctx, "isrc:"+q.ISRC)
		if err != nil || len(tracks) > 0 {
			return tracks, err
		}
	}

	text := textQuery(q)
	if text == "" {
		return nil, nil
	}
	return s.search(ctx, text)
}

func (s *SpotifyService) search(ctx context.Context, query string) ([]models.Track, error) {
	params := url.Values{"q": {query}, "type": {"track"}}

	var resp spotifySearchResponse
	r := apiRequest{method: http.MethodGet, endpoint: "/search?" + params.Encode()}
	if _, err := s.doRequest(ctx, r, false, &resp); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resp.Tracks.Items))
	for _, t := range resp.Tracks.Items {
		tracks = append(tracks, t.normalize())
	}
	return tracks, nil
}

// CreatePlaylist creates an empty playlist owned by the user in ctx.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}

	var created SpotifyPlaylist
	r := apiRequest{
		method:   http.MethodPost,
		endpoint: "/users/" + url.PathEscape(user.ID) + "/playlists",
		body:     map[string]string{"name": name},
	}
	if _, err := s.doRequest(ctx, r, true, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: spotify returned no playlist id", shared.ErrAPIRequest)
	}
	return created.ID, nil
}

// UploadCoverArt replaces the playlist image with a JPEG.
func (s *SpotifyService) UploadCoverArt(ctx context.Context, playlistID string, jpeg []byte) error {
	r := apiRequest{
		method:      http.MethodPut,
		endpoint:    "/playlists/" + url.PathEscape(playlistID) + "/images",
		body:        []byte(base64.StdEncoding.EncodeToString(jpeg)),
		contentType: "image/jpeg",
	}
	_, err := s.doRequest(ctx, r, true, nil)
	return err
}

// AddTracks appends refs by URI. Spotify accepts at most 100 per call.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, refs []models.TrackRef) (int, error) {
	uris := make([]string, 0, len(refs))
	for _, ref := range refs {
		uri := ref.URI
		if uri == "" && ref.ID != "" {
			uri = "spotify:track:" + ref.ID
		}
		uris = append(uris, uri)
	}

	r := apiRequest{
		method:   http.MethodPost,
		endpoint: "/playlists/" + url.PathEscape(playlistID) + "/tracks",
		body:     map[string][]string{"uris": uris},
	}
	return s.doRequest(ctx, r, true, nil)
}
