// Deezer API implementation of [Service]
//
// Response types based on https://developers.deezer.com/api
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

const (
	deezerBaseURL = "https://api.deezer.com"
	// deezerNoData is the in-body error code for a missing resource.
	deezerNoData = 800
)

// deezerError is reported inside a 200 response body.
type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerStatus struct {
	Error *deezerError `json:"error"`
}

type deezerArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type deezerAlbum struct {
	Cover   string `json:"cover"`
	CoverXL string `json:"cover_xl"`
}

// DeezerTrack is a track from the track, playlist and search endpoints. Only /track returns isrc and contributors.
type DeezerTrack struct {
	deezerStatus
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	ISRC         string         `json:"isrc"`
	Link         string         `json:"link"`
	Artist       deezerArtist   `json:"artist"`
	Contributors []deezerArtist `json:"contributors"`
	Album        deezerAlbum    `json:"album"`
}

// DeezerPlaylist represents a public Deezer playlist.
type DeezerPlaylist struct {
	deezerStatus
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Picture   string `json:"picture"`
	PictureXL string `json:"picture_xl"`
	Link      string `json:"link"`
}

// DeezerTrackList is a page of tracks. Next is an absolute URL.
type DeezerTrackList struct {
	deezerStatus
	Data  []DeezerTrack `json:"data"`
	Total int           `json:"total"`
	Next  string        `json:"next"`
}

// DeezerService implements [Service] for the public Deezer API.
//
// Reads need no token. Writes pass the user's token as the access_token query parameter.
type DeezerService struct {
	api    apiClient
	logger *log.Logger
}

// NewDeezerService creates a Deezer service.
func NewDeezerService(opts ...Option) *DeezerService {
	o := newOptions(deezerBaseURL, opts)
	return &DeezerService{
		api:    apiClient{platform: models.Deezer, baseURL: o.baseURL, http: o.client},
		logger: o.logger.With("platform", models.Deezer.String()),
	}
}

func (s *DeezerService) Name() string              { return models.Deezer.Title() }
func (s *DeezerService) Platform() models.Platform { return models.Deezer }

// check converts an in-body error into an [shared.UpstreamError].
func (s *DeezerService) check(e *deezerError, playlist bool) error {
	if e == nil {
		return nil
	}

	status := http.StatusBadGateway
	switch {
	case e.Type == "OAuthException":
		status = http.StatusUnauthorized
	case e.Code == deezerNoData:
		status = http.StatusNotFound
	}
	return &shared.UpstreamError{
		Platform:   models.Deezer.Title(),
		StatusCode: status,
		Body:       fmt.Sprintf("%s (%d): %s", e.Type, e.Code, e.Message),
		NotFound:   playlist && status == http.StatusNotFound,
	}
}

// FetchPlaylist retrieves a playlist's metadata.
func (s *DeezerService) FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var dp DeezerPlaylist
	r := apiRequest{method: http.MethodGet, endpoint: "/playlist/" + url.PathEscape(id), playlist: true}
	if _, err := s.api.doRequest(ctx, r, &dp); err != nil {
		return nil, err
	}
	if err := s.check(dp.Error, true); err != nil {
		return nil, err
	}

	image := dp.PictureXL
	if image == "" {
		image = dp.Picture
	}
	return &models.Playlist{
		Platform:    models.Deezer,
		PlaylistURL: dp.Link,
		Title:       dp.Title,
		ImageURL:    image,
	}, nil
}

// FetchTracks lists the playlist and then fetches every track for its ISRC and contributors.
//
// Detail calls are issued one after another so they keep playlist order in the gate.
func (s *DeezerService) FetchTracks(ctx context.Context, id string) ([]models.Track, error) {
	var listed []DeezerTrack
	next := "/playlist/" + url.PathEscape(id) + "/tracks"

	for next != "" {
		var page DeezerTrackList
		r := apiRequest{method: http.MethodGet, endpoint: next, playlist: true}
		if _, err := s.api.doRequest(ctx, r, &page); err != nil {
			return nil, err
		}
		if err := s.check(page.Error, true); err != nil {
			return nil, err
		}
		listed = append(listed, page.Data...)
		next = page.Next
	}

	tracks := make([]models.Track, 0, len(listed))
	for _, item := range listed {
		detail, err := s.track(ctx, "/track/"+strconv.FormatInt(item.ID, 10))
		if err != nil {
			s.logger.Warn("track detail unavailable, using list entry", "track", item.ID, "error", err)
			tracks = append(tracks, item.normalize())
			continue
		}
		tracks = append(tracks, detail.normalize())
	}

	s.logger.Debug("fetched tracks", "playlist", id, "count", len(tracks))
	return tracks, nil
}

// track fetches one track. A missing track wraps [shared.ErrTrackNotFound].
func (s *DeezerService) track(ctx context.Context, endpoint string) (*DeezerTrack, error) {
	var t DeezerTrack
	if _, err := s.api.doRequest(ctx, apiRequest{method: http.MethodGet, endpoint: endpoint}, &t); err != nil {
		return nil, err
	}
	if t.Error != nil && t.Error.Code == deezerNoData {
		return nil, fmt.Errorf("%w: deezer %s", shared.ErrTrackNotFound, endpoint)
	}
	if err := s.check(t.Error, false); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t DeezerTrack) normalize() models.Track {
	id := strconv.FormatInt(t.ID, 10)
	track := models.Track{
		ID:          id,
		ISRC:        t.ISRC,
		Title:       t.Title,
		CoverArtURL: t.Album.CoverXL,
		LinkToSong:  t.Link,
		Ref:         &models.TrackRef{Platform: models.Deezer, ID: id},
	}
	if track.CoverArtURL == "" {
		track.CoverArtURL = t.Album.Cover
	}
	for _, c := range t.Contributors {
		track.Artists = append(track.Artists, c.Name)
	}
	if len(track.Artists) == 0 && t.Artist.Name != "" {
		track.Artists = []string{t.Artist.Name}
	}
	return track
}

// Search looks the ISRC up first; a hit is the only candidate. Otherwise the ranked text search is used.
func (s *DeezerService) Search(ctx context.Context, q models.SearchQuery) ([]models.Track, error) {
	if q.ISRC != "" {
		t, err := s.track(ctx, "/track/isrc:"+url.PathEscape(q.ISRC))
		switch {
		case err == nil:
			return []models.Track{t.normalize()}, nil
		case !errors.Is(err, shared.ErrTrackNotFound):
			return nil, err
		}
	}

	text := textQuery(q)
	if text == "" {
		return nil, nil
	}

	params := url.Values{"q": {text}, "order": {"RANKING"}}
	var page DeezerTrackList
	if _, err := s.api.doRequest(ctx, apiRequest{method: http.MethodGet, endpoint: "/search/track?" + params.Encode()}, &page); err != nil {
		return nil, err
	}
	if err := s.check(page.Error, false); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Data))
	for _, t := range page.Data {
		tracks = append(tracks, t.normalize())
	}
	return tracks, nil
}

func (s *DeezerService) userParams(ctx context.Context) (url.Values, error) {
	token := UserToken(ctx)
	if token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return url.Values{"access_token": {token.AccessToken}}, nil
}

type deezerAddResult struct {
	deezerStatus
}

func (r *deezerAddResult) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		return nil
	case "false":
		r.Error = &deezerError{Type: "Exception", Message: "tracks were not added"}
		return nil
	}
	return json.Unmarshal(data, &r.deezerStatus)
}

type deezerCreated struct {
	deezerStatus
	ID int64 `json:"id"`
}

// CreatePlaylist creates an empty playlist for the user.
func (s *DeezerService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	params, err := s.userParams(ctx)
	if err != nil {
		return "", err
	}
	params.Set("title", name)

	var created deezerCreated
	r := apiRequest{method: http.MethodPost, endpoint: "/user/me/playlists?" + params.Encode()}
	if _, err := s.api.doRequest(ctx, r, &created); err != nil {
		return "", err
	}
	if err := s.check(created.Error, false); err != nil {
		return "", err
	}
	if created.ID == 0 {
		return "", fmt.Errorf("%w: deezer returned no playlist id", shared.ErrAPIRequest)
	}
	return strconv.FormatInt(created.ID, 10), nil
}

// AddTracks appends refs by numeric track id.
//
// Deezer answers a bare `true`, or an error object.
func (s *DeezerService) AddTracks(ctx context.Context, playlistID string, refs []models.TrackRef) (int, error) {
	params, err := s.userParams(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	params.Set("songs", strings.Join(ids, ","))

	var raw deezerAddResult
	r := apiRequest{
		method:   http.MethodPost,
		endpoint: "/playlist/" + url.PathEscape(playlistID) + "/tracks?" + params.Encode(),
	}
	status, err := s.api.doRequest(ctx, r, &raw)
	if err != nil {
		return status, err
	}
	if err := s.check(raw.Error, false); err != nil {
		var upstream *shared.UpstreamError
		if errors.As(err, &upstream) {
			status = upstream.StatusCode
		}
		return status, err
	}
	return status, nil
}
