package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/tasks"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

const noPlaylist = "No playlist found"

type generateURLRequest struct {
	Playlist *models.Playlist `json:"playlist"`
}

type generateURLResponse struct {
	LinkUUID string          `json:"linkUuid"`
	Playlist models.Playlist `json:"playlist"`
	TTL      int64           `json:"ttl"`
	URL      string          `json:"url"`
}

type resolveRequest struct {
	URL string `json:"url"`
}

type saveRequest struct {
	PlaylistName string         `json:"playlistName"`
	ImageURL     string         `json:"imageUrl"`
	Tracks       []models.Track `json:"tracks"`
	URIs         []string       `json:"uris"`
	LinkUUID     string         `json:"linkUuid"`
}

func (a *API) generateURL(c *gin.Context) {
	var req generateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Playlist == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be {\"playlist\": {...}}"})
		return
	}

	link, err := a.engine.Share(c.Request.Context(), req.Playlist)
	if err != nil {
		a.fail(c, req.Playlist.Platform, err)
		return
	}

	c.JSON(http.StatusCreated, generateURLResponse{
		LinkUUID: link.LinkUUID,
		Playlist: link.Playlist,
		TTL:      link.TTL,
		URL:      a.shareBaseURL + "/" + link.LinkUUID,
	})
}

func (a *API) sharedPlaylist(c *gin.Context) {
	link, err := a.engine.Shared(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, models.Spotify, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": link.Playlist})
}

func (a *API) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be {\"url\": \"...\"}"})
		return
	}

	raw := strings.TrimSpace(req.URL)
	playlist, err := a.engine.Resolve(c.Request.Context(), raw, nil)
	if err != nil {
		p, _ := services.DetectPlatform(raw)
		a.fail(c, p, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

func (a *API) playlist(p models.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := a.engine.Service(p)
		if err != nil {
			a.fail(c, p, err)
			return
		}

		playlist, err := svc.FetchPlaylist(c.Request.Context(), c.Param("id"))
		if err != nil {
			a.fail(c, p, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"playlist": playlist})
	}
}

func (a *API) tracks(p models.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := a.engine.Service(p)
		if err != nil {
			a.fail(c, p, err)
			return
		}

		tracks, err := svc.FetchTracks(c.Request.Context(), c.Param("id"))
		if err != nil {
			a.fail(c, p, err)
			return
		}
		if tracks == nil {
			tracks = []models.Track{}
		}
		c.JSON(http.StatusOK, gin.H{"tracks": tracks})
	}
}

func (a *API) search(p models.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := models.SearchQuery{
			ISRC:   strings.TrimSpace(c.Query("isrc")),
			Title:  strings.TrimSpace(c.Query("title")),
			Artist: strings.TrimSpace(c.Query("artist")),
		}
		if q.Empty() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "One of isrc, title or artist is required"})
			return
		}

		svc, err := a.engine.Service(p)
		if err != nil {
			a.fail(c, p, err)
			return
		}

		tracks, err := svc.Search(c.Request.Context(), q)
		if err != nil {
			a.fail(c, p, err)
			return
		}
		if tracks == nil {
			tracks = []models.Track{}
		}
		c.JSON(http.StatusOK, gin.H{"tracks": tracks})
	}
}

// savePlaylist answers with the upstream status of the last insert, or of the failing one.
func (a *API) savePlaylist(p models.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req saveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid body: %v", err)})
			return
		}
		if strings.TrimSpace(req.PlaylistName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playlistName is required"})
			return
		}

		source := p
		if len(req.Tracks) > 0 && req.Tracks[0].Ref != nil {
			source = req.Tracks[0].Ref.Platform
		}

		result, err := a.engine.Save(c.Request.Context(), tasks.SaveRequest{
			Target:   p,
			Name:     req.PlaylistName,
			ImageURL: req.ImageURL,
			Tracks:   req.Tracks,
			Refs:     refsFromURIs(p, req.URIs),
			LinkUUID: req.LinkUUID,
			Source:   source,
		}, nil)

		var partial *shared.PartialWriteError
		switch {
		case err == nil:
			c.JSON(result.Status, result)
		case errors.As(err, &partial):
			status := partial.Status
			if status < 400 {
				status = http.StatusBadGateway
			}
			a.logger.Warn("partial playlist write", "platform", p, "playlist", partial.PlaylistID, "written", partial.Written, "total", partial.Total)
			c.JSON(status, gin.H{"error": err.Error(), "status": partial.Status, "result": result})
		default:
			a.fail(c, p, err)
		}
	}
}

// refsFromURIs accepts Spotify URIs or bare ids.
func refsFromURIs(p models.Platform, uris []string) []models.TrackRef {
	refs := make([]models.TrackRef, 0, len(uris))
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}

		ref := models.TrackRef{Platform: p, ID: uri}
		switch p {
		case models.Spotify:
			if id, ok := strings.CutPrefix(uri, "spotify:track:"); ok {
				ref.ID = id
				ref.URI = uri
			} else {
				ref.URI = "spotify:track:" + uri
			}
		case models.Apple:
			ref.Type = "songs"
		}
		refs = append(refs, ref)
	}
	return refs
}

func (a *API) spotifyAuth(c *gin.Context) (Authenticator, bool) {
	svc, err := a.engine.Service(models.Spotify)
	if err != nil {
		a.fail(c, models.Spotify, err)
		return nil, false
	}
	auth, ok := svc.(Authenticator)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Spotify login is not available"})
		return nil, false
	}
	return auth, true
}

func (a *API) spotifyLogin(c *gin.Context) {
	auth, ok := a.spotifyAuth(c)
	if !ok {
		return
	}

	state := shared.GenerateID()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/api/spotify", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, auth.AuthURL(state))
}

func (a *API) spotifyCallback(c *gin.Context) {
	auth, ok := a.spotifyAuth(c)
	if !ok {
		return
	}

	if msg := c.Query("error"); msg != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization denied: " + msg, "login": "/api/spotify/login"})
		return
	}

	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state parameter"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/api/spotify", "", c.Request.TLS != nil, true)

	token, err := auth.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		a.fail(c, models.Spotify, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"token_type":    token.TokenType,
		"expiry":        token.Expiry,
	})
}

// fail maps an error to a response. Unclassified errors are 500 and go to Sentry.
func (a *API) fail(c *gin.Context, p models.Platform, err error) {
	var upstream *shared.UpstreamError

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthFailed):
		body := gin.H{"error": err.Error()}
		// only Spotify has an authorization code flow behind the API
		if p == models.Spotify {
			body["login"] = fmt.Sprintf("/api/%s/login", p)
		}
		c.JSON(http.StatusUnauthorized, body)
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": noPlaylist})
	case errors.As(err, &upstream):
		c.JSON(upstream.StatusCode, gin.H{"error": err.Error(), "status": upstream.StatusCode, "body": upstream.Body})
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrUnsupportedPlatform):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrMissingCredentials):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		a.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
