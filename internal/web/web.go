// Package web serves the Playvert JSON API with gin.
//
// Routes (all under /api):
//
//	POST /playlists/generate-url          → store a playlist behind a 24 hour share link
//	GET  /playlists/:id                   → read a share link
//	POST /playlists/resolve               → fetch a playlist from its URL
//	GET  /{platform}/playlists/:id        → playlist metadata from one platform
//	GET  /{platform}/playlists/:id/tracks → ordered track list
//	GET  /{platform}/search               → catalog search by isrc, title and artist
//	POST /{platform}/save-playlist        → match tracks and create a playlist
//	GET  /spotify/login                   → redirect to Spotify authorization
//	GET  /spotify/callback                → exchange the code for a token
//
// User tokens arrive in headers on every request: Authorization for Spotify,
// Music-User-Token for Apple Music and X-Deezer-Token for Deezer. They are placed on the
// request context with [services.WithUserToken]; nothing is kept server side.
//
// Unexpected errors are reported to Sentry through sentrygin.
package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/tasks"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const (
	stateCookie       = "playvert_oauth_state"
	refreshHeader     = "X-Spotify-Refresh-Token"
	appleTokenHeader  = "Music-User-Token"
	deezerTokenHeader = "X-Deezer-Token"
)

// Authenticator is the part of the Spotify adapter the login routes need.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// API holds the handlers' dependencies.
type API struct {
	engine       *tasks.PlaylistEngine
	shareBaseURL string
	logger       *log.Logger
}

// New creates the API. shareBaseURL prefixes link ids in generate-url responses.
func New(engine *tasks.PlaylistEngine, shareBaseURL string, logger *log.Logger) *API {
	if logger == nil {
		logger = log.Default()
	}
	return &API{
		engine:       engine,
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
		logger:       shared.WithLogger(logger, "component", "web"),
	}
}

// Handler builds the gin engine. Request logging is left to the enclosing router.
func (a *API) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))

	api := r.Group("/api")
	api.POST("/playlists/generate-url", a.generateURL)
	api.GET("/playlists/:id", a.sharedPlaylist)
	api.POST("/playlists/resolve", a.resolve)

	for _, p := range models.Platforms() {
		g := api.Group("/"+p.String(), withUserToken(p))
		g.GET("/playlists/:id", a.playlist(p))
		g.GET("/playlists/:id/tracks", a.tracks(p))
		g.GET("/search", a.search(p))
		g.POST("/save-playlist", a.savePlaylist(p))
	}

	api.GET("/spotify/login", a.spotifyLogin)
	api.GET("/spotify/callback", a.spotifyCallback)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}

// withUserToken moves the platform's user token from the request headers into the context.
func withUserToken(p models.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := tokenFromRequest(p, c.Request); token != nil {
			c.Request = c.Request.WithContext(services.WithUserToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

func tokenFromRequest(p models.Platform, r *http.Request) *oauth2.Token {
	var access string
	switch p {
	case models.Spotify:
		access, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	case models.Apple:
		access = r.Header.Get(appleTokenHeader)
	case models.Deezer:
		access = r.Header.Get(deezerTokenHeader)
	}

	token := &oauth2.Token{
		AccessToken:  strings.TrimSpace(access),
		RefreshToken: strings.TrimSpace(r.Header.Get(refreshHeader)),
		TokenType:    "Bearer",
	}
	if p != models.Spotify {
		token.RefreshToken = ""
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil
	}
	return token
}
