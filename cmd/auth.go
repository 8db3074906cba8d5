package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/playvert/internal/server"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Authorizer is what the loopback flow needs from the Spotify adapter.
type Authorizer interface {
	server.Exchanger
	AuthURL(state string) string
}

// SpotifyAuth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization,
// and stores the exchanged tokens in the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	r.configPath = cmd.String("config")
	r.config = r.loadOrCreateConfig(r.configPath)

	spotify, err := services.NewSpotifyService(r.config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", err, r.configPath)
	}

	token, err := r.doOAuth(ctx, r.config.Credentials.Spotify.RedirectURI, spotify, authTimeout)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: playvert convert <url> --to spotify\n")
	return nil
}

// doOAuth serves the callback at redirectURI until the browser returns or timeout elapses.
func (r *Runner) doOAuth(ctx context.Context, redirectURI string, auth Authorizer, timeout time.Duration) (*oauth2.Token, error) {
	redirect, err := url.Parse(redirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q must be an absolute URL", shared.ErrInvalidConfig, redirectURI)
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(auth, redirect.Path, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe(ctx, redirect.Host, router, r.logger)
	}()

	authURL := auth.AuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		if err != nil {
			return nil, fmt.Errorf("callback server stopped: %w", err)
		}
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	}

	cancel()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
