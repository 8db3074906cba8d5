package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization code callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// Exchanger trades an authorization code for a token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

var connectedPage = template.Must(template.New("connected").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Playvert: {{.}} connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        main { text-align: center; background: white; padding: 2rem;
               border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <main>
        <h1>✓ {{.}} connected</h1>
        <p>Playvert saved your token. You can close this window and return to the terminal.</p>
    </main>
</body>
</html>
`))

// OAuthHandler serves the loopback redirect of an authorization code flow.
//
// The first request to path settles the flow: its result is delivered on [OAuthHandler.Result]
// and any later request is rejected.
type OAuthHandler struct {
	exchanger Exchanger
	path      string
	state     string
	provider  string

	handled atomic.Bool
	once    sync.Once
	results chan OAuthResult
}

// NewOAuthHandler creates a handler serving the callback at path (default "/callback").
// state must match the state sent with the authorize URL.
func NewOAuthHandler(exchanger Exchanger, path, state string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		exchanger: exchanger,
		path:      path,
		state:     state,
		provider:  "Spotify",
		results:   make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("state") != h.state:
		h.fail(w, http.StatusBadRequest, "Invalid state parameter", fmt.Errorf("invalid state parameter"))
		return
	case q.Get("code") == "":
		err := fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))
		h.fail(w, http.StatusBadRequest, "Authorization failed", err)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "Token exchange failed", fmt.Errorf("token exchange failed: %w", err))
		return
	}
	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	connectedPage.Execute(w, h.provider)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, msg string, err error) {
	h.Send(OAuthResult{err: err})
	http.Error(w, msg, status)
}

// Send delivers result once; later calls are ignored.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
