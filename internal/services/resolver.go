package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

// DefaultResolverIdle is how long an unused resolver keeps its client.
const DefaultResolverIdle = 5 * time.Minute

// Resolver follows short links to the playlist page they point at.
//
// The HTTP client and its cookie jar are created on first use and released after the
// resolver has been idle for the configured duration. Close releases them immediately.
type Resolver struct {
	idle      time.Duration
	transport http.RoundTripper
	logger    *log.Logger

	mu     sync.Mutex
	client *http.Client
	timer  *time.Timer
	inUse  int
}

// NewResolver creates a resolver. transport may be nil.
func NewResolver(idle time.Duration, transport http.RoundTripper, logger *log.Logger) *Resolver {
	if idle <= 0 {
		idle = DefaultResolverIdle
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{idle: idle, transport: transport, logger: logger.With("component", "resolver")}
}

// Active reports whether the resolver currently holds a client.
func (r *Resolver) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client != nil
}

func (r *Resolver) acquire() (*http.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		r.client = &http.Client{Jar: jar, Transport: r.transport, Timeout: 30 * time.Second}
		r.logger.Debug("client created")
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.inUse++
	return r.client, nil
}

func (r *Resolver) release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inUse--
	if r.inUse == 0 && r.client != nil {
		r.timer = time.AfterFunc(r.idle, r.expire)
	}
}

func (r *Resolver) expire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inUse == 0 {
		r.teardown()
	}
}

// teardown must be called with r.mu held.
func (r *Resolver) teardown() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.client != nil {
		r.client.CloseIdleConnections()
		r.client = nil
		r.logger.Debug("client released")
	}
}

// Close releases the client now. The resolver can still be used afterwards.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown()
}

// Resolve follows raw's redirects and returns the final URL.
//
// When the final page is an HTML interstitial, its og:url or canonical link is used instead.
func (r *Resolver) Resolve(ctx context.Context, raw string) (string, error) {
	client, err := r.acquire()
	if err != nil {
		return "", err
	}
	defer r.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %v", shared.ErrAPIRequest, raw, err)
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if _, _, err := ParsePlaylistURL(final); err == nil {
		return final, nil
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return final, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return final, nil
	}

	for _, sel := range []struct{ query, attr string }{
		{`meta[property="og:url"]`, "content"},
		{`link[rel="canonical"]`, "href"},
	} {
		if v, ok := doc.Find(sel.query).First().Attr(sel.attr); ok && v != "" {
			r.logger.Debug("resolved from document", "url", raw, "target", v)
			return v, nil
		}
	}
	return final, nil
}

// ParseURL resolves short links and then parses the playlist URL.
func (r *Resolver) ParseURL(ctx context.Context, raw string) (models.Platform, string, error) {
	if IsShortLink(raw) {
		resolved, err := r.Resolve(ctx, raw)
		if err != nil {
			return 0, "", err
		}
		raw = resolved
	}
	return ParsePlaylistURL(raw)
}
