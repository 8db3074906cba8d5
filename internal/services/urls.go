package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

var playlistPatterns = map[models.Platform]*regexp.Regexp{
	models.Spotify: regexp.MustCompile(`/playlist/(\w+)`),
	models.Apple:   regexp.MustCompile(`/(pl\.[\w-]+)`),
	models.Deezer:  regexp.MustCompile(`/playlist/(\d+)`),
}

// shortLinkHosts redirect to a Deezer playlist page.
var shortLinkHosts = []string{"page.link", "link.deezer.com", "deezer.page.link"}

// platformDomains are matched against the URL host and its parent domains.
var platformDomains = []struct {
	domain   string
	platform models.Platform
}{
	{"spotify.com", models.Spotify},
	{"apple.com", models.Apple},
	{"deezer.com", models.Deezer},
	{"deezer.page.link", models.Deezer},
}

// urlHost returns the lowercase host of raw, or "" when raw has no scheme.
func urlHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func matchHost(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// DetectPlatform picks the platform from the URL host. Input without a scheme
// falls back to the platform named in its text.
func DetectPlatform(raw string) (models.Platform, error) {
	if host := urlHost(raw); host != "" {
		for _, d := range platformDomains {
			if matchHost(host, d.domain) {
				return d.platform, nil
			}
		}
		return 0, fmt.Errorf("%w: %q is not a Spotify, Apple Music or Deezer URL", shared.ErrUnsupportedPlatform, raw)
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "spotify"):
		return models.Spotify, nil
	case strings.Contains(lower, "apple"):
		return models.Apple, nil
	case strings.Contains(lower, "deezer"):
		return models.Deezer, nil
	}
	return 0, fmt.Errorf("%w: %q is not a Spotify, Apple Music or Deezer URL", shared.ErrUnsupportedPlatform, raw)
}

// ParsePlaylistURL extracts the platform and playlist id from a share URL.
func ParsePlaylistURL(raw string) (models.Platform, string, error) {
	p, err := DetectPlatform(raw)
	if err != nil {
		return 0, "", err
	}

	target := raw
	if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Scheme != "" {
		target = u.Path
	}
	m := playlistPatterns[p].FindStringSubmatch(target)
	if m == nil {
		return p, "", fmt.Errorf("%w: no %s playlist id in %q", shared.ErrInvalidInput, p.Title(), raw)
	}
	return p, m[1], nil
}

// IsShortLink reports whether raw must be resolved before it can be parsed.
func IsShortLink(raw string) bool {
	host := urlHost(raw)
	for _, short := range shortLinkHosts {
		if host != "" && matchHost(host, short) {
			return true
		}
		if host == "" && strings.Contains(strings.ToLower(raw), short) {
			return true
		}
	}
	return false
}
