package shared

import (
	"fmt"
	"net/http"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")
	ErrTrackNotFound       = fmt.Errorf("track not found")
	ErrLinkNotFound        = fmt.Errorf("share link not found")
	ErrNoMatch             = fmt.Errorf("no match on target platform")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// UpstreamError is a non-2xx response from a platform API.
//
// It matches [ErrAPIRequest] with errors.Is, and additionally [ErrNotAuthenticated] for 401/403
// and [ErrPlaylistNotFound] when NotFound is set by a playlist lookup.
type UpstreamError struct {
	Platform   string
	StatusCode int
	Body       string
	NotFound   bool
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: status %d", e.Platform, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Platform, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() []error {
	errs := []error{ErrAPIRequest}
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		errs = append(errs, ErrNotAuthenticated)
	case e.NotFound:
		errs = append(errs, ErrPlaylistNotFound)
	}
	return errs
}

// PartialWriteError reports a chunked insert that stopped mid-sequence.
//
// Status is the failing chunk's HTTP status; Written counts refs inserted before the failure.
type PartialWriteError struct {
	PlaylistID string
	Status     int
	Written    int
	Total      int
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write to playlist %s: %d/%d tracks saved (status %d): %v",
		e.PlaylistID, e.Written, e.Total, e.Status, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
