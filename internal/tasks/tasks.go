package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFetchTimeout = 60 * time.Second
	DefaultShareTTL     = 24 * time.Hour
)

// Options tunes the [PlaylistEngine]. Zero values use the package defaults.
type Options struct {
	FetchTimeout    time.Duration
	MatchTimeout    time.Duration
	ShareTTL        time.Duration
	MatchChunkSize  int
	InsertChunkSize int
}

// OptionsFromConfig reads the [conversion] section.
func OptionsFromConfig(c shared.ConversionConfig) Options {
	return Options{
		FetchTimeout:    c.FetchTimeout.Duration,
		MatchTimeout:    c.MatchTimeout.Duration,
		ShareTTL:        c.ShareTTL.Duration,
		MatchChunkSize:  c.MatchChunkSize,
		InsertChunkSize: c.InsertChunkSize,
	}
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.MatchTimeout <= 0 {
		o.MatchTimeout = DefaultMatchTimeout
	}
	if o.ShareTTL <= 0 {
		o.ShareTTL = DefaultShareTTL
	}
	if o.MatchChunkSize <= 0 {
		o.MatchChunkSize = DefaultMatchChunkSize
	}
	if o.InsertChunkSize <= 0 {
		o.InsertChunkSize = DefaultInsertChunkSize
	}
	return o
}

// SaveRequest describes a playlist to create on Target.
//
// Tracks are matched against the target catalog. Refs are already native to the target
// and are appended after the matched tracks without a search.
type SaveRequest struct {
	Target   models.Platform
	Name     string
	ImageURL string
	Tracks   []models.Track
	Refs     []models.TrackRef
	LinkUUID string
	Source   models.Platform
	Progress *Progress
}

// SaveResult is the outcome of a save.
type SaveResult struct {
	PlaylistID string            `json:"playlistId"`
	Status     int               `json:"status"`
	Included   []TrackMatch      `json:"included"`
	Unmatched  []TrackMatch      `json:"unmatched"`
	Refs       []models.TrackRef `json:"-"`
}

// Total is the number of tracks considered.
func (r *SaveResult) Total() int {
	return len(r.Included) + len(r.Unmatched)
}

// PlaylistEngine coordinates resolving, sharing and saving playlists across platforms.
type PlaylistEngine struct {
	services    map[models.Platform]services.Service
	links       models.LinkStore
	conversions models.Repository[*models.Conversion]
	resolver    *services.Resolver
	opts        Options
	logger      *log.Logger
	now         func() time.Time
	client      *http.Client
}

// NewPlaylistEngine creates an engine over the configured adapters.
//
// links may be nil for engines that never share. resolver may be nil, in which case short
// links are rejected as unsupported.
func NewPlaylistEngine(svcs []services.Service, links models.LinkStore, resolver *services.Resolver, opts Options, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = log.Default()
	}
	byPlatform := make(map[models.Platform]services.Service, len(svcs))
	for _, svc := range svcs {
		byPlatform[svc.Platform()] = svc
	}
	return &PlaylistEngine{
		services: byPlatform,
		links:    links,
		resolver: resolver,
		opts:     opts.withDefaults(),
		logger:   shared.WithLogger(logger, "component", "engine"),
		now:      time.Now,
	}
}

// WithConversions records an audit row for every save.
func (e *PlaylistEngine) WithConversions(repo models.Repository[*models.Conversion]) *PlaylistEngine {
	e.conversions = repo
	return e
}

// WithImageClient sets the client used to download cover images.
func (e *PlaylistEngine) WithImageClient(client *http.Client) *PlaylistEngine {
	e.client = client
	return e
}

// WithClock replaces time.Now, for tests.
func (e *PlaylistEngine) WithClock(now func() time.Time) *PlaylistEngine {
	e.now = now
	return e
}

// Options returns the effective options.
func (e *PlaylistEngine) Options() Options {
	return e.opts
}

// Service returns the adapter for p or [shared.ErrServiceUnavailable] when it is not configured.
func (e *PlaylistEngine) Service(p models.Platform) (services.Service, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", shared.ErrUnsupportedPlatform, int(p))
	}
	svc, ok := e.services[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", shared.ErrServiceUnavailable, p.Title())
	}
	return svc, nil
}

// Platforms lists the configured platforms in enum order.
func (e *PlaylistEngine) Platforms() []models.Platform {
	var out []models.Platform
	for _, p := range models.Platforms() {
		if _, ok := e.services[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Resolve turns a playlist URL into a normalized playlist.
//
// Short links are resolved first. Metadata and tracks are fetched concurrently. The whole
// operation is bounded by the fetch timeout and running out of time is reported as
// [shared.ErrPlaylistNotFound].
func (e *PlaylistEngine) Resolve(ctx context.Context, raw string, progress chan<- ProgressUpdate) (*models.Playlist, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()

	sendProgress(progress, resolveURLUpdate(raw))

	p, id, err := e.parseURL(ctx, raw)
	if err != nil {
		return nil, e.timedOut(ctx, err)
	}

	svc, err := e.Service(p)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, fetchSourceUpdate(p))

	var meta *models.Playlist
	var tracks []models.Track

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = svc.FetchPlaylist(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		tracks, err = svc.FetchTracks(gctx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, e.timedOut(ctx, err)
	}
	if meta == nil || strings.TrimSpace(meta.Title) == "" {
		return nil, fmt.Errorf("%w: %s playlist %s has no title", shared.ErrPlaylistNotFound, p.Title(), id)
	}

	meta.Platform = p
	meta.Tracks = tracks
	if meta.PlaylistURL == "" {
		meta.PlaylistURL = raw
	}

	e.logger.Info("resolved playlist", "platform", p, "id", id, "title", meta.Title, "tracks", len(tracks))
	sendProgress(progress, foundPlaylistUpdate(meta))
	return meta, nil
}

func (e *PlaylistEngine) parseURL(ctx context.Context, raw string) (models.Platform, string, error) {
	if e.resolver != nil {
		return e.resolver.ParseURL(ctx, raw)
	}
	return services.ParsePlaylistURL(raw)
}

// timedOut maps an exhausted fetch deadline to "no playlist found".
func (e *PlaylistEngine) timedOut(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("source fetch timed out", "timeout", e.opts.FetchTimeout, "error", err)
		return fmt.Errorf("%w: no playlist found within %s: %w", shared.ErrPlaylistNotFound, e.opts.FetchTimeout, shared.ErrTimeout)
	}
	return err
}

// Share stores a snapshot of playlist under a new id that expires after the share TTL.
func (e *PlaylistEngine) Share(ctx context.Context, playlist *models.Playlist) (*models.ShareLink, error) {
	if e.links == nil {
		return nil, fmt.Errorf("%w: no link store", shared.ErrServiceUnavailable)
	}
	if playlist == nil {
		return nil, fmt.Errorf("%w: playlist is required", shared.ErrMissingArgument)
	}
	if err := playlist.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	link := models.NewShareLink(shared.GenerateID(), playlist.Clone(), e.now(), e.opts.ShareTTL)
	if err := e.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to store share link: %w", err)
	}

	e.logger.Info("created share link", "id", link.LinkUUID, "tracks", len(link.Playlist.Tracks), "expires", link.ExpiresAt())
	return link, nil
}

// Shared loads a live share link. Unknown and expired ids both yield [shared.ErrLinkNotFound].
func (e *PlaylistEngine) Shared(ctx context.Context, id string) (*models.ShareLink, error) {
	if e.links == nil {
		return nil, fmt.Errorf("%w: no link store", shared.ErrServiceUnavailable)
	}
	link, err := e.links.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.Expired(e.now()) {
		return nil, fmt.Errorf("%w: %s expired at %s", shared.ErrLinkNotFound, id, link.ExpiresAt())
	}
	return link, nil
}

// Save matches req.Tracks on the target platform and writes the result as a new playlist.
//
// The result is returned even when the write fails part way, together with the error.
func (e *PlaylistEngine) Save(ctx context.Context, req SaveRequest, progress chan<- ProgressUpdate) (*SaveResult, error) {
	svc, err := e.Service(req.Target)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	logger := shared.WithLogger(e.logger, "target", req.Target)
	result := &SaveResult{}

	if len(req.Tracks) > 0 {
		sendProgress(progress, matchStartUpdate(len(req.Tracks), req.Target))

		matcher := NewMatcher(svc, e.opts.MatchTimeout)
		match := func(ctx context.Context, t models.Track) (*models.TrackRef, error) {
			if t.Ref != nil && t.Ref.Platform == req.Target {
				return t.Ref, nil
			}
			return matcher.Match(ctx, t)
		}

		matches := Convert(ctx, req.Tracks, match, ConvertOptions{
			ChunkSize: e.opts.MatchChunkSize,
			Progress:  req.Progress,
			Updates:   progress,
		})
		for _, m := range matches {
			if m.Matched() {
				result.Included = append(result.Included, m)
				result.Refs = append(result.Refs, *m.Ref)
				continue
			}
			if !errors.Is(m.Err, shared.ErrNoMatch) {
				logger.Warn("track lookup failed", "title", m.Source.Title, "error", m.Err)
			}
			result.Unmatched = append(result.Unmatched, m)
		}
	}
	result.Refs = append(result.Refs, req.Refs...)

	writer := NewWriter(e.opts.InsertChunkSize, e.client, logger).WithUpdates(progress)
	id, status, err := writer.Write(ctx, svc, name, req.ImageURL, result.Refs)
	result.PlaylistID = id
	result.Status = status

	e.record(ctx, req, result, err)
	if err != nil {
		return result, err
	}

	logger.Info("saved playlist", "id", id, "included", len(result.Included), "unmatched", len(result.Unmatched), "status", status)
	sendProgress(progress, doneUpdate(result))
	return result, nil
}

// record stores the audit row. Failures are logged and never fail the save.
func (e *PlaylistEngine) record(ctx context.Context, req SaveRequest, result *SaveResult, writeErr error) {
	if e.conversions == nil || result.PlaylistID == "" {
		return
	}

	total := result.Total()
	matched := len(result.Included)
	if total == 0 {
		total, matched = len(result.Refs), len(result.Refs)
	}
	c := &models.Conversion{
		ConversionID:     shared.GenerateID(),
		LinkUUID:         req.LinkUUID,
		Source:           req.Source,
		Target:           req.Target,
		TargetPlaylistID: result.PlaylistID,
		Status:           result.Status,
		Matched:          matched,
		Total:            total,
		Created:          e.now(),
	}
	if writeErr != nil && c.Status == 0 {
		c.Status = http.StatusBadGateway
	}
	if err := e.conversions.Create(ctx, c); err != nil {
		e.logger.Warn("failed to record conversion", "playlist", result.PlaylistID, "error", err)
	}
}
