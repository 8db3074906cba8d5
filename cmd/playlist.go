package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/playvert/internal/formatter"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/urfave/cli/v3"
)

func urlArg(cmd *cli.Command) (string, error) {
	raw := strings.TrimSpace(cmd.StringArg("url"))
	if raw == "" {
		return "", fmt.Errorf("%w: playlist URL is required", shared.ErrMissingArgument)
	}
	return raw, nil
}

// resolve fetches the playlist behind a URL with all of its tracks.
func (r *Runner) resolve(ctx context.Context, raw string) (*models.Playlist, error) {
	engine, err := r.Engine()
	if err != nil {
		return nil, err
	}

	r.logger.Info("resolving playlist", "url", raw)
	playlist, err := engine.Resolve(ctx, raw, nil)
	if err != nil {
		return nil, err
	}
	r.logger.Info("resolved playlist", "title", playlist.Title, "platform", playlist.Platform, "tracks", len(playlist.Tracks))
	return playlist, nil
}

// PlaylistGet prints a playlist in the requested format or writes it to --output.
func (r *Runner) PlaylistGet(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	playlist, err := r.resolve(ctx, raw)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	if out := cmd.String("output"); out != "" {
		result, err := formatter.WriteExport(ctx, cmd.String("format"), playlist, out, os.Stderr)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported: %s\n", strings.Join(result.Files, ", "))
		r.writePlain("  Playlist: %s\n", playlist.Title)
		r.writePlain("  Tracks: %d\n", len(playlist.Tracks))
		return nil
	}

	data, err := formatter.Render(cmd.String("format"), playlist)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// PlaylistTracks lists a playlist's tracks with their ISRCs.
func (r *Runner) PlaylistTracks(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	playlist, err := r.resolve(ctx, raw)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist.Tracks, cmd.Bool("pretty"))
	}

	r.writePlain("%s • %d tracks\n\n", playlist.Title, len(playlist.Tracks))
	r.writeTracks(playlist.Tracks)
	return nil
}

func (r *Runner) writeTracks(tracks []models.Track) {
	for i, track := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, shared.JoinArtists(track.Artists), track.Title)
		if track.ISRC != "" {
			r.writePlain("   ISRC: %s\n", track.ISRC)
		}
		if track.LinkToSong != "" {
			r.writePlain("   URL: %s\n", track.LinkToSong)
		}
	}
}

// Search queries one platform's catalog.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	p, err := models.ParsePlatform(cmd.StringArg("platform"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	q := models.SearchQuery{
		ISRC:   strings.TrimSpace(cmd.String("isrc")),
		Title:  strings.TrimSpace(cmd.String("title")),
		Artist: strings.TrimSpace(cmd.String("artist")),
	}
	if q.Empty() {
		return fmt.Errorf("%w: one of --isrc, --title or --artist is required", shared.ErrMissingArgument)
	}

	engine, err := r.Engine()
	if err != nil {
		return err
	}
	svc, err := engine.Service(p)
	if err != nil {
		return err
	}

	tracks, err := svc.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if limit := int(cmd.Int("limit")); limit > 0 && limit < len(tracks) {
		tracks = tracks[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No results on %s\n", p.Title())
	}
	r.writePlain("Found %d results on %s:\n\n", len(tracks), p.Title())
	r.writeTracks(tracks)
	return nil
}

// ShareCreate resolves a URL and stores the playlist behind a share link.
func (r *Runner) ShareCreate(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	playlist, err := r.resolve(ctx, raw)
	if err != nil {
		return err
	}
	return r.share(ctx, playlist, cmd.Bool("json"), cmd.Bool("pretty"))
}

func (r *Runner) share(ctx context.Context, playlist *models.Playlist, asJSON, pretty bool) error {
	engine, err := r.Engine()
	if err != nil {
		return err
	}

	link, err := engine.Share(ctx, playlist)
	if err != nil {
		return err
	}
	shareURL := strings.TrimRight(r.config.Server.ShareBaseURL, "/") + "/" + link.LinkUUID

	if asJSON {
		return r.writeJSON(map[string]any{
			"linkUuid": link.LinkUUID,
			"ttl":      link.TTL,
			"url":      shareURL,
		}, pretty)
	}

	r.writePlain("✓ Share link: %s\n", shareURL)
	r.writePlain("  Expires: %s\n", link.ExpiresAt().Format(time.RFC1123))
	return nil
}

// ShareGet prints the playlist stored behind a share link.
func (r *Runner) ShareGet(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: link id is required", shared.ErrMissingArgument)
	}

	engine, err := r.Engine()
	if err != nil {
		return err
	}
	link, err := engine.Shared(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(link, cmd.Bool("pretty"))
	}

	data, err := formatter.ExportToText(&link.Playlist)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return err
	}
	return r.writePlainln("Expires: %s", link.ExpiresAt().Format(time.RFC1123))
}

// SharePurge deletes expired links from the store.
func (r *Runner) SharePurge(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.Engine(); err != nil {
		return err
	}

	n, err := r.links.PurgeExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to purge share links: %w", err)
	}
	return r.writePlain("✓ Removed %d expired links\n", n)
}
