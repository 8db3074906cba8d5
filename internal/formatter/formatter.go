// package formatter renders playlists and conversion results as plain text, Markdown or CSV
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/tasks"
)

// Format names accepted by [Render].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatText, FormatMarkdown, FormatCSV}
}

// Render dispatches on format. An empty format is plain text.
func Render(format string, playlist *models.Playlist) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText, "txt":
		return ExportToText(playlist)
	case FormatMarkdown, "md":
		return ExportToMarkdown(playlist, "")
	case FormatCSV:
		return ExportToCSV(playlist)
	}
	return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats(), ", "))
}

// ExportToCSV writes one row per track with columns: Position, Title, Artists, ISRC, Platform, ID, URL
func ExportToCSV(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artists", "ISRC", "Platform", "ID", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range playlist.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Title,
			shared.JoinArtists(track.Artists),
			track.ISRC,
			trackPlatform(playlist, track),
			track.ID,
			track.LinkToSong,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a playlist with an optional cover image reference
func ExportToMarkdown(playlist *models.Playlist, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", playlist.Title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Platform**: %s\n", playlist.Platform.Title())
	if playlist.PlaylistURL != "" {
		fmt.Fprintf(&buf, "**Source**: <%s>\n", playlist.PlaylistURL)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(playlist.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range playlist.Tracks {
		title := track.Title
		if track.LinkToSong != "" {
			title = fmt.Sprintf("[%s](%s)", track.Title, track.LinkToSong)
		}
		isrcPart := ""
		if track.ISRC != "" {
			isrcPart = fmt.Sprintf(" `%s`", track.ISRC)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s\n", i+1, shared.JoinArtists(track.Artists), title, isrcPart)
	}

	return buf.Bytes(), nil
}

// ExportToText renders a playlist as a numbered list
func ExportToText(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", playlist.Title)
	fmt.Fprintf(&buf, "Platform: %s\n", playlist.Platform.Title())
	if playlist.PlaylistURL != "" {
		fmt.Fprintf(&buf, "URL: %s\n", playlist.PlaylistURL)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(playlist.Tracks))

	for i, track := range playlist.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, shared.JoinArtists(track.Artists), track.Title)
	}

	return buf.Bytes(), nil
}

// SaveReport summarizes a conversion for the terminal.
func SaveReport(target models.Platform, name string, result *tasks.SaveResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Created %q on %s", name, target.Title())
	if result.PlaylistID != "" {
		fmt.Fprintf(&buf, " (%s)", result.PlaylistID)
	}
	buf.WriteString("\n")

	total := result.Total()
	if total == 0 {
		total = len(result.Refs)
	}
	fmt.Fprintf(&buf, "Matched %d of %d tracks (status %d)\n", len(result.Included), total, result.Status)

	if len(result.Unmatched) > 0 {
		buf.WriteString("\nNot found:\n")
		for _, m := range result.Unmatched {
			fmt.Fprintf(&buf, "  %d. %s - %s", m.Index+1, shared.JoinArtists(m.Source.Artists), m.Source.Title)
			if m.Err != nil {
				fmt.Fprintf(&buf, " (%v)", m.Err)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes()
}

func trackPlatform(playlist *models.Playlist, track models.Track) string {
	if track.Ref != nil {
		return track.Ref.Platform.String()
	}
	return playlist.Platform.String()
}

// DownloadImage fetches a cover image and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ExportResult lists the files created by [WriteExport].
type ExportResult struct {
	Files      []string
	CoverImage string
}

// WriteExport writes a playlist to path in the given format.
//
// Markdown exports treat path as a directory and create {path}/README.md, plus
// {path}/cover.jpg when the playlist has an image that downloads. Cover failures are
// reported on warn and do not fail the export.
func WriteExport(ctx context.Context, format string, playlist *models.Playlist, path string, warn io.Writer) (*ExportResult, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if warn == nil {
		warn = io.Discard
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatMarkdown && format != "md" {
		data, err := Render(format, playlist)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return &ExportResult{Files: []string{path}}, nil
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{}
	var coverImageFilename string
	if playlist.ImageURL != "" {
		imageData, err := DownloadImage(ctx, nil, playlist.ImageURL)
		if err != nil {
			fmt.Fprintf(warn, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(path, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(warn, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(playlist, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(path, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}
