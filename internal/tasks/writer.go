package tasks

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
)

// DefaultInsertChunkSize is the largest batch of refs sent in one insert call.
const DefaultInsertChunkSize = 100

// maxCoverDownload caps image downloads well above every platform's upload limit.
const maxCoverDownload = 4 << 20

// Writer creates a playlist on a target platform and fills it with matched tracks.
type Writer struct {
	chunkSize int
	client    *http.Client
	logger    *log.Logger
	updates   chan<- ProgressUpdate
}

// NewWriter creates a writer. client downloads cover images; nil uses a client with a 30s timeout.
func NewWriter(chunkSize int, client *http.Client, logger *log.Logger) *Writer {
	if chunkSize <= 0 {
		chunkSize = DefaultInsertChunkSize
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{chunkSize: chunkSize, client: client, logger: logger}
}

// WithUpdates returns a copy of w that reports progress on updates.
func (w *Writer) WithUpdates(updates chan<- ProgressUpdate) *Writer {
	c := *w
	c.updates = updates
	return &c
}

// Write creates the playlist, uploads the cover when possible and inserts refs in order.
//
// Inserts are chunked and strictly sequential. The returned status is the last chunk's
// status, or 201 when there was nothing to insert. When a chunk fails the remaining chunks
// are not sent and a [*shared.PartialWriteError] is returned along with the playlist id.
func (w *Writer) Write(ctx context.Context, svc services.Service, name, imageURL string, refs []models.TrackRef) (string, int, error) {
	sendProgress(w.updates, createPlaylistUpdate(name, svc.Platform()))

	id, err := svc.CreatePlaylist(ctx, name)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create playlist on %s: %w", svc.Name(), err)
	}
	sendProgress(w.updates, playlistCreatedUpdate(id))

	if imageURL != "" {
		if uploader, ok := svc.(services.CoverUploader); ok {
			w.uploadCover(ctx, uploader, id, imageURL)
		}
	}

	status := http.StatusCreated
	written := 0
	for start := 0; start < len(refs); start += w.chunkSize {
		end := min(start+w.chunkSize, len(refs))

		st, err := svc.AddTracks(ctx, id, refs[start:end])
		if err != nil {
			return id, st, &shared.PartialWriteError{
				PlaylistID: id,
				Status:     st,
				Written:    written,
				Total:      len(refs),
				Err:        err,
			}
		}

		status = st
		written = end
		sendProgress(w.updates, addTracksUpdate(written, len(refs)))
		w.logger.Debug("inserted chunk", "playlist", id, "written", written, "total", len(refs), "status", st)
	}

	return id, status, nil
}

// uploadCover never fails the write. Problems are logged and the cover is skipped.
func (w *Writer) uploadCover(ctx context.Context, uploader services.CoverUploader, playlistID, imageURL string) {
	data, err := w.download(ctx, imageURL)
	if err != nil {
		w.logger.Warn("skipping cover image", "url", imageURL, "error", err)
		sendProgress(w.updates, coverUpdate("Cover image unavailable, skipped"))
		return
	}

	size := base64.StdEncoding.EncodedLen(len(data))
	if limit := uploader.CoverLimit(); size >= limit {
		w.logger.Warn("skipping oversized cover image", "size", size, "limit", limit)
		sendProgress(w.updates, coverUpdate(fmt.Sprintf("Cover image too large (%d KB), skipped", size/1024)))
		return
	}

	if err := uploader.UploadCoverArt(ctx, playlistID, data); err != nil {
		w.logger.Warn("cover upload failed", "playlist", playlistID, "error", err)
		sendProgress(w.updates, coverUpdate("Cover upload failed, skipped"))
		return
	}
	sendProgress(w.updates, coverUpdate("Cover image uploaded"))
}

func (w *Writer) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad image url: %v", shared.ErrInvalidInput, err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCoverDownload))
}
