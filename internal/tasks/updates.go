package tasks

import (
	"fmt"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveURL Phase = iota
	FetchSource
	MatchTracks
	CreatePlaylist
	UploadCover
	AddTracks
	Done
)

func (p Phase) String() string {
	switch p {
	case ResolveURL:
		return "resolve_url"
	case FetchSource:
		return "fetch_source"
	case MatchTracks:
		return "match_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case UploadCover:
		return "upload_cover"
	case AddTracks:
		return "add_tracks"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func resolveURLUpdate(raw string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveURL,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving %s...", raw),
	}
}

func fetchSourceUpdate(p models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Getting playlist info from %s...", p.Title()),
	}
}

func foundPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", pl.Title, len(pl.Tracks)),
		Data:    pl,
	}
}

func matchStartUpdate(total int, target models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Searching for tracks on %s...", target.Title()),
	}
}

func matchTrackUpdate(step, total int, m TrackMatch) ProgressUpdate {
	mark := "✓"
	if m.Err != nil {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, shared.JoinArtists(m.Source.Artists), m.Source.Title),
		Data:    m,
	}
}

func createPlaylistUpdate(name string, target models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating %q on %s...", name, target.Title()),
	}
}

func playlistCreatedUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created (ID: %s)", id),
		Data:    id,
	}
}

func coverUpdate(message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadCover,
		Step:    1,
		Total:   1,
		Message: message,
	}
}

func addTracksUpdate(written, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    written,
		Total:   total,
		Message: fmt.Sprintf("Added %d/%d tracks", written, total),
	}
}

func doneUpdate(result *SaveResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved %d of %d tracks", len(result.Included), len(result.Included)+len(result.Unmatched)),
		Data:    result,
	}
}
