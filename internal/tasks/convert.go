package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/desertthunder/playvert/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultMatchChunkSize is the number of tracks matched concurrently.
const DefaultMatchChunkSize = 20

// MatchFunc resolves one source track on the target platform.
type MatchFunc func(ctx context.Context, source models.Track) (*models.TrackRef, error)

// TrackMatch is the outcome for the track at Index of the source list.
type TrackMatch struct {
	Index  int
	Source models.Track
	Ref    *models.TrackRef
	Err    error
}

// Matched reports whether the track can be added to the target playlist.
func (m TrackMatch) Matched() bool {
	return m.Err == nil && m.Ref != nil
}

func (m TrackMatch) MarshalJSON() ([]byte, error) {
	out := struct {
		Index  int              `json:"index"`
		Source models.Track     `json:"source"`
		Ref    *models.TrackRef `json:"ref,omitempty"`
		Error  string           `json:"error,omitempty"`
	}{Index: m.Index, Source: m.Source, Ref: m.Ref}
	if m.Err != nil {
		out.Error = m.Err.Error()
	}
	return json.Marshal(out)
}

// Progress counts resolved tracks of a save. It is safe for concurrent use.
type Progress struct {
	resolved atomic.Int64
	total    atomic.Int64
}

func (p *Progress) add(n int) int {
	if p == nil {
		return 0
	}
	return int(p.resolved.Add(int64(n)))
}

func (p *Progress) setTotal(n int) {
	if p != nil {
		p.total.Store(int64(n))
	}
}

func (p *Progress) Resolved() int { return int(p.resolved.Load()) }
func (p *Progress) Total() int    { return int(p.total.Load()) }

// ConvertOptions tunes [Convert].
type ConvertOptions struct {
	ChunkSize int
	Progress  *Progress
	Updates   chan<- ProgressUpdate
}

// Convert matches tracks in chunks. Matches inside a chunk run concurrently and a chunk
// finishes before the next one starts.
//
// The result has one entry per input track, at the same index. A failing or panicking
// match only affects its own entry.
func Convert(ctx context.Context, tracks []models.Track, match MatchFunc, opts ConvertOptions) []TrackMatch {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultMatchChunkSize
	}
	total := len(tracks)
	opts.Progress.setTotal(total)

	results := make([]TrackMatch, total)
	var resolved atomic.Int64

	for start := 0; start < total; start += size {
		end := min(start+size, total)

		if err := ctx.Err(); err != nil {
			for i := start; i < total; i++ {
				results[i] = TrackMatch{Index: i, Source: tracks[i], Err: err}
			}
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = matchOne(ctx, i, tracks[i], match)

				step := int(resolved.Add(1))
				opts.Progress.add(1)
				sendProgress(opts.Updates, matchTrackUpdate(step, total, results[i]))
				return nil
			})
		}
		g.Wait()
	}

	return results
}

func matchOne(ctx context.Context, i int, track models.Track, match MatchFunc) (m TrackMatch) {
	m = TrackMatch{Index: i, Source: track}
	defer func() {
		if r := recover(); r != nil {
			m.Ref = nil
			m.Err = fmt.Errorf("matching %q panicked: %v", track.Title, r)
		}
	}()

	m.Ref, m.Err = match(ctx, track)
	if m.Err == nil && m.Ref == nil {
		m.Err = fmt.Errorf("matching %q returned no reference", track.Title)
	}
	return m
}
