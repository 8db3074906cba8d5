package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

func makeTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:      fmt.Sprintf("t%d", i),
			ISRC:    fmt.Sprintf("USRC%d", i),
			Title:   fmt.Sprintf("Song %d", i),
			Artists: []string{"Artist"},
		}
	}
	return tracks
}

func TestConvert(t *testing.T) {
	t.Run("output order matches input under jitter", func(t *testing.T) {
		tracks := makeTracks(45)
		match := func(_ context.Context, tr models.Track) (*models.TrackRef, error) {
			time.Sleep(time.Duration(rand.IntN(10)) * time.Millisecond)
			return ref("target-" + tr.ID), nil
		}

		progress := &Progress{}
		updates := make(chan ProgressUpdate, 100)
		results := Convert(context.Background(), tracks, match, ConvertOptions{ChunkSize: 20, Progress: progress, Updates: updates})

		if len(results) != len(tracks) {
			t.Fatalf("expected %d results, got %d", len(tracks), len(results))
		}
		for i, r := range results {
			if r.Index != i || r.Source.ID != tracks[i].ID || r.Ref.ID != "target-"+tracks[i].ID {
				t.Errorf("result %d out of order: %+v", i, r)
			}
		}
		if progress.Resolved() != 45 || progress.Total() != 45 {
			t.Errorf("progress = %d/%d, want 45/45", progress.Resolved(), progress.Total())
		}
		if len(updates) != 45 {
			t.Errorf("expected 45 progress updates, got %d", len(updates))
		}

		last := 0
		for len(updates) > 0 {
			u := <-updates
			if u.Phase != MatchTracks || u.Total != 45 {
				t.Errorf("unexpected update %+v", u)
			}
			if u.Step > last {
				last = u.Step
			}
		}
		if last != 45 {
			t.Errorf("expected final step 45, got %d", last)
		}
	})

	t.Run("chunks run one after another", func(t *testing.T) {
		const size = 5
		tracks := makeTracks(17)

		var inFlight, peak, finished atomic.Int64
		var violations atomic.Int64
		match := func(_ context.Context, tr models.Track) (*models.TrackRef, error) {
			var i int
			fmt.Sscanf(tr.ID, "t%d", &i)
			if finished.Load() < int64(i/size*size) {
				violations.Add(1)
			}

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			finished.Add(1)
			return ref(tr.ID), nil
		}

		Convert(context.Background(), tracks, match, ConvertOptions{ChunkSize: size})

		if violations.Load() != 0 {
			t.Errorf("%d matches started before the previous chunk finished", violations.Load())
		}
		if peak.Load() > size {
			t.Errorf("peak concurrency %d exceeds chunk size %d", peak.Load(), size)
		}
	})

	t.Run("failures stay in their slot", func(t *testing.T) {
		tracks := makeTracks(4)
		match := func(_ context.Context, tr models.Track) (*models.TrackRef, error) {
			switch tr.ID {
			case "t1":
				return nil, shared.ErrNoMatch
			case "t2":
				panic("boom")
			default:
				return ref(tr.ID), nil
			}
		}

		results := Convert(context.Background(), tracks, match, ConvertOptions{})

		if !results[0].Matched() || !results[3].Matched() {
			t.Error("healthy tracks should match")
		}
		if !errors.Is(results[1].Err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch in slot 1, got %v", results[1].Err)
		}
		if results[2].Err == nil || !strings.Contains(results[2].Err.Error(), "panicked") {
			t.Errorf("expected panic error in slot 2, got %v", results[2].Err)
		}
	})

	t.Run("nil ref without error is a failure", func(t *testing.T) {
		results := Convert(context.Background(), makeTracks(1), func(context.Context, models.Track) (*models.TrackRef, error) {
			return nil, nil
		}, ConvertOptions{})
		if results[0].Matched() || results[0].Err == nil {
			t.Errorf("expected failure, got %+v", results[0])
		}
	})

	t.Run("cancelled context stops later chunks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int64
		match := func(_ context.Context, tr models.Track) (*models.TrackRef, error) {
			calls.Add(1)
			cancel()
			return ref(tr.ID), nil
		}

		results := Convert(ctx, makeTracks(6), match, ConvertOptions{ChunkSize: 2})

		if calls.Load() != 2 {
			t.Errorf("expected only the first chunk to run, got %d calls", calls.Load())
		}
		for _, r := range results[2:] {
			if !errors.Is(r.Err, context.Canceled) {
				t.Errorf("slot %d: expected context.Canceled, got %v", r.Index, r.Err)
			}
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := Convert(context.Background(), nil, nil, ConvertOptions{}); len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
	})
}

func TestTrackMatchJSON(t *testing.T) {
	m := TrackMatch{Index: 1, Source: models.Track{Title: "Song"}, Err: shared.ErrNoMatch}
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(string(data), `"error":"no match on target platform"`) {
		t.Errorf("error not rendered: %s", data)
	}
	if strings.Contains(string(data), `"ref"`) {
		t.Errorf("nil ref should be omitted: %s", data)
	}
}
