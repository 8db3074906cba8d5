package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/ui"
)

// ConvertTUI runs a conversion inside the interactive progress view.
func (r *Runner) ConvertTUI(ctx context.Context, raw string, target models.Platform, name string) error {
	engine, err := r.Engine()
	if err != nil {
		return err
	}

	// Redirect logs to a file to avoid interfering with TUI rendering
	logPath := filepath.Join(os.TempDir(), "playvert-tui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	if r.logSink != nil {
		prev := r.logSink.Swap(logFile)
		defer r.logSink.Swap(prev)
	}

	model := ui.NewModel(ctx, engine, raw, target, name)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	result, err := model.Result()
	if result != nil {
		r.writePlain("✓ %s playlist %s: %d/%d tracks matched\n", target.Title(), result.PlaylistID, len(result.Included), result.Total())
		for _, m := range result.Unmatched {
			r.writePlain("  ✗ %s - %s\n", shared.JoinArtists(m.Source.Artists), m.Source.Title)
		}
	}
	return err
}
