package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/playvert/internal/formatter"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Convert resolves a playlist URL, matches its tracks on --to and creates the playlist there.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	target, err := models.ParsePlatform(cmd.String("to"))
	if err != nil {
		return fmt.Errorf("%w: --to: %v", shared.ErrInvalidArgument, err)
	}

	engine, err := r.Engine()
	if err != nil {
		return err
	}
	if _, err := engine.Service(target); err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return r.ConvertTUI(ctx, raw, target, cmd.String("name"))
	}

	source, err := r.resolve(ctx, raw)
	if err != nil {
		return err
	}
	if source.Platform == target {
		r.logger.Warn("source and target platform are the same", "platform", target)
	}

	name := strings.TrimSpace(cmd.String("name"))
	if name == "" {
		name = source.Title
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			r.logProgress(update)
		}
	}()

	result, saveErr := engine.Save(ctx, tasks.SaveRequest{
		Target:   target,
		Name:     name,
		ImageURL: source.ImageURL,
		Tracks:   source.Tracks,
		Source:   source.Platform,
	}, updates)
	close(updates)
	<-done

	var partial *shared.PartialWriteError
	if saveErr != nil && !errors.As(saveErr, &partial) {
		return saveErr
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(result, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.output.Write(formatter.SaveReport(target, name, result))
	}

	if cmd.Bool("share") {
		if err := r.share(ctx, source, cmd.Bool("json"), cmd.Bool("pretty")); err != nil {
			r.logger.Error("failed to create share link", "error", err)
		}
	}

	return saveErr
}

func (r *Runner) logProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.MatchTracks:
		r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
	default:
		r.logger.Info(update.Message, "phase", update.Phase)
	}
}
