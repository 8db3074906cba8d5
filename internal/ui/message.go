package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistResolved MsgKind = iota
	MsgProgressUpdate
	MsgConvertComplete
)

type resolvedData struct {
	playlist *models.Playlist
	err      error
}

type completeData struct {
	result *tasks.SaveResult
	err    error
}

// playlistResolvedMsg is the constructor for [MsgPlaylistResolved]
func playlistResolvedMsg(playlist *models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistResolved, data: resolvedData{playlist, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// convertCompleteMsg is the constructor for [MsgConvertComplete]
func convertCompleteMsg(result *tasks.SaveResult, err error) Msg {
	return Msg{kind: MsgConvertComplete, data: completeData{result, err}}
}
