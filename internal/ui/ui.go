package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ResolveView ViewState = iota
	TrackListView
	ConfirmView
	ConvertView
	ResultView
)

// Engine is the part of [tasks.PlaylistEngine] the TUI drives.
type Engine interface {
	Resolve(ctx context.Context, raw string, progress chan<- tasks.ProgressUpdate) (*models.Playlist, error)
	Save(ctx context.Context, req tasks.SaveRequest, progress chan<- tasks.ProgressUpdate) (*tasks.SaveResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	engine Engine
	url    string
	target models.Platform
	name   string

	view      ViewState
	width     int
	height    int
	source    *models.Playlist
	trackList list.Model
	updates   chan tasks.ProgressUpdate
	waitDone  chan completeData
	last      tasks.ProgressUpdate
	result    *tasks.SaveResult
	err       error

	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI that converts the playlist at url to target.
// An empty name keeps the source playlist's title.
func NewModel(ctx context.Context, engine Engine, url string, target models.Platform, name string) *Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(fg(accent)))
	return &Model{
		ctx:      ctx,
		engine:   engine,
		url:      url,
		target:   target,
		name:     name,
		view:     ResolveView,
		spinner:  s,
		progress: progress.New(progress.WithGradient(accent, green)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Result returns the save result once the conversion finished, and its error.
func (m *Model) Result() (*tasks.SaveResult, error) {
	return m.result, m.err
}

// Init starts the spinner and resolves the URL.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.resolve())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-8, 10)
		if m.source != nil {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != ResolveView && m.view != ConvertView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		default:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistResolved:
		data := msg.data.(resolvedData)
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.source = data.playlist
		if m.name == "" {
			m.name = data.playlist.Title
		}
		m.trackList = list.New(trackItems(data.playlist.Tracks), list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("%s • %s", data.playlist.Title, data.playlist.Platform.Title())
		m.trackList.SetSize(m.width-4, m.height-8)
		m.view = TrackListView
		return m, nil

	case MsgProgressUpdate:
		m.last = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgConvertComplete:
		data := msg.data.(completeData)
		m.result = data.result
		m.err = data.err
		m.updates, m.waitDone = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ResolveView:
		return fmt.Sprintf("%s Fetching %s\n\n%s", m.spinner.View(), m.url, m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case ConvertView:
		return m.renderConvert()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ConvertView
		return m, tea.Batch(m.spinner.Tick, m.startConvert())
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = TrackListView
		return m, nil
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != TrackListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) resolve() tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.engine.Resolve(m.ctx, m.url, nil)
		return playlistResolvedMsg(playlist, err)
	}
}

// startConvert runs the save in a goroutine. The channel is closed once Save
// returns, which is how waitForProgress learns the outcome.
func (m *Model) startConvert() tea.Cmd {
	updates := make(chan tasks.ProgressUpdate, 64)
	done := make(chan completeData, 1)
	m.updates = updates

	req := tasks.SaveRequest{
		Target:   m.target,
		Name:     m.name,
		ImageURL: m.source.ImageURL,
		Tracks:   m.source.Tracks,
		Source:   m.source.Platform,
	}

	go func() {
		result, err := m.engine.Save(m.ctx, req, updates)
		done <- completeData{result, err}
		close(updates)
	}()

	m.waitDone = done
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.waitDone
	return func() tea.Msg {
		if updates == nil {
			return nil
		}
		update, ok := <-updates
		if !ok {
			data := <-done
			return convertCompleteMsg(data.result, data.err)
		}
		return progressUpdateMsg(update)
	}
}

// percent is the share of tracks matched so far. Writing counts as the last step.
func (m *Model) percent() float64 {
	switch m.last.Phase {
	case tasks.MatchTracks:
		if m.last.Total == 0 {
			return 0
		}
		return 0.9 * float64(m.last.Step) / float64(m.last.Total)
	case tasks.CreatePlaylist, tasks.UploadCover, tasks.AddTracks:
		return 0.95
	case tasks.Done:
		return 1
	}
	return 0
}

func (m *Model) renderTrackList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.up, m.keys.down, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Convert '%s' to %s?", m.source.Title, m.target.Title()))
	info := fmt.Sprintf("\nFrom: %s\nTo: %s\nName: %s\nTracks: %d\n",
		platformLabel(m.source.Platform), platformLabel(m.target), m.name, len(m.source.Tracks))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConvert() string {
	title := styles.title.Render(fmt.Sprintf("Converting to %s", m.target.Title()))

	var phase string
	switch m.last.Phase {
	case tasks.MatchTracks:
		phase = fmt.Sprintf("Matching tracks (%d/%d)", m.last.Step, m.last.Total)
	case tasks.CreatePlaylist:
		phase = fmt.Sprintf("Creating playlist on %s...", platformLabel(m.target))
	case tasks.UploadCover:
		phase = "Uploading cover art..."
	case tasks.AddTracks:
		phase = fmt.Sprintf("Adding tracks (%d/%d)", m.last.Step, m.last.Total)
	default:
		phase = "Starting..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n\n%s\n%s",
		title, m.spinner.View(), phase, m.progress.ViewAs(m.percent()), styles.help.Render(m.last.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	if m.result == nil {
		return styles.err.Render(fmt.Sprintf("Conversion failed: %v", m.err)) + "\n\n" + helpView
	}

	var b strings.Builder
	if m.err != nil {
		b.WriteString(styles.warn.Render(fmt.Sprintf("! Conversion incomplete: %v", m.err)))
	} else {
		b.WriteString(styles.ok.Render("✓ Conversion Complete!"))
	}

	total := m.result.Total()
	fmt.Fprintf(&b, "\n\nPlaylist: %s (%s)\nMatched: %d/%d", m.name, m.result.PlaylistID, len(m.result.Included), total)
	if total > 0 {
		fmt.Fprintf(&b, " (%.1f%%)", 100*float64(len(m.result.Included))/float64(total))
	}

	if len(m.result.Unmatched) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Failed to match %d tracks:", len(m.result.Unmatched))))
		for _, match := range m.result.Unmatched {
			fmt.Fprintf(&b, "\n  • %s - %s", shared.JoinArtists(match.Source.Artists), match.Source.Title)
		}
	}

	return b.String() + "\n\n" + helpView
}
