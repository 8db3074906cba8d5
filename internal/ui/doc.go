// Package ui implements the terminal progress view for `playvert convert --tui` using bubbletea's Elm architecture.
//
// The [Model] walks through five views:
//  1. [ResolveView] : Fetch the source playlist behind the URL
//  2. [TrackListView] : Preview the tracks that will be matched
//  3. [ConfirmView] : Confirm the target platform and playlist name
//  4. [ConvertView] : Progress bar and spinner fed by [tasks.ProgressUpdate]s
//  5. [ResultView] : Matched count and the tracks that were not found
//
// The engine runs in a goroutine and reports through a buffered channel; the model
// reads one update per command so the UI never blocks the conversion.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
