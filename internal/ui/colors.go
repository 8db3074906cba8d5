package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/playvert/internal/models"
)

const (
	accent = "#7D56F4"
	green  = "#04B575"
	red    = "#FF4F4F"
	orange = "#FFA500"
	muted  = "#626262"
)

// brand colors per platform
var platformColors = map[models.Platform]lipgloss.Color{
	models.Spotify: "#1DB954",
	models.Apple:   "#FA243C",
	models.Deezer:  "#A238FF",
}

var styles = struct {
	title, ok, err, warn, help lipgloss.Style
}{
	title: bold(accent).MarginBottom(1),
	ok:    bold(green),
	err:   bold(red),
	warn:  fg(orange),
	help:  fg(muted).Italic(true),
}

func fg(c string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
}

func bold(c string) lipgloss.Style {
	return fg(c).Bold(true)
}

// platformLabel renders a platform's name in its brand color.
func platformLabel(p models.Platform) string {
	c, ok := platformColors[p]
	if !ok {
		return p.Title()
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(p.Title())
}
