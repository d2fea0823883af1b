// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deskviz/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source provides the snapshot to draw. *audio.Sink implements it.
type Source interface {
	Snapshot() audio.Snapshot
}

// Pauser toggles capture. *audio.Gate implements it.
type Pauser interface {
	Toggle() bool
	Paused() bool
}

var (
	labelStyle = lipgloss.NewStyle().Width(len("Audio Treble:") + 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	pauseKey = key.NewBinding(key.WithKeys("p", " "))
	quitKey  = key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))
)

type tickMsg time.Time

// PreviewModel is a terminal stand-in for the desktop overlay: it polls a
// Source at a fixed interval and draws one coloured bar per level.
type PreviewModel struct {
	source   Source
	pauser   Pauser
	interval time.Duration
	width    int

	snap   audio.Snapshot
	paused bool
}

// NewPreviewModel creates a preview that redraws every interval. pauser may
// be nil.
func NewPreviewModel(source Source, pauser Pauser, interval time.Duration) PreviewModel {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return PreviewModel{
		source:   source,
		pauser:   pauser,
		interval: interval,
		width:    DefaultBarWidth,
		snap:     source.Snapshot(),
	}
}

func (m PreviewModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh loop.
func (m PreviewModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles refresh ticks and key presses.
func (m PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.pauser != nil {
			m.paused = m.pauser.Paused()
		}
		// Labels are left unchanged while paused.
		if !m.paused {
			m.snap = m.source.Snapshot()
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, pauseKey):
			if m.pauser != nil {
				m.paused = m.pauser.Toggle()
			}
		}
	}
	return m, nil
}

// View renders the device label and the four level bars.
func (m PreviewModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("deskviz"))
	sb.WriteString("\n\n")

	source := "N/A"
	if m.snap.Available {
		source = m.snap.Device
		if source == "" {
			source = "Unknown"
		}
	}
	fmt.Fprintf(&sb, "Audio Source: %s\n", source)

	rows := []struct {
		label string
		value float64
	}{
		{"Audio Volume:", m.snap.Volume},
		{"Audio Bass:", m.snap.Bass},
		{"Audio Mid:", m.snap.Mid},
		{"Audio Treble:", m.snap.Treble},
	}
	for _, r := range rows {
		sb.WriteString(labelStyle.Render(r.label))
		if m.snap.Available {
			bar := lipgloss.NewStyle().Foreground(lipgloss.Color(LevelColor(r.value)))
			sb.WriteString(bar.Render(Bar(r.value, m.width)))
		} else {
			sb.WriteString("N/A")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	help := "p: Pause • q: Quit"
	if m.paused {
		help = "paused • " + help
	}
	sb.WriteString(mutedStyle.Render(help))
	return sb.String()
}

// StartPreviewUI runs the preview until the user quits or ctx is done.
func StartPreviewUI(ctx context.Context, source Source, pauser Pauser, interval time.Duration) error {
	p := tea.NewProgram(
		NewPreviewModel(source, pauser, interval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
