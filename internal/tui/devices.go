// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"deskviz/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	upKey     = key.NewBinding(key.WithKeys("up", "k"))
	downKey   = key.NewBinding(key.WithKeys("down", "j"))
	selectKey = key.NewBinding(key.WithKeys("enter"))
	exitKey   = key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))
)

// FetchFunc enumerates capture devices grouped by backend.
type FetchFunc func() ([]audio.BackendDevices, error)

type devicesMsg struct {
	groups []audio.BackendDevices
}

type errMsg struct {
	err error
}

// DeviceListModel lists the devices each backend can capture from and lets
// the user pick one.
type DeviceListModel struct {
	fetch    FetchFunc
	groups   []audio.BackendDevices
	devices  []audio.Device // flattened, in display order
	cursor   int
	selected *audio.Device
	viewport viewport.Model
	ready    bool
	err      error
}

// NewDeviceListModel creates a device list backed by fetch.
func NewDeviceListModel(fetch FetchFunc) DeviceListModel {
	return DeviceListModel{fetch: fetch}
}

// Init fetches the device list.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		groups, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{groups}
	}
}

// Selected returns the device chosen with Enter, if any.
func (m DeviceListModel) Selected() (audio.Device, bool) {
	if m.selected == nil {
		return audio.Device{}, false
	}
	return *m.selected, true
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.groups = msg.groups
		m.devices = m.devices[:0]
		for _, g := range m.groups {
			m.devices = append(m.devices, g.Devices...)
		}
		m.cursor = 0
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, exitKey):
			return m, tea.Quit
		case key.Matches(msg, upKey):
			if m.cursor > 0 {
				m.cursor--
			}
			m.viewport.SetContent(m.renderDevices())
			return m, nil
		case key.Matches(msg, downKey):
			if m.cursor < len(m.devices)-1 {
				m.cursor++
			}
			m.viewport.SetContent(m.renderDevices())
			return m, nil
		case key.Matches(msg, selectKey):
			if len(m.devices) > 0 {
				d := m.devices[m.cursor]
				m.selected = &d
				return m, tea.Quit
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Capture Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.groups) == 0 {
		return "No capture devices found."
	}

	var sb strings.Builder
	i := 0
	for _, g := range m.groups {
		fmt.Fprintf(&sb, "%s\n", g.Backend)
		if g.Err != nil {
			fmt.Fprintf(&sb, "    unavailable: %v\n\n", g.Err)
			continue
		}
		for _, d := range g.Devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			line := fmt.Sprintf("  %s %s\n      %d ch @ %.0f Hz\n", marker, d.Name, d.Channels, d.SampleRate)
			if i == m.cursor {
				line = highlightStyle.Render(line)
			}
			sb.WriteString(line)
			i++
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the device list and returns the chosen device. ok is false
// when the user quits without choosing.
func PickDevice(fetch FetchFunc) (audio.Device, bool, error) {
	p := tea.NewProgram(NewDeviceListModel(fetch), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return audio.Device{}, false, err
	}
	m, _ := final.(DeviceListModel)
	d, ok := m.Selected()
	return d, ok, m.err
}
