package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/76creates/stickers/flexbox"
	"github.com/aeolun/guildbuf/pkg/buffers"
	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/model"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("205")
	mutedColor   = lipgloss.Color("240")
	warningColor = lipgloss.Color("214")
	alertColor   = lipgloss.Color("196")
)

const refreshInterval = 250 * time.Millisecond

// bufferOps is the part of buffers.Manager the viewer drives
type bufferOps interface {
	Display(key buffers.Key) <-chan struct{}
	Refresh(key buffers.Key) <-chan struct{}
	Resume() <-chan struct{}
	OpenPins(channelID model.Snowflake) <-chan struct{}
}

// reloadFunc pulls member changes into the session and reports how many
// renames it applied
type reloadFunc func() (<-chan struct{}, int, error)

type tickMsg time.Time

type loadedMsg struct{ key string }

type viewer struct {
	host   *host.Memory
	ops    bufferOps
	reload reloadFunc

	keys     []string
	selected int
	status   string

	width    int
	height   int
	lines    viewport.Model
	lastText string
}

func newViewer(h *host.Memory, ops bufferOps, reload reloadFunc) viewer {
	v := viewer{host: h, ops: ops, reload: reload}
	v.keys = h.Keys()
	return v
}

func (v viewer) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitFor turns a completion channel into a message
func waitFor(key string, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return loadedMsg{key: key}
	}
}

func (v viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.resize()
		v.syncContent()
		return v, nil

	case tickMsg:
		v.keys = v.host.Keys()
		v.syncContent()
		return v, tick()

	case loadedMsg:
		v.status = fmt.Sprintf("loaded %s", msg.key)
		v.syncContent()
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v viewer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return v, tea.Quit
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
		return v, nil
	case "down", "j":
		if v.selected < len(v.keys)-1 {
			v.selected++
		}
		return v, nil
	case "pgup":
		v.lines.HalfViewUp()
		return v, nil
	case "pgdown":
		v.lines.HalfViewDown()
		return v, nil
	case "R":
		v.status = "resuming"
		return v, waitFor("all buffers", v.ops.Resume())
	case "m":
		if v.reload == nil {
			return v, nil
		}
		done, renamed, err := v.reload()
		if err != nil {
			v.status = err.Error()
			return v, nil
		}
		v.status = fmt.Sprintf("reloading members, %d renamed", renamed)
		return v, waitFor("members", done)
	}

	name, ok := v.selectedKey()
	if !ok {
		return v, nil
	}
	key, err := buffers.ParseKey(name)
	if err != nil {
		v.status = err.Error()
		return v, nil
	}

	switch msg.String() {
	case "enter":
		if view, ok := v.host.View(name); ok {
			view.SwitchTo()
		}
		v.status = "loading " + name
		return v, waitFor(name, v.ops.Display(key))
	case "r":
		v.status = "refreshing " + name
		return v, waitFor(name, v.ops.Refresh(key))
	case "p":
		if key.Kind != buffers.KeyChannel {
			v.status = "pins are only available for channels"
			return v, nil
		}
		pins := buffers.PinsKey(key.ChannelID).String()
		v.status = "loading " + pins
		return v, waitFor(pins, v.ops.OpenPins(key.ChannelID))
	}
	return v, nil
}

func (v viewer) selectedKey() (string, bool) {
	if v.selected < 0 || v.selected >= len(v.keys) {
		return "", false
	}
	return v.keys[v.selected], true
}

func (v *viewer) resize() {
	w, h := v.linesSize()
	if v.lines.Width == 0 || v.lines.Height == 0 {
		v.lines = viewport.New(w, h)
		return
	}
	v.lines.Width = w
	v.lines.Height = h
}

func (v viewer) linesSize() (int, int) {
	w := v.width - v.listWidth() - v.nickWidth() - 6
	if w < 20 {
		w = 20
	}
	h := v.height - 4
	if h < 5 {
		h = 5
	}
	return w, h
}

func (v viewer) listWidth() int { return max(v.width/5, 18) }

func (v viewer) nickWidth() int { return max(v.width/6, 14) }

// syncContent rebuilds the message pane for the switched-to buffer
func (v *viewer) syncContent() {
	text := v.buildLines()
	if text == v.lastText {
		return
	}
	atBottom := v.lines.AtBottom()
	v.lastText = text
	v.lines.SetContent(text)
	if atBottom {
		v.lines.GotoBottom()
	}
}

func (v viewer) current() (host.ViewState, bool) {
	switched := v.host.Switched()
	if switched == "" {
		return host.ViewState{}, false
	}
	return v.host.State(switched)
}

func (v viewer) buildLines() string {
	state, ok := v.current()
	if !ok {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("Select a buffer and press enter")
	}

	timeStyle := lipgloss.NewStyle().Foreground(mutedColor)
	authorStyle := lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	unreadMarker := lipgloss.NewStyle().Foreground(warningColor).Render("*")

	var b strings.Builder
	for _, line := range state.Lines {
		marker := " "
		if !line.Read {
			marker = unreadMarker
		}
		fmt.Fprintf(&b, "%s %s %s %s\n",
			marker,
			timeStyle.Render(line.Message.Timestamp.Format("15:04")),
			authorStyle.Render(line.Message.Author.Name),
			line.Message.Content)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (v viewer) buildList() string {
	selectedStyle := lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	normalStyle := lipgloss.NewStyle()

	var b strings.Builder
	for i, key := range v.keys {
		state, ok := v.host.State(key)
		if !ok {
			continue
		}
		name := state.ShortName
		if name == "" {
			name = key
		}
		line := hotlistMarker(state.Hotlist) + " " + name
		if i == v.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(normalStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func hotlistMarker(t host.Tier) string {
	switch t {
	case host.TierPrivate:
		return lipgloss.NewStyle().Foreground(alertColor).Render("!")
	case host.TierMessage:
		return lipgloss.NewStyle().Foreground(warningColor).Render("+")
	default:
		return " "
	}
}

func (v viewer) buildNicklist() string {
	state, ok := v.current()
	if !ok || !state.NicklistEnabled {
		return ""
	}

	groupColors := make(map[string]string, len(state.Groups))
	for _, g := range state.Groups {
		groupColors[g.Name] = g.Color
	}

	var b strings.Builder
	group := "\x00"
	for _, entry := range state.Nicks {
		if entry.Group != group {
			group = entry.Group
			if group != "" {
				b.WriteString(lipgloss.NewStyle().
					Foreground(termColor(groupColors[group])).
					Bold(true).
					Render(groupLabel(group)))
				b.WriteString("\n")
			}
		}
		b.WriteString(entry.Nick.Prefix)
		b.WriteString(lipgloss.NewStyle().Foreground(termColor(entry.Nick.Color)).Render(entry.Nick.Name))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// groupLabel strips the "NNNNN|" sort prefix from a nicklist group name
func groupLabel(name string) string {
	if _, label, ok := strings.Cut(name, "|"); ok {
		return label
	}
	return name
}

// termColor maps nicklist color names onto terminal colors
func termColor(name string) lipgloss.TerminalColor {
	switch name {
	case "", "default":
		return lipgloss.NoColor{}
	case "gray", "grey":
		return mutedColor
	}
	if strings.HasPrefix(name, "#") {
		return lipgloss.Color(name)
	}
	return lipgloss.NoColor{}
}

func (v viewer) View() string {
	if v.width == 0 {
		return "Loading..."
	}

	title := "guildbuf"
	if state, ok := v.current(); ok && state.Title != "" {
		title = state.Title
	}
	header := lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Render(title)

	layout := flexbox.NewHorizontal(v.width, v.height-2)
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Height(v.lines.Height)

	listCol := layout.NewColumn().AddCells(
		flexbox.NewCell(1, 1).
			SetStyle(pane.Width(v.listWidth())).
			SetContent(v.buildList()),
	)
	linesCol := layout.NewColumn().AddCells(
		flexbox.NewCell(3, 1).
			SetStyle(pane.BorderForeground(primaryColor)).
			SetContent(v.lines.View()),
	)
	nickCol := layout.NewColumn().AddCells(
		flexbox.NewCell(1, 1).
			SetStyle(pane.Width(v.nickWidth())).
			SetContent(v.buildNicklist()),
	)
	layout.AddColumns([]*flexbox.Column{listCol, linesCol, nickCol})

	footer := lipgloss.NewStyle().Foreground(mutedColor).
		Render("↑/↓ select  enter open  r refresh  p pins  R resume  m reload members  q quit")
	if v.status != "" {
		footer = v.status + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		layout.Render(),
		footer,
	)
}
