package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"interviewcap/capture"
	"interviewcap/hotkey"
)

// TUI message types
type ProgressMsg struct{ capture.Progress }
type SessionDoneMsg struct{ Result *capture.Result }
type tickMsg time.Time

type tuiModel struct {
	target     time.Duration
	progress   capture.Progress
	started    bool
	done       bool
	result     *capture.Result
	frame      int
	width      int
	modeLine   string // "[flac | groq (en)]"
	deviceLine string
	camera     bool
	stopping   bool

	stop  func() // ends recording early, session still finalizes
	abort func() // cancels the session
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	finStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp     = helpStyle.Bold(true)
	barFull      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	barEmpty     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

func newTUIModel(target time.Duration, stop, abort func()) tuiModel {
	return tuiModel{target: target, stop: stop, abort: abort}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.abort != nil {
				m.abort()
			}
		case "s", " ", "space", "enter":
			if !m.stopping && m.stop != nil {
				m.stopping = true
				m.stop()
			}
		case "q", "esc":
			if m.done {
				return m, tea.Quit
			}
		}

	case tickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tuiTick()

	case ProgressMsg:
		m.started = true
		m.progress = msg.Progress

	case SessionDoneMsg:
		m.done = true
		m.result = msg.Result
		return m, tea.Quit
	}
	return m, nil
}

func (m tuiModel) View() string {
	var lines []string
	p := m.progress

	switch {
	case m.done:
		lines = append(lines, idleStyle.Render("○ DONE"))
	case p.State == capture.StateFinalizing:
		dots := strings.Repeat(".", m.frame%4)
		lines = append(lines, finStyle.Render("◌ FINALIZING"+dots))
	case m.started:
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs / %.0fs", p.Elapsed.Seconds(), m.target.Seconds())))
	default:
		lines = append(lines, idleStyle.Render("○ STARTING"))
	}

	lines = append(lines, renderBar(p.Elapsed, m.target, m.barWidth()))

	if p.NoVoice && p.State == capture.StateRecording {
		lines = append(lines, warnStyle.Render("⚠ no voice detected, check your microphone"))
	}

	if m.modeLine != "" {
		lines = append(lines, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, dimStyle.Render(m.deviceLine))
	}
	stats := fmt.Sprintf("windows %d/%d", p.WindowsDone, p.WindowsDispatched)
	if m.camera {
		stats += fmt.Sprintf("  frames %d", p.FramesCaptured)
	}
	lines = append(lines, dimStyle.Render(stats))

	lines = append(lines, "")
	if p.Partial != "" {
		for _, l := range wrapText(p.Partial, max(m.barWidth(), 20)) {
			lines = append(lines, partialStyle.Render(l))
		}
	} else {
		lines = append(lines, idleStyle.Render("Listening..."))
	}

	lines = append(lines, "")
	lines = append(lines, boldHelp.Render("s")+helpStyle.Render(" or ")+boldHelp.Render(hotkey.Label)+
		helpStyle.Render(" to finish early, ")+boldHelp.Render("ctrl+c")+helpStyle.Render(" to abort"))
	lines = append(lines, helpStyle.Render("interviewcap "+version))

	return strings.Join(lines, "\n") + "\n"
}

func (m tuiModel) barWidth() int {
	if m.width <= 0 {
		return 40
	}
	return max(min(m.width-2, 72), 10)
}

func renderBar(elapsed, target time.Duration, width int) string {
	frac := 0.0
	if target > 0 {
		frac = min(max(elapsed.Seconds()/target.Seconds(), 0), 1)
	}
	full := int(frac * float64(width))
	return barFull.Render(strings.Repeat("█", full)) + barEmpty.Render(strings.Repeat("░", width-full))
}
