// Package tui renders a live view of a package manager run. The bubbletea
// tick drives the manager's poll loop, so the view and the state machines
// share one goroutine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is the model's result when the user quits before the run
// finished.
var ErrInterrupted = errors.New("interrupted")

// MsgPoll asks the model to advance the driver by one step.
type MsgPoll struct {
	Time time.Time
}

// Model is the bubbletea model of a package manager run.
type Model struct {
	ctx      context.Context
	driver   Driver
	interval time.Duration

	Spinner spinner.Model
	Rows    []Row
	Err     error
	Done    bool
	Width   int
	started time.Time
}

// NewModel creates a model that steps d every interval.
func NewModel(ctx context.Context, d Driver, interval time.Duration) Model {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(colorBlue)
	return Model{
		ctx:      ctx,
		driver:   d,
		interval: interval,
		Spinner:  s,
		Rows:     d.Snapshot(),
		started:  time.Now(),
	}
}

// Init starts the spinner and the poll tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.pollCmd())
}

func (m Model) pollCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return MsgPoll{Time: t}
	})
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.Done {
				m.Err = ErrInterrupted
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case MsgPoll:
		if m.Done || m.Err != nil {
			return m, nil
		}
		if err := m.ctx.Err(); err != nil {
			m.Err = err
			return m, tea.Quit
		}
		err := m.driver.Step(m.ctx)
		m.Rows = m.driver.Snapshot()
		if err != nil {
			m.Err = err
			return m, tea.Quit
		}
		if m.driver.Done() {
			m.Done = true
			return m, tea.Quit
		}
		return m, m.pollCmd()
	}
	return m, nil
}

// View renders the title, one row per input and output, and the outcome.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("ccgtools packages"))
	b.WriteString("\n")

	m.section(&b, "input", "Packages")
	m.section(&b, "output", "Outputs")

	switch {
	case m.Err != nil:
		b.WriteString(styleError.Render("error: " + m.Err.Error()))
		b.WriteString("\n")
	case m.Done:
		b.WriteString(styleRowDone.Render(fmt.Sprintf("%s all outputs up to date", iconDone)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) section(b *strings.Builder, kind, title string) {
	var rows []Row
	for _, r := range m.Rows {
		if r.Kind == kind {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Name))
	}
	b.WriteString(styleSection.Render(title))
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(b, "  %s %-*s  %s\n", m.icon(r.Phase), width, r.Name, styleState.Render(r.State))
	}
}

func (m Model) icon(p Phase) string {
	switch p {
	case PhaseWorking:
		return m.Spinner.View()
	case PhaseDone:
		return styleRowDone.Render(iconDone)
	case PhaseFailed:
		return styleRowFailed.Render(iconFailed)
	default:
		return styleRowWaiting.Render(iconWaiting)
	}
}
