// Package ui renders a live terminal view of a simulated board: LED, PWM
// duty, clock tree, power state and the UART tail.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RefreshInterval is how often the view re-reads the board state.
const RefreshInterval = 50 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#03234B")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(8)

	ledOnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#32CD32"))

	ledOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	uartStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type tickMsg time.Time

// DoneMsg tells the model the demo returned.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model of the watch view.
type Model struct {
	state    *BoardState
	snap     StateSnapshot
	duty     progress.Model
	uartRows int
	width    int
	quitting bool
}

// NewModel returns a model rendering state.
func NewModel(state *BoardState) *Model {
	return &Model{
		state:    state,
		snap:     state.Snapshot(),
		duty:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		uartRows: 8,
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 14
		if w > 60 {
			w = 60
		}
		if w > 10 {
			m.duty.Width = w
		}

	case tickMsg:
		m.snap = m.state.Snapshot()
		return m, tick()

	case DoneMsg:
		m.state.Finish(msg.Err)
		m.snap = m.state.Snapshot()
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap
	var b strings.Builder

	b.WriteString(titleStyle.Render("f4demo " + s.Demo))
	if s.Session != "" {
		b.WriteString(" ")
		b.WriteString(helpStyle.Render(s.Session))
	}
	b.WriteString("\n\n")

	led := ledOffStyle.Render("○ off")
	if s.LED {
		led = ledOnStyle.Render("● on")
	}
	row(&b, "LD2", led)
	row(&b, "PWM", fmt.Sprintf("%s %d/%d", m.duty.ViewAs(s.Duty()), s.Compare, s.Period))
	row(&b, "SYSCLK", fmt.Sprintf("%s %.1f MHz", s.Clock, float64(s.HCLK)/1e6))
	row(&b, "Power", fmt.Sprintf("%s  resets %d", s.Power, s.Resets))
	row(&b, "CAN", fmt.Sprintf("tx %d  rx %d", s.CANTx, s.CANRx))
	row(&b, "Status", s.Status)
	if s.LastError != nil {
		b.WriteString(errorStyle.Render("Error: " + s.LastError.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	tail := s.UART
	if len(tail) > m.uartRows {
		tail = tail[len(tail)-m.uartRows:]
	}
	lines := make([]string, m.uartRows)
	copy(lines, tail)
	b.WriteString(uartStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d events • q quit", s.Events)))
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}
