package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	trackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const barWidth = 40

// ProgressMsg updates the download state.
type ProgressMsg struct {
	Percent float64 // 0..100
	Speed   string
	ETA     int // seconds, negative when unknown
}

// DoneMsg signals a finished download.
type DoneMsg struct {
	Path string
}

// FailMsg signals a failed download.
type FailMsg struct {
	Err error
}

// DownloadModel is the bubbletea model for a single download
type DownloadModel struct {
	title   string
	percent float64
	speed   string
	eta     int
	path    string
	err     error
	done    bool

	cancelled bool
}

// NewDownloadModel creates a progress model titled after the media
func NewDownloadModel(title string) DownloadModel {
	return DownloadModel{title: title, eta: -1}
}

func (m DownloadModel) Init() tea.Cmd {
	return nil
}

func (m DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	case ProgressMsg:
		m.percent = msg.Percent
		m.speed = msg.Speed
		m.eta = msg.ETA
	case DoneMsg:
		m.done = true
		m.percent = 100
		m.path = msg.Path
		return m, tea.Quit
	case FailMsg:
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m DownloadModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	filled := int(m.percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		trackStyle.Render(strings.Repeat("░", barWidth-filled))
	b.WriteString(fmt.Sprintf("  %s %5.1f%%\n", bar, m.percent))

	switch {
	case m.err != nil:
		b.WriteString("\n  " + errStyle.Render("✗ "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n  " + metaStyle.Render("✓ saved to "+m.path) + "\n")
	default:
		meta := make([]string, 0, 2)
		if m.speed != "" {
			meta = append(meta, m.speed)
		}
		if m.eta >= 0 {
			meta = append(meta, "ETA "+formatETA(m.eta))
		}
		if len(meta) > 0 {
			b.WriteString("  " + metaStyle.Render(strings.Join(meta, "  ")) + "\n")
		}
		b.WriteString("\n  (q to cancel)\n")
	}

	return b.String()
}

// Cancelled reports whether the user aborted the download.
func (m DownloadModel) Cancelled() bool {
	return m.cancelled
}

// Err returns the failure reported to the model, if any.
func (m DownloadModel) Err() error {
	return m.err
}

func formatETA(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
