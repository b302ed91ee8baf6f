package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestProgressUpdates(t *testing.T) {
	m := NewDownloadModel("Some Video")

	next, _ := m.Update(ProgressMsg{Percent: 42.5, Speed: "2.41MiB/s", ETA: 95})
	m = next.(DownloadModel)

	view := m.View()
	if !strings.Contains(view, "42.5%") {
		t.Errorf("view missing percent: %q", view)
	}
	if !strings.Contains(view, "2.41MiB/s") {
		t.Errorf("view missing speed: %q", view)
	}
	if !strings.Contains(view, "ETA 1:35") {
		t.Errorf("view missing eta: %q", view)
	}
}

func TestDoneQuits(t *testing.T) {
	m := NewDownloadModel("Some Video")

	next, cmd := m.Update(DoneMsg{Path: "/tmp/out.mp4"})
	m = next.(DownloadModel)

	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !strings.Contains(m.View(), "/tmp/out.mp4") {
		t.Errorf("view missing path: %q", m.View())
	}
	if m.Cancelled() {
		t.Error("done should not read as cancelled")
	}
}

func TestFailCarriesError(t *testing.T) {
	m := NewDownloadModel("Some Video")

	next, _ := m.Update(FailMsg{Err: errors.New("boom")})
	m = next.(DownloadModel)

	if m.Err() == nil || m.Err().Error() != "boom" {
		t.Errorf("Err() = %v, want boom", m.Err())
	}
	if !strings.Contains(m.View(), "boom") {
		t.Errorf("view missing error: %q", m.View())
	}
}

func TestQuitKeyCancels(t *testing.T) {
	m := NewDownloadModel("Some Video")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(DownloadModel)

	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !m.Cancelled() {
		t.Error("q should mark the model cancelled")
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{5, "0:05"},
		{95, "1:35"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatETA(tt.seconds); got != tt.want {
			t.Errorf("formatETA(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
