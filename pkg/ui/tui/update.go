package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"smdl/pkg/ui"
)

// Message types for the TUI

// RunStartedMsg is sent once the album selection is known
type RunStartedMsg struct {
	Username string
	Albums   int
}

// AlbumStartedMsg is sent before an album's items are queued
type AlbumStartedMsg struct {
	Album string
	Index int
	Total int
	Items int
}

// ItemFinishedMsg is sent for every media item outcome
type ItemFinishedMsg struct {
	Album  string
	File   string
	Status string
	Bytes  int64
	Err    error
}

// AlbumFinishedMsg is sent after an album's pool has drained
type AlbumFinishedMsg struct {
	Album  string
	Counts ui.Counts
}

// RunFinishedMsg is sent once at the end of the run
type RunFinishedMsg struct {
	Counts  ui.Counts
	Elapsed time.Duration
	Err     error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh elapsed time
type TickMsg time.Time

// lingerAfterFinish keeps the final screen visible before exiting
const lingerAfterFinish = 1500 * time.Millisecond

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case RunStartedMsg:
		m.StartRun(msg.Username, msg.Albums)
		m.AddLogMessage(ui.LevelInfo, "Mirroring "+msg.Username)
		return m, nil

	case AlbumStartedMsg:
		m.StartAlbum(msg.Album, msg.Index, msg.Total, msg.Items)
		return m, nil

	case ItemFinishedMsg:
		m.FinishItem(msg.Album, msg.File, msg.Status, msg.Bytes, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage(ui.LevelError, "Failed: "+msg.File+" - "+msg.Err.Error())
		}
		return m, nil

	case AlbumFinishedMsg:
		m.FinishAlbum(msg.Album, msg.Counts)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case RunFinishedMsg:
		m.FinishRun(msg.Counts, msg.Elapsed, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage(ui.LevelError, msg.Err.Error())
		} else {
			m.AddLogMessage(ui.LevelSuccess, "Run complete: "+msg.Counts.String())
		}
		return m, tea.Tick(lingerAfterFinish, func(time.Time) tea.Msg { return tea.Quit() })
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
