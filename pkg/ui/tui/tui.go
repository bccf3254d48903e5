package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"smdl/pkg/ui"
)

// TUI runs the bubbletea program and receives run events as a ui.Observer
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ ui.Observer = (*TUI)(nil)

// New creates a TUI. Without options it takes over the alternate screen.
func New(opts ...tea.ProgramOption) *TUI {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	model := NewModel()
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// Run blocks until the user quits or the run has finished
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit stops the program
func (t *TUI) Quit() {
	t.program.Quit()
}

// Interrupted reports whether the user asked to stop before the run ended
func (t *TUI) Interrupted() bool {
	return t.model.quitting && !t.model.done
}

func (t *TUI) RunStarted(username string, albums int) {
	t.program.Send(RunStartedMsg{Username: username, Albums: albums})
}

func (t *TUI) AlbumStarted(album string, index, total, items int) {
	t.program.Send(AlbumStartedMsg{Album: album, Index: index, Total: total, Items: items})
}

func (t *TUI) ItemFinished(album, file, status string, bytes int64, err error) {
	t.program.Send(ItemFinishedMsg{Album: album, File: file, Status: status, Bytes: bytes, Err: err})
}

func (t *TUI) AlbumFinished(album string, counts ui.Counts) {
	t.program.Send(AlbumFinishedMsg{Album: album, Counts: counts})
}

func (t *TUI) Message(level, format string, args ...interface{}) {
	t.program.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) RunFinished(counts ui.Counts, elapsed time.Duration, err error) {
	t.program.Send(RunFinishedMsg{Counts: counts, Elapsed: elapsed, Err: err})
}

// LogWriter returns a writer for zerolog JSON events that shows each event
// in the log panel, keeping the console free while the TUI owns it.
func (t *TUI) LogWriter() io.Writer {
	return &logWriter{send: t.program.Send}
}

type logWriter struct {
	send func(tea.Msg)
}

func (w *logWriter) Write(p []byte) (int, error) {
	if msg, ok := parseLogEvent(p); ok {
		w.send(msg)
	}
	return len(p), nil
}

// parseLogEvent turns one zerolog JSON line into a LogMsg
func parseLogEvent(p []byte) (LogMsg, bool) {
	var event map[string]interface{}
	if err := json.Unmarshal(p, &event); err != nil {
		return LogMsg{}, false
	}

	level, _ := event["level"].(string)
	message, _ := event["message"].(string)
	if message == "" {
		return LogMsg{}, false
	}

	switch strings.ToLower(level) {
	case "warn":
		level = ui.LevelWarn
	case "error", "fatal", "panic":
		level = ui.LevelError
	default:
		level = ui.LevelInfo
	}

	for _, key := range []string{"album", "file", "error"} {
		if v, ok := event[key]; ok {
			message += fmt.Sprintf(" %s=%v", key, v)
		}
	}
	return LogMsg{Level: level, Message: message}, true
}
