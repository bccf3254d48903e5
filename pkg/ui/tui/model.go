package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smdl/pkg/ui"
)

// ItemLine is one finished media item shown in the recent list
type ItemLine struct {
	Album  string
	File   string
	Status string
	Bytes  int64
	Err    error
	Time   time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model of a download run. It is only touched from
// the program's event loop, so it needs no locking.
type Model struct {
	spinner  spinner.Model
	albumBar progress.Model
	runBar   progress.Model

	username    string
	albumsTotal int
	albumIndex  int
	album       string
	albumItems  int
	albumCounts ui.Counts
	totals      ui.Counts

	recent         []ItemLine
	maxRecent      int
	logMessages    []LogMessage
	maxLogMessages int

	startTime time.Time
	elapsed   time.Duration
	done      bool
	runErr    error
	quitting  bool

	width    int
	height   int
	showHelp bool
}

// NewModel creates an empty model
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		spinner:        s,
		albumBar:       progress.New(progress.WithDefaultGradient()),
		runBar:         progress.New(progress.WithGradient(string(neonMagenta), string(neonCyan))),
		maxRecent:      8,
		maxLogMessages: 50,
		startTime:      time.Now(),
	}
}

// Init starts the spinner and the refresh tick
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartRun records the account and number of selected albums
func (m *Model) StartRun(username string, albums int) {
	m.username = username
	m.albumsTotal = albums
	m.startTime = time.Now()
}

// StartAlbum switches the model to a new album
func (m *Model) StartAlbum(album string, index, total, items int) {
	m.album = album
	m.albumIndex = index
	m.albumsTotal = total
	m.albumItems = items
	m.albumCounts = ui.Counts{}
}

// FinishItem records the outcome of one media item
func (m *Model) FinishItem(album, file, status string, bytes int64, err error) {
	m.albumCounts.Record(status, bytes)
	m.totals.Record(status, bytes)

	if status == ui.StatusSkipped {
		return
	}
	m.recent = append(m.recent, ItemLine{
		Album:  album,
		File:   file,
		Status: status,
		Bytes:  bytes,
		Err:    err,
		Time:   time.Now(),
	})
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

// FinishAlbum closes the current album
func (m *Model) FinishAlbum(album string, counts ui.Counts) {
	m.albumCounts = counts
	m.totals.Albums++
}

// FinishRun freezes the model with the final result
func (m *Model) FinishRun(counts ui.Counts, elapsed time.Duration, err error) {
	m.totals = counts
	m.elapsed = elapsed
	m.runErr = err
	m.done = true
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case ui.LevelError:
		color = neonRed
	case ui.LevelWarn:
		color = neonOrange
	case ui.LevelSuccess:
		color = neonGreen
	case ui.LevelInfo:
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// AlbumProgress is the fraction of the current album that is done
func (m *Model) AlbumProgress() float64 {
	return fraction(m.albumCounts.Items(), m.albumItems)
}

// RunProgress is the fraction of selected albums that are done
func (m *Model) RunProgress() float64 {
	return fraction(m.totals.Albums, m.albumsTotal)
}

// Elapsed is the run time so far, or the final duration once done
func (m *Model) Elapsed() time.Duration {
	if m.done {
		return m.elapsed
	}
	return time.Since(m.startTime)
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
