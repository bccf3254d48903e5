package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const progressBarWidth = 20

// ProgressDisplay renders one updating line per album on a plain terminal.
// In verbose mode every item gets its own line instead.
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	verbose  bool
	username string

	album      string
	albumIndex int
	albumTotal int
	items      int
	counts     Counts
	lineOpen   bool
}

// NewProgressDisplay creates a display writing to out
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{out: out, verbose: verbose}
}

func (p *ProgressDisplay) RunStarted(username string, albums int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.username = username
	p.albumTotal = albums
	fmt.Fprintf(p.out, "%s %s • %d albums selected\n", Magenta("→"), Cyan(username), albums)
}

func (p *ProgressDisplay) AlbumStarted(album string, index, total, items int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	p.album = album
	p.albumIndex = index
	p.albumTotal = total
	p.items = items
	p.counts = Counts{}

	if p.verbose {
		fmt.Fprintf(p.out, "%s [%d/%d] %s (%d items)\n", Magenta("→"), index, total, album, items)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) ItemFinished(album, file, status string, bytes int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Record(status, bytes)
	if !p.verbose {
		p.printProgress()
		return
	}

	switch status {
	case StatusDownloaded:
		fmt.Fprintf(p.out, "  %s %s • %s\n", Green("✓"), file, FormatBytes(bytes))
	case StatusSkipped:
		fmt.Fprintf(p.out, "  %s %s\n", Dim("="), Dim(file))
	case StatusFailed:
		fmt.Fprintf(p.out, "  %s %s - %v\n", Red("✗"), file, err)
	}
}

func (p *ProgressDisplay) AlbumFinished(album string, counts Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts = counts
	if !p.verbose {
		p.printProgress()
	}
	p.endLine()
}

func (p *ProgressDisplay) Message(level, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelError:
		fmt.Fprintf(p.out, "%s %s\n", Red("✗"), msg)
	case LevelWarn:
		fmt.Fprintf(p.out, "%s %s\n", Yellow("⚠"), msg)
	case LevelSuccess:
		fmt.Fprintf(p.out, "%s %s\n", Green("✓"), msg)
	default:
		fmt.Fprintf(p.out, "%s %s\n", Dim("•"), msg)
	}
}

func (p *ProgressDisplay) RunFinished(counts Counts, elapsed time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	if err != nil {
		fmt.Fprintf(p.out, "\n%s %s: %v\n", Red("✗"), p.username, err)
		return
	}

	fmt.Fprintf(p.out, "\n%s Mirrored %d albums from %s\n", Green("✓"), counts.Albums, Cyan(p.username))
	fmt.Fprintf(p.out, "  %s %d downloaded, %d already present • %s in %s\n",
		Dim("•"), counts.Downloaded, counts.Skipped, FormatBytes(counts.Bytes), formatDuration(elapsed))
	if counts.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d downloads failed", counts.Failed)))
	}
}

// printProgress redraws the album line in place
func (p *ProgressDisplay) printProgress() {
	done := p.counts.Items()
	line := fmt.Sprintf("[%d/%d] %s [%s] %d/%d • %s",
		p.albumIndex, p.albumTotal,
		Cyan(p.album),
		Bar(done, p.items, progressBarWidth),
		done, p.items,
		FormatBytes(p.counts.Bytes),
	)
	if p.counts.Skipped > 0 {
		line += " • " + Dim(fmt.Sprintf("%d skipped", p.counts.Skipped))
	}
	if p.counts.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.counts.Failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
	p.lineOpen = true
}

func (p *ProgressDisplay) endLine() {
	if p.lineOpen {
		fmt.Fprintln(p.out)
		p.lineOpen = false
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
