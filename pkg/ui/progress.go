package ui

import (
	"fmt"
	"strings"
)

// Item outcomes as reported to ItemFinished
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// Counts tallies item outcomes for an album or a whole run
type Counts struct {
	Albums     int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Record adds one item outcome
func (c *Counts) Record(status string, bytes int64) {
	switch status {
	case StatusDownloaded:
		c.Downloaded++
		c.Bytes += bytes
	case StatusSkipped:
		c.Skipped++
	case StatusFailed:
		c.Failed++
	}
}

// Add merges other into c
func (c *Counts) Add(other Counts) {
	c.Albums += other.Albums
	c.Downloaded += other.Downloaded
	c.Skipped += other.Skipped
	c.Failed += other.Failed
	c.Bytes += other.Bytes
}

// Items is the number of items with an outcome
func (c Counts) Items() int {
	return c.Downloaded + c.Skipped + c.Failed
}

func (c Counts) String() string {
	return fmt.Sprintf("%d albums, %d downloaded, %d skipped, %d failed (%s)",
		c.Albums, c.Downloaded, c.Skipped, c.Failed, FormatBytes(c.Bytes))
}

// Bar renders a fixed-width progress bar for done out of total
func Bar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
