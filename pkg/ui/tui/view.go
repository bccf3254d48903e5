package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"smdl/pkg/ui"
)

const logo = `
┌───────────────────────────────────────┐
│  ███████╗███╗   ███╗██████╗ ██╗       │
│  ██╔════╝████╗ ████║██╔══██╗██║       │
│  ███████╗██╔████╔██║██║  ██║██║       │
│  ╚════██║██║╚██╔╝██║██║  ██║██║       │
│  ███████║██║ ╚═╝ ██║██████╔╝███████╗  │
│  ╚══════╝╚═╝     ╚═╝╚═════╝ ╚══════╝  │
└───────────────────────────────────────┘`

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.quitting && !m.done {
		return "Stopping after in-flight downloads...\n"
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(logo))

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderRunPanel(width),
		m.renderAlbumPanel(width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderRecentPanel(width),
		m.renderLogsPanel(width),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderRunPanel(width int) string {
	title := titleStyle.Render(" ACCOUNT ")

	status := m.spinner.View() + " mirroring"
	switch {
	case m.done && m.runErr != nil:
		status = errorStyle.Render("✗ failed")
	case m.done:
		status = successStyle.Render("✓ complete")
	}

	m.runBar.Width = max(width-8, 10)
	rows := []string{
		stat("User:", m.username),
		stat("Status:", status),
		stat("Albums:", fmt.Sprintf("%d/%d", m.totals.Albums, m.albumsTotal)),
		m.runBar.ViewAs(m.RunProgress()),
		stat("Downloaded:", fmt.Sprintf("%d files, %s", m.totals.Downloaded, ui.FormatBytes(m.totals.Bytes))),
		stat("Already present:", fmt.Sprintf("%d", m.totals.Skipped)),
		stat("Failed:", fmt.Sprintf("%d", m.totals.Failed)),
		stat("Elapsed:", formatDuration(m.Elapsed())),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderAlbumPanel(width int) string {
	title := titleStyle.Render(" CURRENT ALBUM ")
	if m.album == "" {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, logMessageStyle.Render("Listing albums...")),
		)
	}

	m.albumBar.Width = max(width-8, 10)
	rows := []string{
		stat(fmt.Sprintf("[%d/%d]", m.albumIndex, m.albumsTotal), m.album),
		m.albumBar.ViewAs(m.AlbumProgress()),
		fmt.Sprintf("%d/%d items • %d new • %d present • %d failed",
			m.albumCounts.Items(), m.albumItems,
			m.albumCounts.Downloaded, m.albumCounts.Skipped, m.albumCounts.Failed),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" RECENT ")
	if len(m.recent) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, logMessageStyle.Render("Nothing downloaded yet")),
		)
	}

	var items []string
	for i := len(m.recent) - 1; i >= 0; i-- {
		item := m.recent[i]
		if item.Status == ui.StatusFailed {
			items = append(items, itemFailedStyle.Render("✗ "+item.File))
			continue
		}
		items = append(items, itemStyle.Render(fmt.Sprintf("✓ %s %s", item.File, logMessageStyle.Render(ui.FormatBytes(item.Bytes)))))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(items, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := max(width-25, 10)
	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))
		msg := entry.Message
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = logMessageStyle.Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop after in-flight downloads
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status:
    ` + successStyle.Render("✓") + `        - Downloaded
    ` + warningStyle.Render("present") + `  - Already on disk, skipped
    ` + errorStyle.Render("✗") + `        - Failed after retries
`
	return panelStyle.Width(m.width).Render(help)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
