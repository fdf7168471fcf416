package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Until the first WindowSizeMsg arrives, dimensions are zero.
	if m.width == 0 {
		return "Loading..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())

	if m.fatalErr != nil {
		sections = append(sections, m.renderFatalBanner())
	}

	sections = append(sections, m.renderTrafficPanel())
	sections = append(sections, m.renderClientTable())
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	elapsed := time.Since(m.startTime)

	title := fmt.Sprintf(" go-serve-pulse %s ", m.cfg.Version)
	info := fmt.Sprintf("%s  •  root %s  •  up %s",
		m.cfg.ListenAddr,
		m.cfg.RootDir,
		formatDuration(elapsed),
	)

	header := title + "│ " + info
	if m.paused {
		header += "  " + statusWarning.Render("[PAUSED]")
	}

	return headerStyle.Width(m.width).Render(header)
}

func (m Model) renderFatalBanner() string {
	msg := fmt.Sprintf("✗ tracker failed: %v", m.fatalErr)
	return boxStyle.
		BorderForeground(colorError).
		Width(m.width - 2).
		Render(statusError.Render(msg))
}

// =============================================================================
// Traffic Panel
// =============================================================================

func (m Model) renderTrafficPanel() string {
	var b strings.Builder

	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Traffic (last %s)", m.cfg.Window)))
	b.WriteString("\n")

	values := make([]int64, len(m.samples))
	for i, s := range m.samples {
		values[i] = s.Bytes
	}

	// Sparkline spans the box interior, newest sample on the right.
	sparkWidth := m.width - 6
	if sparkWidth < 10 {
		sparkWidth = 10
	}
	if len(values) == 0 {
		b.WriteString(dimStyle.Render("waiting for samples..."))
	} else {
		b.WriteString(RenderSparkline(values, sparkWidth))
	}
	b.WriteString("\n\n")

	st := m.windowStats
	b.WriteString(RenderKeyValue("Current", formatRate(float64(st.LastBytes))))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Window total", formatBytes(st.WindowBytes)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Average", formatRate(st.WindowAvg)))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Peak", formatRate(float64(st.PeakBytes))))
	b.WriteString("\n")
	b.WriteString(RenderKeyValue("Percentiles", fmt.Sprintf(
		"p50 %s  p95 %s  p99 %s",
		formatRate(st.P50),
		formatRate(st.P95),
		formatRate(st.P99),
	)))

	return boxStyle.Width(m.width - 2).Render(b.String())
}

// =============================================================================
// Client Table
// =============================================================================

func (m Model) renderClientTable() string {
	var b strings.Builder

	slow, closing := 0, 0
	for _, c := range m.clients {
		switch statusForClient(c.Slow, c.Disconnected) {
		case clientSlow:
			slow++
		case clientClosing:
			closing++
		}
	}

	title := fmt.Sprintf("Clients (%d connected", len(m.clients)-closing)
	if slow > 0 {
		title += fmt.Sprintf(", %d slow", slow)
	}
	if closing > 0 {
		title += fmt.Sprintf(", %d closing", closing)
	}
	title += ")"

	b.WriteString(sectionHeaderStyle.Render(title))
	b.WriteString("\n")

	if len(m.clients) == 0 {
		b.WriteString(dimStyle.Render("no clients connected"))
		return boxStyle.Width(m.width - 2).Render(b.String())
	}

	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-8s %-24s %s",
		"ID", "REMOTE", "STATUS")))
	b.WriteString("\n")

	// Leave room for header, traffic panel, and footer.
	maxRows := m.height - 18
	if maxRows < 3 {
		maxRows = 3
	}

	shown := m.clients
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	for i, c := range shown {
		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}
		row := fmt.Sprintf("%-8d %-24s ", c.ID, c.RemoteAddr)
		b.WriteString(rowStyle.Render(row))
		b.WriteString(renderClientStatus(statusForClient(c.Slow, c.Disconnected)))
		if i < len(shown)-1 {
			b.WriteString("\n")
		}
	}

	if overflow := len(m.clients) - len(shown); overflow > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("... and %d more", overflow)))
	}

	return boxStyle.Width(m.width - 2).Render(b.String())
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"c: clear clients",
		"p: pause",
	}

	left := strings.Join(shortcuts, "  •  ")

	right := ""
	if m.cfg.AdminAddr != "" {
		right = fmt.Sprintf("metrics: http://%s/metrics", m.cfg.AdminAddr)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(left + strings.Repeat(" ", padding) + right)
}
