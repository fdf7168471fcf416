// Package tui provides a live terminal dashboard for the file server.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It displays real-time state including:
// - Connected clients with slow/disconnecting flags
// - Sliding-window traffic history as a sparkline
// - Throughput statistics and percentiles
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

// Colors based on a modern dark theme
var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	// Box/panel styles
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	// Section header style
	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder).
				MarginTop(1)

	// Footer style
	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	// Numeric value styles
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	// Label styles
	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(20)
)

// =============================================================================
// Sparkline Styles
// =============================================================================

var (
	sparklineStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	sparklineEmptyStyle = lipgloss.NewStyle().
				Foreground(colorBorder)
)

// =============================================================================
// Table Styles
// =============================================================================

var (
	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	tableRowEvenStyle = lipgloss.NewStyle().
				Foreground(colorText)

	tableRowOddStyle = lipgloss.NewStyle().
				Foreground(colorTextMuted)
)

// =============================================================================
// Client Status Indicator
// =============================================================================

// clientStatus describes a client row for display.
type clientStatus int

const (
	clientActive clientStatus = iota
	clientSlow
	clientClosing
)

func (s clientStatus) String() string {
	switch s {
	case clientSlow:
		return "slow"
	case clientClosing:
		return "closing"
	default:
		return "active"
	}
}

// statusForClient maps the sticky flags to a display status. The
// disconnected flag wins: a slow client that left shows as closing.
func statusForClient(slow, disconnected bool) clientStatus {
	switch {
	case disconnected:
		return clientClosing
	case slow:
		return clientSlow
	default:
		return clientActive
	}
}

// renderClientStatus returns the styled status cell.
func renderClientStatus(s clientStatus) string {
	switch s {
	case clientSlow:
		return statusWarning.Render("● slow")
	case clientClosing:
		return dimStyle.Render("○ closing")
	default:
		return statusOK.Render("● active")
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// sparklineLevels are the eighth-block characters from empty to full.
var sparklineLevels = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline renders byte counts as a fixed-height sparkline. The
// newest value is rightmost. A zero max renders all-empty.
func RenderSparkline(values []int64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}

	// Keep the newest samples when there are more than fit.
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var max int64
	for _, v := range values {
		if v > max {
			max = v
		}
	}

	out := make([]rune, 0, len(values))
	empty := 0
	for _, v := range values {
		if max == 0 || v <= 0 {
			out = append(out, sparklineLevels[0])
			empty++
			continue
		}
		idx := int(v * int64(len(sparklineLevels)-1) / max)
		out = append(out, sparklineLevels[idx])
	}

	if empty == len(values) {
		return sparklineEmptyStyle.Render(string(out))
	}
	return sparklineStyle.Render(string(out))
}
