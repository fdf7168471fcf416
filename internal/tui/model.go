package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/servepulse/go-serve-pulse/internal/stats"
	"github.com/servepulse/go-serve-pulse/internal/timeseries"
)

// tickInterval is how often the display refreshes independent of stats
// snapshots, so the uptime counter stays live between pushes.
const tickInterval = 500 * time.Millisecond

// Controller is the subset of tracker operations the dashboard can
// trigger from a keypress.
type Controller interface {
	ClearClients()
}

// Config holds the static fields shown in the header plus the hooks the
// model needs.
type Config struct {
	Version    string
	ListenAddr string
	AdminAddr  string
	RootDir    string
	Window     time.Duration

	// Controller handles the 'c' (clear clients) key. Nil disables it.
	Controller Controller

	// StatsFn returns window statistics for the traffic panel. Nil
	// leaves the percentile row empty.
	StatsFn func() timeseries.Stats
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	cfg Config

	// Terminal dimensions
	width  int
	height int

	// Live state pushed by the aggregator
	clients     []stats.ClientInfo
	samples     []stats.TrafficSample
	windowStats timeseries.Stats
	fatalErr    error

	startTime time.Time
	paused    bool
	quitting  bool
}

// NewModel creates a dashboard model.
func NewModel(cfg Config) Model {
	return Model{
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// =============================================================================
// Messages
// =============================================================================

// ClientsMsg carries a client population snapshot.
type ClientsMsg []stats.ClientInfo

// TrafficMsg carries a sliding-window traffic snapshot.
type TrafficMsg []stats.TrafficSample

// FatalMsg reports that the aggregator failed permanently.
type FatalMsg struct {
	Err error
}

// TickMsg fires on the internal refresh timer.
type TickMsg time.Time

// QuitMsg asks the dashboard to exit.
type QuitMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init starts the refresh timer.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "c":
			if m.cfg.Controller != nil {
				m.cfg.Controller.ClearClients()
			}
			return m, nil
		case "p":
			m.paused = !m.paused
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ClientsMsg:
		if !m.paused {
			m.clients = msg
		}
		return m, nil

	case TrafficMsg:
		if !m.paused {
			m.samples = msg
			if m.cfg.StatsFn != nil {
				m.windowStats = m.cfg.StatsFn()
			}
		}
		return m, nil

	case FatalMsg:
		m.fatalErr = msg.Err
		return m, nil

	case TickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// =============================================================================
// Program Helpers
// =============================================================================

// SendClients pushes a client snapshot into a running program.
func SendClients(p *tea.Program, clients []stats.ClientInfo) {
	if p != nil {
		p.Send(ClientsMsg(clients))
	}
}

// SendTraffic pushes a traffic snapshot into a running program.
func SendTraffic(p *tea.Program, samples []stats.TrafficSample) {
	if p != nil {
		p.Send(TrafficMsg(samples))
	}
}

// SendFatal reports a terminal aggregator failure to the program.
func SendFatal(p *tea.Program, err error) {
	if p != nil {
		p.Send(FatalMsg{Err: err})
	}
}

// SendQuit asks the program to exit.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatBytes formats bytes in human-readable form (B, KB, MB, GB).
func formatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatRate formats a bytes-per-second rate.
func formatRate(bytesPerSec float64) string {
	return formatBytes(int64(bytesPerSec)) + "/s"
}
