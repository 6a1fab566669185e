package theme

import "github.com/charmbracelet/lipgloss"

// Palette, Catppuccin Mocha.
var (
	ColorOverlay0 = lipgloss.Color("#6c7086")
	ColorText     = lipgloss.Color("#cdd6f4")
	ColorSubtext0 = lipgloss.Color("#a6adc8")

	ColorRed      = lipgloss.Color("#f38ba8")
	ColorGreen    = lipgloss.Color("#a6e3a1")
	ColorYellow   = lipgloss.Color("#f9e2af")
	ColorBlue     = lipgloss.Color("#89b4fa")
	ColorMauve    = lipgloss.Color("#cba6f7")
	ColorPeach    = lipgloss.Color("#fab387")
	ColorLavender = lipgloss.Color("#b4befe")
)

var (
	Title   = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
	Label   = lipgloss.NewStyle().Foreground(ColorLavender).Bold(true)
	Dim     = lipgloss.NewStyle().Foreground(ColorOverlay0)
	Text    = lipgloss.NewStyle().Foreground(ColorText)
	Spinner = lipgloss.NewStyle().Foreground(ColorBlue)
	Error   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
)

// Outcome badge styles.
var (
	StatusOK       = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	StatusFailed   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	StatusTimedOut = lipgloss.NewStyle().Foreground(ColorPeach).Bold(true)
	StatusPending  = lipgloss.NewStyle().Foreground(ColorYellow)
	StatusUnknown  = lipgloss.NewStyle().Foreground(ColorSubtext0)
)

// Badge renders status as a bracketed, colored label.
func Badge(status string) string {
	var st lipgloss.Style
	switch status {
	case "ok", "success", "complete", "completed":
		st = StatusOK
	case "failed", "failure", "error", "killed", "not_installed", "not_logged_in", "probe_failed":
		st = StatusFailed
	case "timed_out", "timeout":
		st = StatusTimedOut
	case "running", "pending", "partial":
		st = StatusPending
	default:
		st = StatusUnknown
	}
	return st.Render("[" + status + "]")
}
