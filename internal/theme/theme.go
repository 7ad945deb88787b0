package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Progress bar gradient endpoints. bubbles/progress takes plain hex values.
const (
	GradientStart = "#5B9BD5"
	GradientEnd   = "#6BCB77"
)

// HeaderStyle is used for table headers and section titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// FeedTitleStyle renders the feed title in front of its progress bar.
var FeedTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// CounterStyle renders the "[pos / len]" counter.
var CounterStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ErrorStyle highlights failures.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed)

// SuccessStyle highlights completed feeds.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// PendingStyle marks feeds that are still being fetched.
var PendingStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Italic(true)

// DimmedStyle is for secondary text such as URLs and timestamps.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BorderStyle colors table borders.
var BorderStyle = lipgloss.NewStyle().
	Foreground(ColorBorder)

// OutcomeStyle returns the style for a feed result.
func OutcomeStyle(ok bool) lipgloss.Style {
	if ok {
		return SuccessStyle
	}
	return ErrorStyle
}
