package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

// Theme defines the color scheme for the live view.
type Theme struct {
	Primary lipgloss.Color // accent color
	Dim     lipgloss.Color // help and log text
	Alert   lipgloss.Color // non-zero error counters
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Box   lipgloss.Style
	Dim   lipgloss.Style
	Alert lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
		Alert: lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}

// Dashboard renders the progress of a stress run.
type Dashboard struct {
	Styles   Styles
	Scenario stress.Scenario
	// Logs returns recent log lines to show under the counters (optional)
	Logs func() []string
	// LogLines is the number of log lines shown
	LogLines int
}

// Render renders one frame for the snapshot, width columns wide.
func (d Dashboard) Render(s stress.Snapshot, width int) string {
	inner := max(width-4, 20)
	sc := d.Scenario

	title := d.Styles.Title.Render("ringbench") + " " +
		d.Styles.Dim.Render(fmt.Sprintf("[%s %s / %s]", sc.Mode, FormatDuration(s.Elapsed), FormatDuration(sc.Duration)))

	rate := 0.0
	if s.Elapsed > 0 {
		rate = float64(s.Writer.Bytes) / s.Elapsed.Seconds()
	}
	lines := []string{
		title,
		"",
		d.Styles.Label.Render("writer"),
		fmt.Sprintf("  %s written  %s  %s writes  %s timeouts",
			FormatBytes(s.Writer.Bytes), FormatRate(rate),
			FormatCount(s.Writer.Writes), FormatCount(s.Writer.Timeouts)),
		"",
		d.Styles.Label.Render("readers"),
	}
	for _, rd := range s.Readers {
		lines = append(lines, d.readerLine(rd))
	}

	if d.Logs != nil && d.LogLines > 0 {
		logs := d.Logs()
		if len(logs) > d.LogLines {
			logs = logs[len(logs)-d.LogLines:]
		}
		lines = append(lines, "", d.Styles.Label.Render("log"))
		for _, l := range logs {
			lines = append(lines, d.Styles.Dim.Render(truncate(l, inner)))
		}
	}

	return d.Styles.Box.Width(inner).Render(strings.Join(lines, "\n"))
}

func (d Dashboard) readerLine(rd stress.ReaderReport) string {
	disc := FormatCount(rd.Discontinuities)
	if rd.Discontinuities > 0 {
		disc = d.Styles.Alert.Render(disc)
	}
	return fmt.Sprintf("  #%d  %s read  %s wraps  %s laps  %s overruns  %s timeouts  %s discontinuities",
		rd.Reader, FormatBytes(rd.Bytes), FormatCount(rd.Wraps), FormatCount(rd.Laps),
		FormatCount(rd.Overruns), FormatCount(rd.Timeouts), disc)
}

// truncate cuts s to at most width cells, marking the cut with an
// ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	w := 0
	for i, r := range runes {
		rw := lipgloss.Width(string(r))
		if w+rw > width-1 {
			return string(runes[:i]) + "…"
		}
		w += rw
	}
	return s
}
