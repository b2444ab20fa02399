package gallery

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/datalens/pkg/charts"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	descStyle  = lipgloss.NewStyle().Faint(true).Italic(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	nameStyle  = lipgloss.NewStyle().Underline(true)
	barColors  = []lipgloss.Color{"39", "212", "114", "214", "141", "203"}
)

// Summary is the one-line gallery entry for a chart.
func Summary(c charts.Chart) string {
	title := c.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("%s (%s, %d series)", title, c.Kind, len(c.Series))
}

// Preview draws c as horizontal text bars no wider than width cells.
func Preview(c charts.Chart, width int) string {
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	if c.Title != "" {
		b.WriteString(titleStyle.Render(truncate(c.Title, width)))
		b.WriteString("\n")
	}
	if c.Description != "" {
		b.WriteString(descStyle.Width(width).Render(c.Description))
		b.WriteString("\n")
	}

	for si, s := range c.Series {
		if len(c.Series) > 1 && s.Name != "" {
			b.WriteString(nameStyle.Render(truncate(s.Name, width)))
			b.WriteString("\n")
		}
		if s.IsPoints() {
			b.WriteString(pointSummary(s))
			b.WriteString("\n")
			continue
		}
		b.WriteString(bars(c.Labels, s.Values, width, barColors[si%len(barColors)]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func bars(labels []string, values []float64, width int, color lipgloss.Color) string {
	labelW := 0
	for i := range values {
		labelW = max(labelW, lipgloss.Width(labelAt(labels, i)))
	}
	labelW = min(labelW, width/3)

	formatted := make([]string, len(values))
	valueW := 0
	peak := 0.0
	for i, v := range values {
		formatted[i] = strconv.FormatFloat(v, 'g', 6, 64)
		valueW = max(valueW, len(formatted[i]))
		peak = math.Max(peak, math.Abs(v))
	}

	room := width - labelW - valueW - 2
	if room < 1 {
		room = 1
	}
	bar := lipgloss.NewStyle().Foreground(color)

	var b strings.Builder
	for i, v := range values {
		n := 0
		if peak > 0 {
			n = int(math.Round(math.Abs(v) / peak * float64(room)))
		}
		label := truncate(labelAt(labels, i), labelW)
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle.Render(label+strings.Repeat(" ", labelW-lipgloss.Width(label))),
			bar.Render(strings.Repeat("█", n)),
			formatted[i])
	}
	return b.String()
}

func pointSummary(s charts.Series) string {
	if len(s.Points) == 0 {
		return labelStyle.Render("no points")
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range s.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return labelStyle.Render(fmt.Sprintf("%d points, x %g..%g, y %g..%g", len(s.Points), minX, maxX, minY, maxY))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
