package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

// Dataset is the backend's description of the active upload. It is replaced
// wholesale on every upload and never mutated in place.
type Dataset struct {
	ID          string            `json:"id" yaml:"id"`
	Filename    string            `json:"filename" yaml:"filename"`
	RowCount    int               `json:"rows" yaml:"rows"`
	Columns     []string          `json:"columns" yaml:"columns"`
	ColumnTypes map[string]string `json:"column_types,omitempty" yaml:"column_types,omitempty"`
	Preview     []map[string]any  `json:"preview,omitempty" yaml:"preview,omitempty"`
}

func (d *Dataset) Validate() error {
	if d == nil {
		return errors.New("dataset is nil")
	}
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("dataset id is empty")
	}
	if d.RowCount < 0 {
		return errors.Errorf("dataset row count is negative: %d", d.RowCount)
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for i, c := range d.Columns {
		if c == "" {
			return errors.Errorf("column %d has an empty name", i)
		}
		if _, ok := seen[c]; ok {
			return errors.Errorf("column %q appears more than once", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Welcome is the synthesized first assistant message of a new conversation.
func (d *Dataset) Welcome() string {
	var b strings.Builder
	fmt.Fprintf(&b, "I've loaded **%s**: %s and %s.", d.Filename, plural(d.RowCount, "row"), plural(len(d.Columns), "column"))
	if len(d.Columns) > 0 {
		fmt.Fprintf(&b, "\n\nColumns: %s.", strings.Join(d.Columns, ", "))
	}
	b.WriteString("\n\nAsk me about trends, outliers or comparisons, or ask for a chart.")
	return b.String()
}

var (
	previewHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	previewCellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

// PreviewTable renders at most n preview rows as aligned columns.
func (d *Dataset) PreviewTable(n int) string {
	if d == nil || len(d.Columns) == 0 {
		return ""
	}
	rows := d.Preview
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}

	widths := make([]int, len(d.Columns))
	cells := make([][]string, len(rows))
	for i, c := range d.Columns {
		widths[i] = lipgloss.Width(c)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(d.Columns))
		for i, c := range d.Columns {
			v := ""
			if raw, ok := row[c]; ok && raw != nil {
				v = fmt.Sprint(raw)
			}
			cells[r][i] = v
			if w := lipgloss.Width(v); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	header := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		header[i] = previewHeaderStyle.Width(widths[i]).Render(c)
	}
	b.WriteString(strings.Join(header, "  "))
	for _, row := range cells {
		b.WriteString("\n")
		line := make([]string, len(row))
		for i, v := range row {
			line[i] = previewCellStyle.Width(widths[i]).Render(v)
		}
		b.WriteString(strings.Join(line, "  "))
	}
	return b.String()
}

// TypeSummary lists "column: type" pairs in column order, falling back to
// alphabetical order for types reported for unknown columns.
func (d *Dataset) TypeSummary() []string {
	out := make([]string, 0, len(d.ColumnTypes))
	seen := map[string]bool{}
	for _, c := range d.Columns {
		if t, ok := d.ColumnTypes[c]; ok {
			out = append(out, c+": "+t)
			seen[c] = true
		}
	}
	var rest []string
	for c := range d.ColumnTypes {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, c+": "+d.ColumnTypes[c])
	}
	return out
}
