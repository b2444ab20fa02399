package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/gallery"
)

// SetSidebarSizeMsg informs the sidebar of its width
type SetSidebarSizeMsg struct {
	Width int
}

// SetChartsMsg replaces the charts shown in the gallery.
type SetChartsMsg struct {
	Charts []charts.Chart
}

// SidebarModel is the chart gallery pane. It shows one chart at a time;
// ctrl+n and ctrl+p move through the published set.
type SidebarModel struct {
	width    int
	charts   []charts.Chart
	selected int
}

func NewSidebarModel() SidebarModel {
	return SidebarModel{width: 24}
}

func (m SidebarModel) Init() tea.Cmd { return nil }

func (m SidebarModel) Update(msg tea.Msg) (SidebarModel, tea.Cmd) {
	switch ev := msg.(type) {
	case SetSidebarSizeMsg:
		if ev.Width > 0 {
			m.width = ev.Width
		}
	case SetChartsMsg:
		m.charts = ev.Charts
		m.selected = 0
	case tea.KeyMsg:
		if len(m.charts) == 0 {
			return m, nil
		}
		switch ev.String() {
		case "ctrl+n":
			m.selected = (m.selected + 1) % len(m.charts)
		case "ctrl+p":
			m.selected = (m.selected + len(m.charts) - 1) % len(m.charts)
		}
	}
	return m, nil
}

func (m SidebarModel) Selected() (charts.Chart, bool) {
	if len(m.charts) == 0 {
		return charts.Chart{}, false
	}
	return m.charts[m.selected], true
}

func (m SidebarModel) Len() int {
	return len(m.charts)
}

func (m SidebarModel) View() string {
	title := subHeaderStyle.Render("Charts (Ctrl+G)")
	if len(m.charts) == 0 {
		return lipgloss.NewStyle().Width(m.width).Render(title + "\nNo charts yet")
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d  ctrl+n/ctrl+p", m.selected+1, len(m.charts))))
	b.WriteString("\n\n")
	b.WriteString(gallery.Preview(m.charts[m.selected], m.width))
	b.WriteString("\n\n")
	for i, c := range m.charts {
		marker := "  "
		if i == m.selected {
			marker = "> "
		}
		b.WriteString(marker + gallery.Summary(c) + "\n")
	}
	return lipgloss.NewStyle().Width(m.width).Render(b.String())
}
