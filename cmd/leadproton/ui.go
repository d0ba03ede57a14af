package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leadproton/server/internal/model"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))

	badgeStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)

	statusColors = map[model.LeadStatus]lipgloss.Color{
		model.StatusNew:       "#2196F3",
		model.StatusContacted: "#FFC107",
		model.StatusReplied:   "#8BC34A",
		model.StatusNurturing: "#4db6ac",
		model.StatusClosed:    "#6b7280",
	}
)

// statusBadge renders a lead status as a colored label.
func statusBadge(s model.LeadStatus) string {
	color, ok := statusColors[s]
	if !ok {
		color = "#6b7280"
	}
	return badgeStyle.Foreground(color).Render(string(s))
}

// table renders rows in aligned columns under a styled header.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) String() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if style != nil {
				cell = style.Render(cell)
			}
			sb.WriteString(cell)
			if i < len(widths)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(t.headers, &headerStyle)
	for _, row := range t.rows {
		writeRow(row, nil)
	}
	return sb.String()
}
