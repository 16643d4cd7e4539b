package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// linesPerItem is the number of terminal lines each result occupies.
const linesPerItem = 2

// renderList renders the left panel: search results list with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.results) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No results")
		return empty
	}

	var lines []string
	for i, it := range m.results {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		rows := formatResultLine(it, width, i == m.cursor)
		lines = append(lines, rows...)
	}

	// Pad remaining lines
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}

	return strings.Join(lines, "\n")
}

// formatResultLine formats a single list item as two lines:
//
//	line 1: [>] agent  MM-DD  title
//	line 2:    role: snippet (dimmed)
func formatResultLine(it item, width int, selected bool) []string {
	agent := it.Agent
	if agent == "" {
		agent = "?"
	}
	agent = runewidth.Truncate(agent, 8, "")
	agentCol := styleAgent.Render(runewidth.FillRight(agent, 8))

	// short date from the timestamp (e.g. "2026-01-27T..." -> "01-27")
	date := it.When
	if len(date) >= 10 {
		date = date[5:10]
	}
	date = runewidth.FillRight(date, 5)

	title := strings.ReplaceAll(it.Title, "\n", " ")
	if title == "" {
		title = "(untitled)"
	}
	titleMax := width - 2 - 9 - 6 // prefix + agent + date
	if titleMax < 0 {
		titleMax = 0
	}
	if runewidth.StringWidth(title) > titleMax {
		title = runewidth.Truncate(title, titleMax, "")
	}

	line1 := fmt.Sprintf("%s %s %s", agentCol, date, title)
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	snippet := strings.Join(strings.Fields(it.Snippet), " ")
	snippet = strings.ReplaceAll(snippet, ">>>", "")
	snippet = strings.ReplaceAll(snippet, "<<<", "")
	prefix := ""
	if it.Turn >= 0 {
		role := it.Role
		if role == "" {
			role = "?"
		}
		prefix = styleRole.Render(fmt.Sprintf("#%d %s:", it.Turn, role)) + " "
	}
	snippetMax := width - 4 - lipgloss.Width(prefix)
	if snippetMax < 0 {
		snippetMax = 0
	}
	if runewidth.StringWidth(snippet) > snippetMax {
		snippet = runewidth.Truncate(snippet, snippetMax, "")
	}
	line2 := "    " + prefix + lipgloss.NewStyle().Foreground(colorDim).Render(snippet)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
