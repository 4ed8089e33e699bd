package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/vietdv277/clusterbench/pkg/types"
)

const (
	selectorListHeight = 8
	selectorMinWidth   = 60
	selectorMaxWidth   = 120
)

// TargetGroupModel is a bubbletea model for picking a target group
type TargetGroupModel struct {
	groups       []types.TargetGroup
	filtered     []types.TargetGroup
	cursor       int
	offset       int
	search       string
	selected     *types.TargetGroup
	quitting     bool
	cancelled    bool
	contentWidth int
}

// NewTargetGroupModel creates a selector over groups
func NewTargetGroupModel(groups []types.TargetGroup) TargetGroupModel {
	m := TargetGroupModel{groups: groups, filtered: groups}
	m.resize(80)
	return m
}

func (m *TargetGroupModel) resize(termWidth int) {
	m.contentWidth = min(max(termWidth-2, selectorMinWidth), selectorMaxWidth)
}

// Init implements tea.Model
func (m TargetGroupModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update implements tea.Model
func (m TargetGroupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.cancelled = true
			return m, tea.Quit

		case tea.KeyEnter:
			if len(m.filtered) > 0 {
				m.selected = &m.filtered[m.cursor]
				m.quitting = true
				return m, tea.Quit
			}

		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				m.offset = min(m.offset, m.cursor)
			}

		case tea.KeyDown:
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				if m.cursor >= m.offset+selectorListHeight {
					m.offset = m.cursor - selectorListHeight + 1
				}
			}

		case tea.KeyBackspace:
			if len(m.search) > 0 {
				m.search = m.search[:len(m.search)-1]
				m.filter()
			}

		case tea.KeyRunes:
			m.search += string(msg.Runes)
			m.filter()
		}
	}
	return m, nil
}

func (m *TargetGroupModel) filter() {
	m.filtered = m.groups
	if m.search != "" {
		query := strings.ToLower(m.search)
		m.filtered = nil
		for _, tg := range m.groups {
			if strings.Contains(strings.ToLower(tg.Name), query) ||
				strings.Contains(strings.ToLower(tg.HealthCheckPath), query) {
				m.filtered = append(m.filtered, tg)
			}
		}
	}
	m.cursor = max(0, min(m.cursor, len(m.filtered)-1))
	m.offset = 0
}

// View implements tea.Model
func (m TargetGroupModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := m.contentWidth
	row := func(content string, plainWidth int) {
		sb.WriteString(BorderStyle.Render(Vertical))
		sb.WriteString(content)
		if plainWidth < w {
			sb.WriteString(strings.Repeat(" ", w-plainWidth))
		}
		sb.WriteString(BorderStyle.Render(Vertical))
		sb.WriteString("\n")
	}

	sb.WriteString(BorderStyle.Render(TopLeft + strings.Repeat(Horizontal, w) + TopRight))
	sb.WriteString("\n")
	search := " > " + m.search
	row(NameStyle.Render(search), runewidth.StringWidth(search))
	row("", 0)

	end := min(m.offset+selectorListHeight, len(m.filtered))
	for i := m.offset; i < end; i++ {
		tg := m.filtered[i]
		cursor := "   "
		if i == m.cursor {
			cursor = " > "
		}
		name := padRight(tg.Name, 32)
		port := padRight(tg.Protocol+":"+strconv.Itoa(tg.Port), 12)
		path := padRight(formatOptional(tg.HealthCheckPath), max(w-3-32-2-12-2, 8))
		line := cursor + NameStyle.Render(name) + "  " + MutedStyle.Render(port) + "  " + ValueStyle.Render(path)
		row(line, 3+32+2+12+2+runewidth.StringWidth(path))
	}
	for i := end - m.offset; i < selectorListHeight; i++ {
		row("", 0)
	}

	sb.WriteString(BorderStyle.Render(BottomLeft + strings.Repeat(Horizontal, w) + BottomRight))
	sb.WriteString("\n")

	count := fmt.Sprintf("  %d/%d target groups", len(m.filtered), len(m.groups))
	hints := "[Enter:select] [Esc:cancel]"
	pad := w + 2 - runewidth.StringWidth(count) - runewidth.StringWidth(hints)
	sb.WriteString(count + strings.Repeat(" ", max(pad, 1)) + HintStyle.Render(hints) + "\n")

	return sb.String()
}

// SelectTargetGroup displays an interactive selector and returns the chosen group
func SelectTargetGroup(groups []types.TargetGroup) (*types.TargetGroup, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no target groups available")
	}

	finalModel, err := tea.NewProgram(NewTargetGroupModel(groups)).Run()
	if err != nil {
		return nil, fmt.Errorf("error running selector: %w", err)
	}

	result := finalModel.(TargetGroupModel)
	if result.cancelled {
		return nil, fmt.Errorf("selection cancelled")
	}
	return result.selected, nil
}
