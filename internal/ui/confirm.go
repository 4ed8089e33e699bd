package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

const confirmWidth = 60

// ConfirmModel is a bubbletea model asking a yes/no question
type ConfirmModel struct {
	question  string
	details   []string
	yes       bool // highlighted choice
	confirmed bool
	quitting  bool
}

// NewConfirmModel creates a model with "No" highlighted
func NewConfirmModel(question string, details []string) ConfirmModel {
	return ConfirmModel{question: question, details: details}
}

// Init implements tea.Model
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.confirmed = m.yes
		m.quitting = true
		return m, tea.Quit
	case tea.KeyLeft, tea.KeyRight, tea.KeyTab:
		m.yes = !m.yes
	case tea.KeyRunes:
		switch strings.ToLower(string(key.Runes)) {
		case "y":
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit
		case "n", "q":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model
func (m ConfirmModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := confirmWidth

	sb.WriteString(BorderStyle.Render(TopLeft + strings.Repeat(Horizontal, w) + TopRight))
	sb.WriteString("\n")
	m.line(&sb, HeaderStyle.Render(padRight(" "+m.question, w)))
	for _, d := range m.details {
		m.line(&sb, MutedStyle.Render(padRight("   "+d, w)))
	}
	m.line(&sb, strings.Repeat(" ", w))

	no, yes := " No ", " Yes "
	if m.yes {
		yes = GoodStyle.Bold(true).Render("[Yes]")
		no = MutedStyle.Render(no)
	} else {
		no = BadStyle.Bold(true).Render("[No]")
		yes = MutedStyle.Render(yes)
	}
	buttons := "   " + no + "  " + yes
	plain := 3 + 4 + 2 + 5
	m.line(&sb, buttons+strings.Repeat(" ", w-plain))

	sb.WriteString(BorderStyle.Render(BottomLeft + strings.Repeat(Horizontal, w) + BottomRight))
	sb.WriteString("\n")

	hints := "[y/n] [←/→:toggle] [Enter:choose]"
	sb.WriteString(strings.Repeat(" ", max(0, w+2-runewidth.StringWidth(hints))))
	sb.WriteString(HintStyle.Render(hints))
	sb.WriteString("\n")
	return sb.String()
}

func (m ConfirmModel) line(sb *strings.Builder, content string) {
	sb.WriteString(BorderStyle.Render(Vertical))
	sb.WriteString(content)
	sb.WriteString(BorderStyle.Render(Vertical))
	sb.WriteString("\n")
}

// Confirmed reports the user's answer
func (m ConfirmModel) Confirmed() bool {
	return m.confirmed
}

// Confirm asks question interactively and reports whether the user accepted
func Confirm(question string, details []string) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(question, details))

	finalModel, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("error running prompt: %w", err)
	}

	return finalModel.(ConfirmModel).Confirmed(), nil
}
