package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column is a fixed-width table column
type Column struct {
	Header string
	Width  int
}

// Cell is one styled table value
type Cell struct {
	Text  string
	Style lipgloss.Style
}

// Table renders rows inside a rounded box
type Table struct {
	Columns []Column
	Rows    [][]Cell
}

// Plain returns an unstyled cell
func Plain(text string) Cell {
	return Cell{Text: text, Style: ValueStyle}
}

// Styled returns a cell rendered with style
func Styled(text string, style lipgloss.Style) Cell {
	return Cell{Text: text, Style: style}
}

// Indicated prefixes text with a state indicator
func Indicated(indicator, text string, style lipgloss.Style) Cell {
	return Cell{Text: indicator + " " + text, Style: style}
}

// AddRow appends a row; missing cells render empty
func (t *Table) AddRow(cells ...Cell) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) {
	var sb strings.Builder

	t.rule(&sb, TopLeft, TopT, TopRight)

	sb.WriteString(BorderStyle.Render(Vertical))
	for _, col := range t.Columns {
		sb.WriteString(HeaderStyle.Render(" " + padRight(col.Header, col.Width) + " "))
		sb.WriteString(BorderStyle.Render(Vertical))
	}
	sb.WriteString("\n")

	t.rule(&sb, LeftT, Cross, RightT)

	for _, row := range t.Rows {
		sb.WriteString(BorderStyle.Render(Vertical))
		for i, col := range t.Columns {
			cell := Plain("")
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(cell.Style.Render(" " + padRight(cell.Text, col.Width) + " "))
			sb.WriteString(BorderStyle.Render(Vertical))
		}
		sb.WriteString("\n")
	}

	t.rule(&sb, BottomLeft, BottomT, BottomRight)

	fmt.Fprint(w, sb.String())
}

func (t *Table) rule(sb *strings.Builder, left, mid, right string) {
	sb.WriteString(BorderStyle.Render(left))
	for i, col := range t.Columns {
		sb.WriteString(BorderStyle.Render(strings.Repeat(Horizontal, col.Width+2)))
		if i < len(t.Columns)-1 {
			sb.WriteString(BorderStyle.Render(mid))
		}
	}
	sb.WriteString(BorderStyle.Render(right))
	sb.WriteString("\n")
}

// summary writes "  <total> <noun> (a, b)" with the non-empty parts
func summary(w io.Writer, total int, noun string, parts []string) {
	line := fmt.Sprintf("  %d %s", total, noun)
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	fmt.Fprintln(w, line)
}

// countPart renders "<n> <label>" in style, or "" when n is zero
func countPart(n int, label string, style lipgloss.Style) string {
	if n == 0 {
		return ""
	}
	return style.Render(fmt.Sprintf("%d %s", n, label))
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
