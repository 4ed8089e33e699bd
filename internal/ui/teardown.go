package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vietdv277/clusterbench/pkg/types"
)

// PrintTeardownPlan prints the resources a teardown would delete, in deletion order
func PrintTeardownPlan(w io.Writer, plan types.TeardownPlan) {
	steps := plan.Steps()
	if len(steps) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("  nothing to delete"))
		return
	}

	t := Table{Columns: []Column{{"#", 4}, {"Kind", 22}, {"Name", 30}, {"ID", 48}}}
	for i, s := range steps {
		name := s.Name
		if !s.Parent.IsZero() {
			name = "  on " + s.Parent.ID()
		}
		t.AddRow(
			Styled(strconv.Itoa(i+1), MutedStyle),
			Plain(string(s.Handle.Kind())),
			Styled(name, NameStyle),
			Styled(s.Handle.ID(), IDStyle),
		)
	}
	t.Render(w)
	fmt.Fprintf(w, "  %d resources discovered at %s\n", len(steps), plan.DiscoveredAt.Format(time.RFC3339))
}

// PrintTeardownReport prints per-kind teardown outcomes
func PrintTeardownReport(w io.Writer, report types.TeardownReport) {
	t := Table{Columns: []Column{
		{"Kind", 22}, {"Deleted", 8}, {"Skipped", 8}, {"Not Found", 9}, {"Failed", 8},
	}}
	var total types.TeardownTally
	for _, kind := range report.Kinds() {
		tally := report.Tally(kind)
		total.Deleted += tally.Deleted
		total.Skipped += tally.Skipped
		total.NotFound += tally.NotFound
		total.Failed += tally.Failed
		t.AddRow(
			Plain(string(kind)),
			countCell(tally.Deleted, GoodStyle),
			countCell(tally.Skipped, PendingStyle),
			countCell(tally.NotFound, MutedStyle),
			countCell(tally.Failed, BadStyle),
		)
	}
	t.Render(w)

	elapsed := report.Finished.Sub(report.Started).Round(time.Second)
	summary(w, total.Deleted, "deleted in "+elapsed.String(), nonEmpty(
		countPart(total.Skipped, "skipped", PendingStyle),
		countPart(total.NotFound, "not found", MutedStyle),
		countPart(total.Failed, "failed", BadStyle),
	))
}

func countCell(n int, style lipgloss.Style) Cell {
	if n == 0 {
		return Styled("-", MutedStyle)
	}
	return Styled(strconv.Itoa(n), style)
}

func sortHandles(hs []types.ResourceHandle) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].ID() < hs[j].ID() })
}
