package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/vietdv277/clusterbench/pkg/types"
)

// PrintLoadBalancers prints load balancers in a box table
func PrintLoadBalancers(w io.Writer, lbs []types.LoadBalancer) {
	t := Table{Columns: []Column{
		{"Name", 30}, {"Type", 12}, {"Scheme", 16}, {"State", 18}, {"DNS Name", 50},
	}}
	for _, lb := range lbs {
		t.AddRow(
			Styled(lb.Name, NameStyle),
			Plain(lb.Type),
			Styled(lb.Scheme, MutedStyle),
			lbStateCell(lb.State),
			Plain(lb.DNSName),
		)
	}
	t.Render(w)
	fmt.Fprintf(w, "  %d load balancers\n", len(lbs))
}

// PrintTargetGroups prints target groups in a box table
func PrintTargetGroups(w io.Writer, tgs []types.TargetGroup) {
	t := Table{Columns: []Column{
		{"Name", 32}, {"Protocol", 10}, {"Port", 6}, {"Health Check", 16}, {"In Use", 8},
	}}
	inUse := 0
	for _, tg := range tgs {
		used := Styled("No", MutedStyle)
		if tg.InUse() {
			used = Styled("Yes", PendingStyle)
			inUse++
		}
		t.AddRow(
			Styled(tg.Name, NameStyle),
			Plain(tg.Protocol),
			Styled(strconv.Itoa(tg.Port), MutedStyle),
			Plain(formatOptional(tg.HealthCheckPath)),
			used,
		)
	}
	t.Render(w)
	summary(w, len(tgs), "target groups", nonEmpty(countPart(inUse, "in use", PendingStyle)))
}

// PrintTargets prints the registered targets of a target group
func PrintTargets(w io.Writer, targets []types.Target) {
	t := Table{Columns: []Column{
		{"Target ID", 22}, {"Port", 6}, {"AZ", 12}, {"Health", 14}, {"Reason", 30},
	}}
	counts := map[types.HealthState]int{}
	for _, target := range targets {
		state := types.ParseHealthState(target.Health)
		counts[state]++
		t.AddRow(
			Styled(target.ID, IDStyle),
			Styled(strconv.Itoa(target.Port), MutedStyle),
			Plain(target.AZ),
			healthCell(state),
			Styled(target.Reason, MutedStyle),
		)
	}
	t.Render(w)
	healthSummary(w, len(targets), counts)
}

// PrintHealthSnapshot prints one health snapshot, unhealthy targets first
func PrintHealthSnapshot(w io.Writer, snap types.HealthSnapshot) {
	t := Table{Columns: []Column{{"Target ID", 22}, {"Health", 14}, {"Reason", 40}}}

	notHealthy := snap.NotHealthy()
	seen := make(map[types.ResourceHandle]bool, len(notHealthy))
	for _, h := range notHealthy {
		seen[h] = true
		t.AddRow(Styled(h.ID(), IDStyle), healthCell(snap.Targets[h]), Styled(snap.Reasons[h], MutedStyle))
	}
	for _, h := range sortedHandles(snap.Targets) {
		if !seen[h] {
			t.AddRow(Styled(h.ID(), IDStyle), healthCell(snap.Targets[h]), Plain(""))
		}
	}
	t.Render(w)

	counts := map[types.HealthState]int{}
	for _, st := range snap.Targets {
		counts[st]++
	}
	healthSummary(w, len(snap.Targets), counts)
}

// PrintInstances prints instances in a box table
func PrintInstances(w io.Writer, instances []types.Instance) {
	t := Table{Columns: []Column{
		{"ID", 20}, {"Name", 16}, {"Public IP", 15}, {"State", 15}, {"Type", 10}, {"AZ", 12},
	}}
	running := 0
	for _, inst := range instances {
		if inst.State == "running" {
			running++
		}
		t.AddRow(
			Styled(inst.ID, IDStyle),
			Styled(inst.Name, NameStyle),
			Plain(formatOptional(inst.PublicIP)),
			instanceStateCell(inst.State),
			Plain(inst.Type),
			Plain(inst.AZ),
		)
	}
	t.Render(w)
	summary(w, len(instances), "instances", nonEmpty(countPart(running, "running", GoodStyle)))
}

// PrintVPCs prints VPCs in a box table
func PrintVPCs(w io.Writer, vpcs []types.VPC) {
	t := Table{Columns: []Column{
		{"ID", 24}, {"Name", 30}, {"CIDR", 18}, {"State", 12}, {"Default", 8},
	}}
	for _, vpc := range vpcs {
		t.AddRow(
			Styled(vpc.ID, IDStyle),
			Styled(vpc.Name, NameStyle),
			Plain(vpc.CIDR),
			availabilityCell(vpc.State),
			Styled(yesNo(vpc.IsDefault), MutedStyle),
		)
	}
	t.Render(w)
	fmt.Fprintf(w, "  %d VPCs\n", len(vpcs))
}

// PrintSubnets prints subnets in a box table
func PrintSubnets(w io.Writer, subnets []types.Subnet) {
	t := Table{Columns: []Column{
		{"ID", 26}, {"CIDR", 18}, {"AZ", 14}, {"IPs", 6}, {"State", 12}, {"Public", 7},
	}}
	for _, s := range subnets {
		t.AddRow(
			Styled(s.ID, IDStyle),
			Plain(s.CIDR),
			Plain(s.AZ),
			Styled(strconv.Itoa(s.AvailableIPs), MutedStyle),
			availabilityCell(s.State),
			Styled(yesNo(s.Public), MutedStyle),
		)
	}
	t.Render(w)
	fmt.Fprintf(w, "  %d subnets\n", len(subnets))
}

func lbStateCell(state string) Cell {
	switch state {
	case "active":
		return Indicated(IndicatorOn, state, GoodStyle)
	case "provisioning", "active_impaired":
		return Indicated(IndicatorPartial, state, PendingStyle)
	case "failed":
		return Indicated(IndicatorOff, state, BadStyle)
	default:
		return Indicated(IndicatorOff, state, MutedStyle)
	}
}

func healthCell(state types.HealthState) Cell {
	return Indicated(healthIndicator(state), string(state), healthStyle(state))
}

func healthIndicator(state types.HealthState) string {
	switch state {
	case types.HealthHealthy:
		return IndicatorOn
	case types.HealthInitial, types.HealthDraining:
		return IndicatorPartial
	default:
		return IndicatorOff
	}
}

func healthStyle(state types.HealthState) lipgloss.Style {
	switch state {
	case types.HealthHealthy:
		return GoodStyle
	case types.HealthInitial, types.HealthDraining:
		return PendingStyle
	case types.HealthUnhealthy, types.HealthUnavailable:
		return BadStyle
	default:
		return MutedStyle
	}
}

func healthSummary(w io.Writer, total int, counts map[types.HealthState]int) {
	var parts []string
	for _, st := range []types.HealthState{
		types.HealthHealthy, types.HealthUnhealthy, types.HealthInitial,
		types.HealthDraining, types.HealthUnused, types.HealthUnavailable,
	} {
		parts = append(parts, countPart(counts[st], string(st), healthStyle(st)))
	}
	summary(w, total, "targets", nonEmpty(parts...))
}

func instanceStateCell(state string) Cell {
	switch state {
	case "running":
		return Indicated(IndicatorOn, state, GoodStyle)
	case "pending", "stopping", "shutting-down":
		return Indicated(IndicatorPartial, state, PendingStyle)
	default:
		return Indicated(IndicatorOff, state, MutedStyle)
	}
}

func availabilityCell(state string) Cell {
	switch state {
	case "available":
		return Indicated(IndicatorOn, state, GoodStyle)
	case "pending":
		return Indicated(IndicatorPartial, state, PendingStyle)
	default:
		return Indicated(IndicatorOff, state, MutedStyle)
	}
}

func sortedHandles(m map[types.ResourceHandle]types.HealthState) []types.ResourceHandle {
	out := make([]types.ResourceHandle, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sortHandles(out)
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
