package types

import "testing"

func TestParseHealthState(t *testing.T) {
	cases := map[string]HealthState{
		"healthy":            HealthHealthy,
		"initial":            HealthInitial,
		"draining":           HealthDraining,
		"unused":             HealthUnused,
		"unavailable":        HealthUnavailable,
		"unhealthy":          HealthUnhealthy,
		"unhealthy.draining": HealthUnhealthy,
		"":                   HealthUnhealthy,
	}
	for in, want := range cases {
		if got := ParseHealthState(in); got != want {
			t.Fatalf("ParseHealthState(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestSnapshotAllHealthy(t *testing.T) {
	a := NewHandle(KindInstance, "i-a")
	b := NewHandle(KindInstance, "i-b")

	empty := HealthSnapshot{}
	if !empty.AllHealthy() {
		t.Fatalf("expected empty snapshot to be healthy")
	}

	s := HealthSnapshot{Targets: map[ResourceHandle]HealthState{a: HealthHealthy, b: HealthInitial}}
	if s.AllHealthy() {
		t.Fatalf("expected snapshot with an initial target to be unhealthy")
	}
	if got := s.NotHealthy(); len(got) != 1 || got[0] != b {
		t.Fatalf("expected [%s], got %v", b, got)
	}
	if got := s.Count(HealthHealthy); got != 1 {
		t.Fatalf("expected 1 healthy, got %d", got)
	}
}

func TestHandleEquality(t *testing.T) {
	a := NewHandle(KindTargetGroup, "arn:1")
	b := NewHandle(KindTargetGroup, "arn:1")
	c := NewHandle(KindLoadBalancer, "arn:1")
	if a != b {
		t.Fatalf("expected equal handles")
	}
	if a == c {
		t.Fatalf("expected handles of different kinds to differ")
	}
	if !(ResourceHandle{}).IsZero() {
		t.Fatalf("expected zero handle")
	}
	if a.String() != "target-group/arn:1" {
		t.Fatalf("unexpected string form %q", a.String())
	}
}
