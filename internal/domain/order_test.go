package domain

import "testing"

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []OrderStatus{
		StatusPending, StatusMonitoring, StatusTriggered, StatusRouting,
		StatusBuilding, StatusSubmitted, StatusConfirmed,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("%s -> %s should be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransition_NoSkipsOrBackwards(t *testing.T) {
	cases := []struct{ from, to OrderStatus }{
		{StatusPending, StatusTriggered},
		{StatusPending, StatusConfirmed},
		{StatusMonitoring, StatusBuilding},
		{StatusTriggered, StatusPending},
		{StatusSubmitted, StatusRouting},
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Fatalf("%s -> %s should be illegal", c.from, c.to)
		}
	}
}

func TestCanTransition_FailedJump(t *testing.T) {
	for s := range lifecycleOrder {
		if s == StatusConfirmed {
			continue
		}
		if !CanTransition(s, StatusFailed) {
			t.Fatalf("%s -> failed should be legal", s)
		}
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	if CanTransition(StatusConfirmed, StatusFailed) {
		t.Fatal("confirmed must not fail")
	}
	if CanTransition(StatusFailed, StatusMonitoring) {
		t.Fatal("failed must not advance")
	}
	if !CanTransition(StatusPending, StatusPending) {
		t.Fatal("pending re-entry must be legal for retries")
	}
}

func TestIsTerminal(t *testing.T) {
	for s, terminal := range map[OrderStatus]bool{
		StatusPending:   false,
		StatusSubmitted: false,
		StatusConfirmed: true,
		StatusFailed:    true,
	} {
		if s.IsTerminal() != terminal {
			t.Fatalf("IsTerminal(%s) = %v", s, s.IsTerminal())
		}
	}
}
