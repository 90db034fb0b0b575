package run

import (
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusComplete, false},
		{StatusRunning, StatusRunning, true},
		{StatusRunning, StatusComplete, true},
		{StatusRunning, StatusFailed, true},
		{StatusComplete, StatusRunning, false},
		{StatusFailed, StatusComplete, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}

	if !StatusFailed.IsTerminal() || StatusRunning.IsTerminal() {
		t.Error("IsTerminal reported the wrong states")
	}
}
