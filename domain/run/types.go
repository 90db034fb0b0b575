package run

import (
	"varexplorer/domain/core"
)

// Status is the lifecycle state of an analysis run
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// IsTerminal reports whether no further transitions can happen
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition enforces pending -> running -> complete|failed. A pending
// run may also fail before it starts.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusRunning || next.IsTerminal()
	default:
		return false
	}
}

// Event reports progress of one run to subscribers
type Event struct {
	RunID     core.RunID     `json:"run_id"`
	Status    Status         `json:"status"`
	Progress  float64        `json:"progress"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Timestamp core.Timestamp `json:"timestamp"`
}
