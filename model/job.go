package model

import "time"

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the state can never change again.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the record shared between the orchestrator's worker and external
// readers. Only the job manager mutates it, always under its lock.
type Job struct {
	ID        string
	State     JobState
	Progress  int // 0..100, monotonically non-decreasing
	Message   string
	Degraded  bool
	Err       string
	MIDI      []byte
	CreatedAt time.Time
	DoneAt    time.Time
}

// JobStatus is the consistent snapshot returned to pollers.
type JobStatus struct {
	ID       string   `json:"id"`
	State    JobState `json:"state"`
	Progress int      `json:"progress"`
	Message  string   `json:"message"`
	Degraded bool     `json:"degraded"`
}
