package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a launch task
type TaskStatus string

const (
	TaskStarting  TaskStatus = "starting"
	TaskRunning   TaskStatus = "running"
	TaskStopping  TaskStatus = "stopping"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskError     TaskStatus = "error"
)

// IsFinal reports whether the task has finished
func (s TaskStatus) IsFinal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskError
}

// TaskSnapshot is a point-in-time view of a running launch
type TaskSnapshot struct {
	RunID          uuid.UUID     `json:"run_id"`
	Instance       string        `json:"instance"`
	InstanceIndex  int           `json:"instance_index"`
	Status         TaskStatus    `json:"status"`
	CurrentAttempt int           `json:"current_attempt"`
	MaxRetries     int           `json:"max_retries"`
	Elapsed        time.Duration `json:"elapsed"`
	StartTime      time.Time     `json:"start_time"`
	LastState      GameState     `json:"last_state,omitempty"`
}

// LaunchResult is what a single AutoStartGame run produced
type LaunchResult struct {
	Success  bool
	Attempts int
	Detail   string
}

// LaunchRecord is a finished launch kept in history
type LaunchRecord struct {
	ID            uuid.UUID  `json:"id"`
	Instance      string     `json:"instance"`
	InstanceIndex int        `json:"instance_index"`
	Status        TaskStatus `json:"status"`
	Success       bool       `json:"success"`
	Attempts      int        `json:"attempts"`
	MaxRetries    int        `json:"max_retries"`
	Detail        string     `json:"detail"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
}

// Duration returns how long the launch took
func (r LaunchRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// InstanceSummary aggregates history for one instance
type InstanceSummary struct {
	Instance    string    `json:"instance"`
	Runs        int       `json:"runs"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	AvgAttempts float64   `json:"avg_attempts"`
	LastRun     time.Time `json:"last_run"`
}

// SuccessRate returns the fraction of successful runs
func (s InstanceSummary) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Runs)
}
