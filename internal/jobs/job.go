// Package jobs implements the job orchestrator: it accepts indexing jobs,
// constructs a JobContext per job, runs the fixed GIT_SYNC -> CODE_PARSING
// -> GRAPH_UPDATE -> CLEANUP task pipeline in order, and persists job
// records through their terminal state.
package jobs

import (
	"time"

	"github.com/codegraph-dev/indexer/internal/tasks"
)

// State is a Job's position in its forward-only state machine:
// queued -> running -> {succeeded | failed | cancelled}.
type State string

// The closed set of job states. Every transition moves strictly forward;
// there is no path back to an earlier state.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// terminal reports whether a state has no further transitions.
func (s State) terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Codebase is the external catalog record the orchestrator reads at job
// start and updates on success. The catalog itself (a relational store) is
// an out-of-scope collaborator; CodebaseCatalog is the seam this package
// depends on.
type Codebase struct {
	ID                string
	Name              string
	RemoteURL         string
	DefaultBranch     string
	LanguageHint      string
	LastIndexedCommit string
}

// TaskSummary is the persisted outcome of one task's run, independent of
// the in-memory tasks.RunResult (which carries an error value that does
// not serialize cleanly).
type TaskSummary struct {
	Task     tasks.Name    `json:"task"`
	Outcome  tasks.Outcome `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

// Job is the unit of work the orchestrator schedules and persists.
type Job struct {
	ID         string        `json:"id"`
	CodebaseID string        `json:"codebaseId"`
	Type       tasks.JobType `json:"type"`
	State      State         `json:"state"`
	BaseCommit string        `json:"baseCommit,omitempty"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	EndedAt    time.Time     `json:"endedAt,omitempty"`
	Tasks      []TaskSummary `json:"tasks,omitempty"`
	FailureMsg string        `json:"failureMessage,omitempty"`
}

// transitionTo moves the job to next, returning a StateError if next is not
// reachable from the current state (forward-only, never out of a terminal
// state).
func (j *Job) transitionTo(next State) error {
	if j.State.terminal() {
		return stateTransitionError(j.State, next)
	}

	switch j.State {
	case StateQueued:
		if next != StateRunning && next != StateCancelled {
			return stateTransitionError(j.State, next)
		}
	case StateRunning:
		if next != StateSucceeded && next != StateFailed && next != StateCancelled {
			return stateTransitionError(j.State, next)
		}
	default:
		return stateTransitionError(j.State, next)
	}

	j.State = next

	return nil
}

// recordTask appends a persisted summary of one task's RunResult.
func (j *Job) recordTask(result tasks.RunResult) {
	summary := TaskSummary{
		Task:     result.Task,
		Outcome:  result.Outcome,
		Duration: result.Duration,
		Attempts: result.Attempts,
	}

	if result.Err != nil {
		summary.Error = result.Err.Error()
	}

	j.Tasks = append(j.Tasks, summary)
}
