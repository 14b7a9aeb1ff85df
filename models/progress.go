package models

import "time"

// Run states surfaced by the monitor API.
const (
	RunStateInitializing = "initializing"
	RunStateResuming     = "resuming"
	RunStateProcessing   = "processing"
	RunStateShuttingDown = "shutting_down"
	RunStateCompleted    = "completed"
	RunStateStopped      = "stopped"
)

// ProgressSnapshot is a point-in-time view of a run for the monitor API.
// The driver publishes a fresh snapshot after every processed URL; readers
// never touch driver internals.
type ProgressSnapshot struct {
	// State is one of the RunState* constants.
	State string `json:"state"`

	// ResumeOffset is the index this run started at (0 for a fresh run).
	ResumeOffset int64 `json:"resume_offset"`

	// NextIndex is the next input index to be processed.
	NextIndex int64 `json:"next_index"`

	// TotalEntries is the length of the input list.
	TotalEntries int64 `json:"total_entries"`

	// Counters are the aggregate tallies, including inherited history.
	Counters RunCounters `json:"counters"`

	// ElapsedRunSeconds is processing time accumulated across every run of
	// this job, inherited runs included.
	ElapsedRunSeconds float64 `json:"elapsed_run_seconds"`

	// RatePerSecond is the processing rate of the current run.
	RatePerSecond float64 `json:"rate_per_second"`

	// ETASeconds estimates the remaining time at the current rate.
	// Zero when the rate is unknown.
	ETASeconds float64 `json:"eta_seconds"`

	// StartedAt is when the current run began.
	StartedAt time.Time `json:"started_at"`

	// UpdatedAt is when this snapshot was taken.
	UpdatedAt time.Time `json:"updated_at"`
}

// PercentDone returns list completion as a percentage in [0, 100].
func (p ProgressSnapshot) PercentDone() float64 {
	if p.TotalEntries == 0 {
		return 0
	}
	return float64(p.NextIndex) / float64(p.TotalEntries) * 100
}

// HealthResponse is the response for GET /api/v1/health on the monitor API.
type HealthResponse struct {
	Status  string `json:"status"` // "running" or "draining"
	Uptime  string `json:"uptime"`
	State   string `json:"state"`
	Version string `json:"version"`
}
