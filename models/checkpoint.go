package models

import "time"

// CheckpointState is the single logical progress record, fully overwritten
// on each save. LastProcessedIndex never claims more progress than the rows
// durably written to the output sink: the driver writes sink rows first and
// the checkpoint second.
type CheckpointState struct {
	// LastProcessedIndex is the highest input index fully committed to the
	// output sink. -1 means no index has been committed yet.
	LastProcessedIndex int64 `json:"last_processed_index"`

	// Counters are the aggregate tallies at save time.
	Counters RunCounters `json:"counters"`

	// SavedAt is the wall-clock time of this save.
	SavedAt time.Time `json:"saved_at"`

	// ElapsedRunSeconds is cumulative processing time across all resumes.
	ElapsedRunSeconds float64 `json:"elapsed_run_seconds"`
}

// NextIndex returns the resume offset implied by this checkpoint alone.
func (s CheckpointState) NextIndex() int64 {
	return s.LastProcessedIndex + 1
}
