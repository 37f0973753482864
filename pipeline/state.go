package pipeline

import (
	"time"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/record"
	"github.com/teranos/curate/tier"
)

// State is the stage a run is in.
type State string

const (
	StateFetching  State = "fetching"
	StateGating    State = "gating"
	StateWriting   State = "writing"
	StateRecording State = "recording"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// transitions lists the legal successors of each non-terminal state.
// fetching -> complete is the empty-batch path.
var transitions = map[State][]State{
	StateFetching:  {StateGating, StateComplete, StateFailed},
	StateGating:    {StateWriting, StateFailed},
	StateWriting:   {StateRecording, StateFailed},
	StateRecording: {StateComplete, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition reports whether s -> to is legal.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Run is one pass of the pipeline over one batch. From GATING on it is
// checkpointed after every transition so a restarted node resumes it.
type Run struct {
	RunID       string
	State       State
	StartedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	// Batch is the fetched batch, immutable once set.
	Batch []record.Raw
	// Validated is set on entering WRITING.
	Validated []record.Validated
	// Paths is set on entering RECORDING.
	Paths *tier.Paths

	Error    string
	ReplayOf string
}

// transition moves the run to the next state.
func (r *Run) transition(to State, now time.Time) error {
	if !r.State.CanTransition(to) {
		return errors.AssertionFailedf("illegal run transition %s -> %s (run %s)", r.State, to, r.RunID)
	}
	r.State = to
	r.UpdatedAt = now
	if to.Terminal() {
		r.CompletedAt = &now
	}
	return nil
}

// Counts returns ingested, accepted and rejected totals of the gate results.
func (r *Run) Counts() (ingested, accepted, rejected int) {
	ingested = len(r.Batch)
	for _, v := range r.Validated {
		if v.Accepted() {
			accepted++
		} else {
			rejected++
		}
	}
	return ingested, accepted, rejected
}
