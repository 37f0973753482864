package lineage

import (
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/record"
	"github.com/teranos/curate/tier"
)

// SchemaVersion is the manifest entry schema written by this build.
const SchemaVersion = "1.0.0"

// supportedSchemas is the range of entry schemas ReadAll accepts.
const supportedSchemas = ">= 1.0.0, < 2.0.0"

// ErrInvalidEntry marks an entry that violates the count invariants.
var ErrInvalidEntry = errors.New("invalid lineage entry")

// Counts are the record counts of a run.
type Counts struct {
	Ingested int `json:"ingested"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Curated  int `json:"curated"`
}

// Entry is one run manifest line. It is written once and never modified.
type Entry struct {
	SchemaVersion   string                       `json:"schema_version"`
	RunID           string                       `json:"run_id"`
	Counts          Counts                       `json:"counts"`
	ReasonBreakdown map[record.FailureReason]int `json:"reason_breakdown"`
	ArtifactPaths   tier.Paths                   `json:"artifact_paths"`
	StartedAt       time.Time                    `json:"started_at"`
	CompletedAt     time.Time                    `json:"completed_at"`
}

// NewEntry builds the manifest entry of a completed run from its gate results
// and written artifacts. Every failure reason appears in the breakdown,
// zero-filled.
func NewEntry(runID string, validated []record.Validated, paths tier.Paths, startedAt, completedAt time.Time) Entry {
	breakdown := make(map[record.FailureReason]int, len(record.Reasons))
	for _, reason := range record.Reasons {
		breakdown[reason] = 0
	}

	var counts Counts
	counts.Ingested = len(validated)
	for _, v := range validated {
		if v.Accepted() {
			counts.Accepted++
			continue
		}
		counts.Rejected++
		breakdown[v.Reason()]++
	}
	// every accepted record lands in exactly one curated day partition
	counts.Curated = counts.Accepted

	if paths.Curated == nil {
		paths.Curated = []string{}
	}

	return Entry{
		SchemaVersion:   SchemaVersion,
		RunID:           runID,
		Counts:          counts,
		ReasonBreakdown: breakdown,
		ArtifactPaths:   paths,
		StartedAt:       startedAt.UTC(),
		CompletedAt:     completedAt.UTC(),
	}
}

// Validate checks the entry invariants.
func (e Entry) Validate() error {
	if e.RunID == "" {
		return errors.Mark(errors.New("run_id is empty"), ErrInvalidEntry)
	}
	if _, err := semver.NewVersion(e.SchemaVersion); err != nil {
		return errors.Mark(errors.Wrapf(err, "schema_version %q", e.SchemaVersion), ErrInvalidEntry)
	}

	c := e.Counts
	if c.Ingested < 0 || c.Accepted < 0 || c.Rejected < 0 || c.Curated < 0 {
		return errors.Mark(errors.Newf("negative count in %+v", c), ErrInvalidEntry)
	}
	if c.Accepted+c.Rejected != c.Ingested {
		return errors.Mark(errors.Newf("accepted (%d) + rejected (%d) != ingested (%d)", c.Accepted, c.Rejected, c.Ingested), ErrInvalidEntry)
	}
	if c.Curated > c.Accepted {
		return errors.Mark(errors.Newf("curated (%d) exceeds accepted (%d)", c.Curated, c.Accepted), ErrInvalidEntry)
	}

	sum := 0
	for reason, n := range e.ReasonBreakdown {
		if !reason.Valid() {
			return errors.Mark(errors.Newf("unknown failure reason %q", reason), ErrInvalidEntry)
		}
		if n < 0 {
			return errors.Mark(errors.Newf("negative count for reason %q", reason), ErrInvalidEntry)
		}
		sum += n
	}
	if sum != c.Rejected {
		return errors.Mark(errors.Newf("reason breakdown sums to %d, rejected is %d", sum, c.Rejected), ErrInvalidEntry)
	}

	if e.CompletedAt.Before(e.StartedAt) {
		return errors.Mark(errors.New("completed_at precedes started_at"), ErrInvalidEntry)
	}
	return nil
}
