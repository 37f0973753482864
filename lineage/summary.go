package lineage

import (
	"time"

	"github.com/teranos/curate/record"
)

// Summary aggregates manifest entries for dashboards and the CLI.
type Summary struct {
	Runs       int                          `json:"runs"`
	Ingested   int                          `json:"ingested"`
	Accepted   int                          `json:"accepted"`
	Rejected   int                          `json:"rejected"`
	Curated    int                          `json:"curated"`
	PassRate   float64                      `json:"pass_rate"`
	Reasons    map[record.FailureReason]int `json:"reasons"`
	FirstRunID string                       `json:"first_run_id,omitempty"`
	LastRunID  string                       `json:"last_run_id,omitempty"`
	LastRunAt  time.Time                    `json:"last_run_at,omitempty"`
}

// Summarize totals the counts and reason mix of entries. PassRate is
// accepted/ingested, 0 when nothing was ingested.
func Summarize(entries []Entry) Summary {
	s := Summary{Reasons: make(map[record.FailureReason]int, len(record.Reasons))}
	for _, reason := range record.Reasons {
		s.Reasons[reason] = 0
	}

	for _, e := range entries {
		s.Runs++
		s.Ingested += e.Counts.Ingested
		s.Accepted += e.Counts.Accepted
		s.Rejected += e.Counts.Rejected
		s.Curated += e.Counts.Curated
		for reason, n := range e.ReasonBreakdown {
			s.Reasons[reason] += n
		}
		if s.FirstRunID == "" || e.RunID < s.FirstRunID {
			s.FirstRunID = e.RunID
		}
		if e.RunID > s.LastRunID {
			s.LastRunID = e.RunID
			s.LastRunAt = e.CompletedAt
		}
	}

	if s.Ingested > 0 {
		s.PassRate = float64(s.Accepted) / float64(s.Ingested)
	}
	return s
}
