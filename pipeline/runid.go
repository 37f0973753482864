package pipeline

import "time"

// RunIDLayout formats run ids: the UTC start time with microseconds. The
// fixed width makes lexical order chronological.
const RunIDLayout = "20060102T150405.000000Z"

// NewRunID returns the run id for a run starting at now. The id is strictly
// greater than latest; when the clock has not advanced past latest it is
// bumped one microsecond after it.
func NewRunID(now time.Time, latest string) string {
	now = now.UTC().Truncate(time.Microsecond)
	if latest != "" {
		if prev, err := time.Parse(RunIDLayout, latest); err == nil && !now.After(prev) {
			now = prev.Add(time.Microsecond)
		}
	}
	return now.Format(RunIDLayout)
}
