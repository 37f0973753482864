package tier

import (
	"fmt"
	"path"
	"strings"
)

// Paths are the locations of the artifacts of one run, as recorded in the
// lineage manifest. Curated holds one location per day partition written.
type Paths struct {
	Raw      string   `json:"raw"`
	Accepted string   `json:"accepted"`
	Rejected string   `json:"rejected"`
	Curated  []string `json:"curated"`
}

// RawKey is the write-once raw artifact key of a run.
func RawKey(runID, ext string) string {
	return fmt.Sprintf("raw/run_id=%s/raw.%s", runID, ext)
}

// AcceptedKey is the accepted artifact key of a run.
func AcceptedKey(runID, ext string) string {
	return fmt.Sprintf("accepted/run_id=%s/accepted.%s", runID, ext)
}

// RejectedKey is the rejected artifact key of a run.
func RejectedKey(runID, ext string) string {
	return fmt.Sprintf("rejected/run_id=%s/rejected.%s", runID, ext)
}

// CuratedKey is the key of a run's file inside a curated day partition.
// Each run adds its own file, so the partition accumulates across runs.
func CuratedKey(day, runID, ext string) string {
	return fmt.Sprintf("curated/date=%s/run_id=%s.%s", day, runID, ext)
}

// runPrefixes are the key prefixes holding the per-run directories.
func runPrefixes(runID string) []string {
	return []string{
		fmt.Sprintf("raw/run_id=%s/", runID),
		fmt.Sprintf("accepted/run_id=%s/", runID),
		fmt.Sprintf("rejected/run_id=%s/", runID),
	}
}

// isCuratedKeyOf reports whether key is a curated day file of runID.
func isCuratedKeyOf(key, runID string) bool {
	if !strings.HasPrefix(key, string(TierCurated)+"/") {
		return false
	}
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base)) == "run_id="+runID
}

// TierOf returns the tier a key belongs to.
func TierOf(key string) Tier {
	first, _, _ := strings.Cut(key, "/")
	return Tier(first)
}
