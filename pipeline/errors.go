package pipeline

import (
	"context"

	"github.com/teranos/curate/errors"
	"github.com/teranos/curate/gate"
	"github.com/teranos/curate/source"
	"github.com/teranos/curate/tier"
)

// Error markers returned by RunOnce and Replay. Check them with errors.Is.
var (
	// ErrTransientSource: the source kept failing after the fetch retries.
	ErrTransientSource = source.ErrTransient
	// ErrClassification: a gate defect. The run is failed.
	ErrClassification = gate.ErrClassification
	// ErrWrite: an artifact could not be written. The run is failed and its
	// artifacts are orphaned.
	ErrWrite = tier.ErrWrite
	// ErrLineageAppend: the manifest append kept failing. The run stays in
	// RECORDING and is resumed by the next RunOnce.
	ErrLineageAppend = errors.New("lineage append failed")
)

// Kind names the error category of err for logs and the CLI.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransientSource):
		return "transient_source"
	case errors.Is(err, ErrClassification):
		return "classification"
	case errors.Is(err, ErrWrite):
		return "write"
	case errors.Is(err, ErrLineageAppend):
		return "lineage_append"
	case errors.IsAny(err, context.Canceled, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
