package state

import (
	"context"

	"github.com/leapstack-labs/schemamap/internal/pipeline"
)

// RunRecorder writes pipeline step results into one run.
type RunRecorder struct {
	store Store
	runID string
}

var _ pipeline.Recorder = (*RunRecorder)(nil)

// NewRunRecorder returns a recorder bound to runID.
func NewRunRecorder(store Store, runID string) *RunRecorder {
	return &RunRecorder{store: store, runID: runID}
}

// RecordStep implements pipeline.Recorder.
func (r *RunRecorder) RecordStep(ctx context.Context, res *pipeline.StepResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.store.RecordStep(r.runID, StepFromResult(res))
}

// StepFromResult converts a pipeline result to its persisted form.
func StepFromResult(res *pipeline.StepResult) *Step {
	return &Step{
		Index:    res.Index,
		Name:     res.Name,
		Schema:   res.Schema.Attributes(),
		Added:    res.Added,
		Removed:  res.Removed,
		Derived:  res.Derived,
		Deleted:  res.Deleted,
		Carried:  res.Carried,
		Marked:   res.Marked,
		Layer:    res.Layer,
		Skipped:  res.Skipped,
		Error:    res.Error,
		Duration: res.Duration,
	}
}
