// Package pipeline replays transformation plans against a lineage mapping.
//
// A Pipeline owns one Mapping and threads it through the step protocol:
// resolve edits against the live frontier, register them, run the update
// pass, then commit the new current schema.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/schemamap/internal/metrics"
	"github.com/leapstack-labs/schemamap/internal/plan"
	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
)

// ErrNoLiveAttributes is returned when a step commits an empty schema.
var ErrNoLiveAttributes = errors.New("committed schema has no live attributes")

// OnError selects what Run does when a step fails.
type OnError string

// OnError policies.
const (
	OnErrorAbort OnError = "abort"
	OnErrorSkip  OnError = "skip"
)

// ParseOnError converts a string to an OnError policy. Empty means abort.
func ParseOnError(s string) (OnError, error) {
	switch OnError(s) {
	case "", OnErrorAbort:
		return OnErrorAbort, nil
	case OnErrorSkip:
		return OnErrorSkip, nil
	default:
		return "", fmt.Errorf("invalid on_error policy %q (valid: abort, skip)", s)
	}
}

// Recorder persists the outcome of each step.
type Recorder interface {
	RecordStep(ctx context.Context, res *StepResult) error
}

// Options configures a Pipeline.
type Options struct {
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Recorder receives every step result (optional)
	Recorder Recorder
	// Metrics receives step counters (optional)
	Metrics *metrics.Metrics
	// OnError selects the failure policy of Run
	OnError OnError
}

// StepResult describes one applied or skipped step.
type StepResult struct {
	Index    int              `json:"index"`
	Name     string           `json:"name"`
	Schema   core.Schema      `json:"-"`
	Added    []core.Attribute `json:"added"`
	Removed  []core.Attribute `json:"removed"`
	Derived  int              `json:"derived"`
	Deleted  int              `json:"deleted"`
	Carried  int              `json:"carried"`
	Marked   int              `json:"marked"`
	Layer    int              `json:"layer"`
	Skipped  bool             `json:"skipped,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// StepError wraps the failure of a single step.
type StepError struct {
	Index int
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline drives a Mapping through the steps of a plan. It is the single
// writer of its mapping and is not safe for concurrent use.
type Pipeline struct {
	mapping  *lineage.Mapping
	logger   *slog.Logger
	recorder Recorder
	metrics  *metrics.Metrics
	onError  OnError
	next     int
}

// New creates a pipeline that owns m.
func New(m *lineage.Mapping, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	onError := opts.OnError
	if onError == "" {
		onError = OnErrorAbort
	}
	return &Pipeline{
		mapping:  m,
		logger:   logger,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		onError:  onError,
	}
}

// Mapping returns the mapping driven by the pipeline.
func (p *Pipeline) Mapping() *lineage.Mapping {
	return p.mapping
}

// pendingEdit is an edit whose source has been resolved to a live attribute.
type pendingEdit struct {
	source core.Attribute
	target *core.Attribute
	kind   string
}

// resolve maps every edit of step onto live attributes. Nothing is
// registered unless every source resolves.
func (p *Pipeline) resolve(step plan.Step) ([]pendingEdit, error) {
	named := make(map[string]struct{}, len(step.Edits))
	edits := make([]pendingEdit, 0, len(step.Edits))

	for _, e := range step.Edits {
		src, ok := p.mapping.Live(e.From)
		if !ok {
			return nil, &lineage.LookupError{Attribute: core.Attribute{Name: e.From}}
		}
		named[e.From] = struct{}{}

		kind := metrics.EditDerive
		if e.IsDelete() {
			kind = metrics.EditDelete
		}
		edits = append(edits, pendingEdit{source: src, target: e.To, kind: kind})
	}

	if !step.Carry {
		return edits, nil
	}

	for _, a := range p.mapping.Current().Attributes() {
		if _, ok := named[a.Name]; ok {
			continue
		}
		if !p.mapping.Forest().IsLive(a) {
			return nil, &lineage.LookupError{Attribute: a}
		}
		carried := a
		edits = append(edits, pendingEdit{source: a, target: &carried, kind: metrics.EditCarry})
	}
	return edits, nil
}

// Apply runs one step: resolve, register, update pass, commit. A lookup
// failure or an invariant violation found while registering leaves the
// mapping untouched.
func (p *Pipeline) Apply(ctx context.Context, step plan.Step) (*StepResult, error) {
	index := p.next
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	edits, err := p.resolve(step)
	if err != nil {
		p.countFailure(err)
		return nil, &StepError{Index: index, Name: step.Name, Err: err}
	}

	batch := make([]lineage.Edit, len(edits))
	for i, e := range edits {
		batch[i] = lineage.Edit{Source: e.source, Target: e.target}
	}
	if err := p.mapping.RegisterEdits(batch); err != nil {
		p.countFailure(err)
		return nil, &StepError{Index: index, Name: step.Name, Err: err}
	}

	res := &StepResult{Index: index, Name: step.Name}
	for _, e := range edits {
		switch e.kind {
		case metrics.EditDerive:
			res.Derived++
		case metrics.EditDelete:
			res.Deleted++
		case metrics.EditCarry:
			res.Carried++
		}
		if p.metrics != nil {
			p.metrics.RecordEdit(e.kind)
		}
	}

	res.Marked = p.mapping.RunUpdatePass()

	prev := p.mapping.Current()
	schema, err := p.mapping.CommitCurrentSchema()
	if err != nil {
		p.countFailure(err)
		return nil, &StepError{Index: index, Name: step.Name, Err: err}
	}
	p.next++

	res.Schema = schema
	res.Layer = p.mapping.Forest().MaxLayer()
	res.Added, res.Removed = prev.Diff(schema)
	res.Duration = time.Since(start)

	p.logger.Debug("step committed",
		slog.Int("index", index),
		slog.String("name", step.Name),
		slog.Int("layer", res.Layer),
		slog.Int("marked", res.Marked),
		slog.String("schema", schema.String()))

	if p.metrics != nil {
		p.metrics.RecordStep(res.Duration.Seconds(), res.Marked, res.Layer, schema.Len())
	}

	if err := p.record(ctx, res); err != nil {
		return res, err
	}

	if schema.Len() == 0 {
		p.countFailure(ErrNoLiveAttributes)
		return res, &StepError{Index: index, Name: step.Name, Err: ErrNoLiveAttributes}
	}
	return res, nil
}

// Run applies steps in order. With OnErrorSkip a step whose edits name an
// attribute that is not live is logged, recorded as skipped and passed
// over; every other failure stops the run. The results of every step
// attempted so far are returned either way.
func (p *Pipeline) Run(ctx context.Context, steps []plan.Step) ([]*StepResult, error) {
	results := make([]*StepResult, 0, len(steps))

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		res, err := p.Apply(ctx, step)
		if err == nil {
			results = append(results, res)
			continue
		}

		if p.onError != OnErrorSkip || !errors.Is(err, lineage.ErrNotLive) {
			if res != nil {
				results = append(results, res)
			}
			return results, err
		}

		p.logger.Warn("skipping step",
			slog.String("name", step.Name),
			slog.String("error", err.Error()))

		skipped := &StepResult{
			Index:   p.next,
			Name:    step.Name,
			Schema:  p.mapping.Current(),
			Layer:   p.mapping.Forest().MaxLayer(),
			Skipped: true,
			Error:   err.Error(),
		}
		p.next++
		if err := p.record(ctx, skipped); err != nil {
			return results, err
		}
		results = append(results, skipped)
	}

	return results, nil
}

func (p *Pipeline) record(ctx context.Context, res *StepResult) error {
	if p.recorder == nil {
		return nil
	}
	if err := p.recorder.RecordStep(ctx, res); err != nil {
		return fmt.Errorf("failed to record step %s: %w", res.Name, err)
	}
	return nil
}

func (p *Pipeline) countFailure(err error) {
	if p.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, lineage.ErrNotLive):
		p.metrics.LookupErrors.Inc()
		p.metrics.RecordFailure("lookup")
	case errors.Is(err, lineage.ErrInvariant):
		p.metrics.RecordFailure("invariant")
	case errors.Is(err, ErrNoLiveAttributes):
		p.metrics.RecordFailure("empty")
	default:
		p.metrics.RecordFailure("other")
	}
}
