package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/schemamap/internal/metrics"
	"github.com/leapstack-labs/schemamap/internal/plan"
	"github.com/leapstack-labs/schemamap/internal/testutil"
	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idStr     = core.NewAttribute("id", core.DataTypeString)
	idInt     = core.NewAttribute("id", core.DataTypeInteger)
	name      = core.NewAttribute("name", core.DataTypeString)
	legacy    = core.NewAttribute("legacy", core.DataTypeUnknown)
	firstName = core.NewAttribute("first_name", core.DataTypeString)
	lastName  = core.NewAttribute("last_name", core.DataTypeString)
)

type memRecorder struct {
	steps []*StepResult
	err   error
}

func (r *memRecorder) RecordStep(_ context.Context, res *StepResult) error {
	if r.err != nil {
		return r.err
	}
	r.steps = append(r.steps, res)
	return nil
}

func to(a core.Attribute) *core.Attribute { return &a }

func castStep() plan.Step {
	return plan.Step{
		Name:  "cast-id",
		Carry: true,
		Edits: []plan.Edit{
			{From: "id", To: to(idInt)},
			{From: "legacy"},
		},
	}
}

func splitStep() plan.Step {
	return plan.Step{
		Name:  "split-name",
		Carry: true,
		Edits: []plan.Edit{
			{From: "name", To: to(firstName)},
			{From: "name", To: to(lastName)},
		},
	}
}

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testutil.NewTestLogger(t)
	}
	return New(lineage.New(testutil.Schema(t, "id:string", "name:string", "legacy:unknown")), opts)
}

func TestApply(t *testing.T) {
	rec := &memRecorder{}
	p := newTestPipeline(t, Options{Recorder: rec})

	res, err := p.Apply(context.Background(), castStep())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Index)
	assert.Equal(t, "cast-id", res.Name)
	assert.Equal(t, []core.Attribute{idInt, name}, res.Schema.Attributes())
	assert.Equal(t, []core.Attribute{idInt}, res.Added)
	assert.Equal(t, []core.Attribute{idStr, legacy}, res.Removed)
	assert.Equal(t, 1, res.Derived)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Carried, "name is carried, id and legacy are named")
	assert.Equal(t, 2, res.Marked)
	assert.Equal(t, 1, res.Layer)

	require.Len(t, rec.steps, 1)
	assert.Same(t, res, rec.steps[0])
	assert.Equal(t, []core.Attribute{idInt, name}, p.Mapping().Current().Attributes())
}

func TestApply_Split(t *testing.T) {
	p := newTestPipeline(t, Options{})
	ctx := context.Background()

	_, err := p.Apply(ctx, castStep())
	require.NoError(t, err)
	res, err := p.Apply(ctx, splitStep())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Index)
	assert.Equal(t, []core.Attribute{idInt, firstName, lastName}, res.Schema.Attributes())
	assert.Equal(t, []core.Attribute{firstName, lastName}, res.Added)
	assert.Equal(t, []core.Attribute{name}, res.Removed)
	assert.Equal(t, 2, res.Layer)

	targets, ok := p.Mapping().TargetsOf(name)
	require.True(t, ok)
	assert.Contains(t, targets, firstName)
	assert.Contains(t, targets, lastName)
}

func TestApply_LookupFailureLeavesMappingUntouched(t *testing.T) {
	m := metrics.New()
	p := newTestPipeline(t, Options{Metrics: m})
	before := p.Mapping().Forest().Len()

	step := plan.Step{
		Name: "bad",
		Edits: []plan.Edit{
			{From: "id", To: to(idInt)},
			{From: "missing", To: to(firstName)},
		},
	}
	res, err := p.Apply(context.Background(), step)
	require.Error(t, err)
	assert.Nil(t, res)

	assert.True(t, errors.Is(err, lineage.ErrNotLive))
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "bad", stepErr.Name)

	assert.Equal(t, before, p.Mapping().Forest().Len(), "id edit must not be registered")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.LookupErrors))
}

func TestApply_InvariantLeavesMappingUntouched(t *testing.T) {
	p := newTestPipeline(t, Options{})
	before := p.Mapping().Forest().Nodes()

	// Both edits produce first_name at layer 1, from different parents.
	step := plan.Step{
		Name: "merge",
		Edits: []plan.Edit{
			{From: "id", To: to(firstName)},
			{From: "name", To: to(firstName)},
		},
	}
	res, err := p.Apply(context.Background(), step)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, lineage.ErrInvariant))

	assert.Equal(t, before, p.Mapping().Forest().Nodes(), "first edit must not be attached")
	assert.Equal(t, 0, p.Mapping().RunUpdatePass())

	res, err = p.Apply(context.Background(), castStep())
	require.NoError(t, err)
	assert.Equal(t, []core.Attribute{idInt, name}, res.Schema.Attributes())
}

func TestApply_EverythingDeleted(t *testing.T) {
	rec := &memRecorder{}
	p := newTestPipeline(t, Options{Recorder: rec})

	step := plan.Step{
		Name:  "drop-all",
		Edits: []plan.Edit{{From: "id"}, {From: "name"}, {From: "legacy"}},
	}
	res, err := p.Apply(context.Background(), step)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoLiveAttributes))

	require.NotNil(t, res)
	assert.Equal(t, 0, res.Schema.Len())
	assert.Len(t, rec.steps, 1, "empty commit is still recorded")
}

func TestApply_RecorderError(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	p := newTestPipeline(t, Options{Recorder: rec})

	_, err := p.Apply(context.Background(), castStep())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestApply_CancelledContext(t *testing.T) {
	p := newTestPipeline(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Apply(ctx, castStep())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	m := metrics.New()
	p := newTestPipeline(t, Options{Metrics: m})

	results, err := p.Run(context.Background(), []plan.Step{castStep(), splitStep()})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.StepsApplied))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.EditsTotal.WithLabelValues(metrics.EditDerive)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EditsTotal.WithLabelValues(metrics.EditDelete)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.EditsTotal.WithLabelValues(metrics.EditCarry)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.MaxLayer))
}

func TestRun_OnError(t *testing.T) {
	bad := plan.Step{Name: "bad", Edits: []plan.Edit{{From: "missing"}}}

	tests := []struct {
		name        string
		onError     OnError
		wantErr     bool
		wantResults int
		wantLayer   int
	}{
		{name: "abort", onError: OnErrorAbort, wantErr: true, wantResults: 1, wantLayer: 1},
		{name: "default aborts", onError: "", wantErr: true, wantResults: 1, wantLayer: 1},
		{name: "skip", onError: OnErrorSkip, wantErr: false, wantResults: 3, wantLayer: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			p := newTestPipeline(t, Options{Recorder: rec, OnError: tt.onError})

			results, err := p.Run(context.Background(), []plan.Step{castStep(), bad, splitStep()})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, lineage.ErrNotLive))
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, results, tt.wantResults)
			assert.Equal(t, tt.wantLayer, p.Mapping().Forest().MaxLayer())

			if tt.onError == OnErrorSkip {
				skipped := results[1]
				assert.True(t, skipped.Skipped)
				assert.Equal(t, 1, skipped.Index)
				assert.NotEmpty(t, skipped.Error)
				assert.Equal(t, 2, results[2].Index)
				assert.Len(t, rec.steps, 3)
			}
		})
	}
}

func TestRun_SkipLogsWarning(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	p := newTestPipeline(t, Options{Logger: logger, OnError: OnErrorSkip})

	bad := plan.Step{Name: "bad", Edits: []plan.Edit{{From: "missing"}}}
	_, err := p.Run(context.Background(), []plan.Step{bad})
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), `msg="skipping step"`)
	assert.Contains(t, logs.String(), "name=bad")
}

func TestRun_InvariantAlwaysAborts(t *testing.T) {
	p := New(lineage.New(core.MustSchema(firstName, lastName)), Options{
		Logger:  testutil.NewTestLogger(t),
		OnError: OnErrorSkip,
	})

	merge := plan.Step{
		Name: "merge",
		Edits: []plan.Edit{
			{From: "first_name", To: to(name)},
			{From: "last_name", To: to(name)},
		},
	}
	results, err := p.Run(context.Background(), []plan.Step{merge})
	require.Error(t, err)
	assert.True(t, errors.Is(err, lineage.ErrInvariant))
	assert.Empty(t, results)
}

func TestRun_Cancelled(t *testing.T) {
	p := newTestPipeline(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := p.Run(ctx, []plan.Step{castStep()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Equal(t, 0, p.Mapping().Forest().MaxLayer())
}

func TestParseOnError(t *testing.T) {
	got, err := ParseOnError("")
	require.NoError(t, err)
	assert.Equal(t, OnErrorAbort, got)

	got, err = ParseOnError("skip")
	require.NoError(t, err)
	assert.Equal(t, OnErrorSkip, got)

	_, err = ParseOnError("retry")
	assert.Error(t, err)
}
