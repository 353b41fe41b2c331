package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/schemamap/internal/cli/output"
	"github.com/leapstack-labs/schemamap/internal/metrics"
	"github.com/leapstack-labs/schemamap/internal/pipeline"
	"github.com/leapstack-labs/schemamap/internal/plan"
	"github.com/leapstack-labs/schemamap/internal/state"
	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
	"github.com/spf13/cobra"
)

// ReplayOptions holds options for the replay command.
type ReplayOptions struct {
	NoState bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand() *cobra.Command {
	opts := &ReplayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <plan>",
		Short: "Replay a transformation plan and show the schema after each step",
		Long: `Replay the steps of a plan file against its source schema.

Every step resolves its edits against the live attributes, commits the new
current schema and reports what was added and removed. When state_path is
set the run, its steps and the final lineage forest are recorded.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Replay a plan
  schemamap replay plans/orders.yaml

  # Keep going past steps that name a missing attribute
  schemamap replay plans/orders.yaml --on-error skip

  # Replay without recording history
  schemamap replay plans/orders.yaml --no-state -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Do not record this run in the state database")

	return cmd
}

func runReplay(cmd *cobra.Command, path string, opts *ReplayOptions) error {
	cmdCtx := NewCommandContext(cmd)

	outcome, err := replayPlan(cmd.Context(), cmdCtx, path, !opts.NoState)
	if err != nil {
		return err
	}

	provenance, err := outcome.Pipe.Report(cmd.Context())
	if err != nil {
		// The failure that ended the run outranks one caused by it.
		if outcome.Err != nil {
			return outcome.Err
		}
		return fmt.Errorf("failed to compute provenance: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := replayJSON(r, outcome, provenance); err != nil {
			return err
		}
	default:
		replayDocument(r, outcome, provenance)
	}

	return outcome.Err
}

// replayOutcome is the result of replaying one plan.
type replayOutcome struct {
	Plan  *plan.Plan
	Pipe  *pipeline.Pipeline
	Steps []*pipeline.StepResult
	RunID string
	// Err is the step failure that ended the run, if any. Steps holds
	// every step attempted before it.
	Err error
}

// replayPlan loads the plan at path and runs it. Setup failures are
// returned as the error; a failing step is reported in replayOutcome.Err.
func replayPlan(ctx context.Context, cmdCtx *CommandContext, path string, persist bool) (*replayOutcome, error) {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	p, err := plan.Load(path)
	if err != nil {
		return nil, err
	}

	onError, err := pipeline.ParseOnError(cfg.OnError)
	if err != nil {
		return nil, err
	}

	var m *lineage.Mapping
	if p.HasTarget() {
		m = lineage.NewWithTarget(p.Source, p.Target)
	} else {
		m = lineage.New(p.Source)
	}

	mx := metrics.New()
	opts := pipeline.Options{
		Logger:  logger.With(slog.String("plan", p.Name)),
		Metrics: mx,
		OnError: onError,
	}

	var store state.Store
	var runID string
	if persist && cfg.PersistenceEnabled() {
		s, cleanup, err := cmdCtx.OpenStore()
		if err != nil {
			return nil, err
		}
		defer cleanup()

		run, err := s.CreateRun(p.Name, p.Source)
		if err != nil {
			return nil, err
		}
		store = s
		runID = run.ID
		opts.Recorder = state.NewRunRecorder(s, runID)
		logger.Debug("recording run", slog.String("run_id", runID))
	}

	pipe := pipeline.New(m, opts)
	results, runErr := pipe.Run(ctx, p.Steps)

	if store != nil {
		if err := store.SaveForest(runID, m.Forest().Nodes()); err != nil {
			return nil, err
		}
		status, msg := runStatus(runErr)
		if err := store.CompleteRun(runID, status, msg); err != nil {
			return nil, err
		}
	}

	if cfg.MetricsFile != "" {
		if err := mx.WriteFile(cfg.MetricsFile); err != nil {
			return nil, err
		}
	}

	return &replayOutcome{
		Plan:  p,
		Pipe:  pipe,
		Steps: results,
		RunID: runID,
		Err:   runErr,
	}, nil
}

func runStatus(err error) (state.RunStatus, string) {
	switch {
	case err == nil:
		return state.RunStatusCompleted, ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return state.RunStatusCancelled, err.Error()
	default:
		return state.RunStatusFailed, err.Error()
	}
}

// replayJSON outputs the replay as a single JSON document.
func replayJSON(r *output.Renderer, o *replayOutcome, provenance []pipeline.Provenance) error {
	m := o.Pipe.Mapping()
	doc := output.ReplayOutput{
		Plan:       o.Plan.Name,
		RunID:      o.RunID,
		Source:     o.Plan.Source.Attributes(),
		Steps:      make([]output.StepOutput, 0, len(o.Steps)),
		Final:      m.Current().Attributes(),
		Provenance: make([]output.ProvenanceOutput, 0, len(provenance)),
	}
	if o.Plan.HasTarget() {
		doc.Target = o.Plan.Target.Attributes()
		mapped := m.HasMapped()
		doc.Mapped = &mapped
	}
	for _, res := range o.Steps {
		doc.Steps = append(doc.Steps, stepOutput(state.StepFromResult(res)))
	}
	for _, p := range provenance {
		doc.Provenance = append(doc.Provenance, output.ProvenanceOutput(p))
	}
	if o.Err != nil {
		doc.Error = o.Err.Error()
	}
	return r.JSON(doc)
}

// replayDocument outputs the replay as text or markdown.
func replayDocument(r *output.Renderer, o *replayOutcome, provenance []pipeline.Provenance) {
	m := o.Pipe.Mapping()
	styles := r.Styles()

	r.Header(1, fmt.Sprintf("Replay %s (%d steps)", o.Plan.Name, len(o.Plan.Steps)))
	r.KeyValue("Source", o.Plan.Source.String())
	if o.Plan.HasTarget() {
		r.KeyValue("Target", o.Plan.Target.String())
	}
	if o.RunID != "" {
		r.KeyValue("Run", o.RunID)
	}
	r.Println("")

	for _, res := range o.Steps {
		title := fmt.Sprintf("Step %d: %s", res.Index+1, res.Name)
		if res.Skipped {
			title += " (skipped)"
		}
		r.Header(2, title)
		r.KeyValue("Schema", res.Schema.String())
		if res.Skipped {
			r.KeyValue("Error", styles.Warning.Render(res.Error))
			r.Println("")
			continue
		}
		r.KeyValue("Added", styles.Success.Render(formatAttrs(res.Added)))
		r.KeyValue("Removed", styles.Error.Render(formatAttrs(res.Removed)))
		r.KeyValue("Edits", fmt.Sprintf("%d derived, %d deleted, %d carried", res.Derived, res.Deleted, res.Carried))
		r.KeyValue("Layer", fmt.Sprintf("%d", res.Layer))
		r.Println("")
	}

	r.Header(2, "Final schema")
	if len(provenance) == 0 {
		r.Println(styles.Muted.Render("(no live attributes)"))
	} else {
		rows := make([][]string, 0, len(provenance))
		for _, p := range provenance {
			rows = append(rows, []string{
				p.Attribute.Name,
				p.Attribute.Type.String(),
				formatAttrs(p.Sources),
				formatAttrs(p.Origins),
			})
		}
		r.Table([]string{"Attribute", "Type", "Sources", "Origins"}, rows)
	}

	if o.Plan.HasTarget() {
		if m.HasMapped() {
			r.Success("current schema matches the target")
		} else {
			r.Warning("current schema does not match the target " + o.Plan.Target.String())
		}
	}
	if o.Err != nil {
		r.Error(o.Err.Error())
	}
}

func stepOutput(s *state.Step) output.StepOutput {
	return output.StepOutput{
		Index:      s.Index,
		Name:       s.Name,
		Schema:     nonNil(s.Schema),
		Added:      nonNil(s.Added),
		Removed:    nonNil(s.Removed),
		Derived:    s.Derived,
		Deleted:    s.Deleted,
		Carried:    s.Carried,
		Marked:     s.Marked,
		Layer:      s.Layer,
		Skipped:    s.Skipped,
		Error:      s.Error,
		DurationMS: s.Duration.Milliseconds(),
	}
}

func formatAttrs(attrs []core.Attribute) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.String()
	}
	return output.FormatList(parts)
}

func nonNil(attrs []core.Attribute) []core.Attribute {
	if attrs == nil {
		return []core.Attribute{}
	}
	return attrs
}

// summarizeNames renders attribute names only, for compact listings.
func summarizeNames(attrs []core.Attribute) string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
