package commands

import (
	"fmt"

	"github.com/leapstack-labs/schemamap/internal/cli/output"
	"github.com/leapstack-labs/schemamap/internal/pipeline"
	"github.com/spf13/cobra"
)

// TraceOptions holds options for the trace command.
type TraceOptions struct {
	Direction string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	opts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace <plan> <attribute>",
		Short: "Show what an attribute was derived from and what it became",
		Long: `Replay a plan, then walk the lineage of every version of the named
attribute. Forward hops lead to the attributes derived from it, backward
hops lead to the attributes it was derived from. The run is not recorded.`,
		Example: `  # Full lineage of an attribute
  schemamap trace plans/orders.yaml customer_id

  # Only where it came from
  schemamap trace plans/orders.yaml full_name --direction backward`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Direction, "direction", "d", string(pipeline.Both), "Walk direction (forward|backward|both)")
	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(pipeline.Forward), string(pipeline.Backward), string(pipeline.Both)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTrace(cmd *cobra.Command, path, name string, opts *TraceOptions) error {
	dir, err := pipeline.ParseDirection(opts.Direction)
	if err != nil {
		return err
	}

	cmdCtx := NewCommandContext(cmd)
	outcome, err := replayPlan(cmd.Context(), cmdCtx, path, false)
	if err != nil {
		return err
	}
	if outcome.Err != nil {
		return fmt.Errorf("replay of %s failed: %w", outcome.Plan.Name, outcome.Err)
	}

	hops, ok := outcome.Pipe.Trace(name, dir)
	if !ok {
		return fmt.Errorf("attribute %q does not appear in the lineage of %s", name, outcome.Plan.Name)
	}

	m := outcome.Pipe.Mapping()
	targets, _ := m.TargetsOfName(name)
	sources, _ := m.SourcesOfName(name)

	doc := output.TraceOutput{
		Plan:      outcome.Plan.Name,
		Attribute: name,
		Direction: string(dir),
		Targets:   nonNil(targets),
		Sources:   nonNil(sources),
		Hops:      make([]output.HopOutput, 0, len(hops)),
	}
	for _, h := range hops {
		doc.Hops = append(doc.Hops, output.HopOutput{
			Direction: string(h.Direction),
			Depth:     h.Depth,
			From:      h.From,
			To:        h.To,
		})
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doc)
	default:
		traceDocument(r, &doc)
		return nil
	}
}

// traceDocument outputs the trace as text or markdown.
func traceDocument(r *output.Renderer, doc *output.TraceOutput) {
	r.Header(1, fmt.Sprintf("Lineage of %s in %s", doc.Attribute, doc.Plan))
	r.KeyValue("Derived from", formatAttrs(doc.Sources))
	r.KeyValue("Derived into", formatAttrs(doc.Targets))
	r.Println("")

	if len(doc.Hops) == 0 {
		r.Println(r.Styles().Muted.Render("(no lineage edges)"))
		return
	}

	rows := make([][]string, 0, len(doc.Hops))
	for _, h := range doc.Hops {
		rows = append(rows, []string{h.Direction, fmt.Sprintf("%d", h.Depth), h.From.String(), arrow(h), h.To.String()})
	}
	r.Table([]string{"Direction", "Depth", "From", "", "To"}, rows)
}

func arrow(h output.HopOutput) string {
	if h.Direction == string(pipeline.Backward) {
		return "<-"
	}
	return "->"
}
