package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/schemamap/internal/cli/output"
	"github.com/leapstack-labs/schemamap/internal/state"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs or show one run",
		Long: `Without arguments, list the most recent runs in the state database.
With a run ID, show every recorded step of that run and its final lineage forest.`,
		Example: `  # Recent runs
  schemamap history

  # One run in detail, as JSON
  schemamap history 3f2a9c1e-... -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryShow(cmd, args[0])
			}
			return runHistoryList(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of runs to list (default: history_limit)")

	return cmd
}

func runHistoryList(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	store, cleanup, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	limit := opts.Limit
	if limit <= 0 {
		limit = cmdCtx.Cfg.HistoryLimit
	}

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		doc := output.HistoryOutput{Runs: make([]output.RunInfo, 0, len(runs))}
		for _, run := range runs {
			doc.Runs = append(doc.Runs, runInfo(run))
		}
		return r.JSON(doc)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	if len(runs) == 0 {
		r.Println(r.Styles().Muted.Render("(no runs recorded)"))
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Plan,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			summarizeNames(run.Source),
		})
	}
	r.Table([]string{"Run", "Plan", "Status", "Started", "Source"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, runID string) error {
	cmdCtx := NewCommandContext(cmd)
	store, cleanup, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := store.GetRun(runID)
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			return fmt.Errorf("no run with ID %s", runID)
		}
		return err
	}
	steps, err := store.ListSteps(runID)
	if err != nil {
		return err
	}
	nodes, err := store.GetForest(runID)
	if err != nil {
		return err
	}

	doc := output.RunDetailOutput{
		Run:    runInfo(run),
		Steps:  make([]output.StepOutput, 0, len(steps)),
		Forest: make([]output.ForestNode, 0, len(nodes)),
	}
	for _, s := range steps {
		doc.Steps = append(doc.Steps, stepOutput(s))
	}
	for _, n := range nodes {
		doc.Forest = append(doc.Forest, forestNode(n))
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(doc)
	}
	runDocument(r, &doc)
	return nil
}

// runDocument outputs one run as text or markdown.
func runDocument(r *output.Renderer, doc *output.RunDetailOutput) {
	run := doc.Run
	r.Header(1, fmt.Sprintf("Run %s", run.ID))
	r.KeyValue("Plan", run.Plan)
	r.KeyValue("Status", run.Status)
	r.KeyValue("Source", formatAttrs(run.Source))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		r.KeyValue("Completed", run.CompletedAt.Local().Format(time.DateTime))
	}
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	r.Println("")

	r.Header(2, "Steps")
	rows := make([][]string, 0, len(doc.Steps))
	for _, s := range doc.Steps {
		status := "applied"
		if s.Skipped {
			status = "skipped"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Index+1),
			s.Name,
			status,
			formatAttrs(s.Schema),
			fmt.Sprintf("%d", s.Layer),
		})
	}
	r.Table([]string{"#", "Step", "Status", "Schema", "Layer"}, rows)

	r.Header(2, "Lineage forest")
	rows = make([][]string, 0, len(doc.Forest))
	for _, n := range doc.Forest {
		parent := "-"
		if n.Parent != int(lineage.NoParent) {
			parent = fmt.Sprintf("%d", n.Parent)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", n.ID),
			parent,
			n.Attribute.String(),
			fmt.Sprintf("%d", n.Layer),
			fmt.Sprintf("%t", n.Updated),
		})
	}
	r.Table([]string{"Node", "Parent", "Attribute", "Layer", "Updated"}, rows)
}

func runInfo(run *state.Run) output.RunInfo {
	return output.RunInfo{
		ID:          run.ID,
		Plan:        run.Plan,
		Status:      string(run.Status),
		Source:      nonNil(run.Source),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}

func forestNode(n lineage.NodeInfo) output.ForestNode {
	return output.ForestNode{
		ID:        int(n.ID),
		Parent:    int(n.Parent),
		Root:      int(n.Root),
		Attribute: n.Attribute,
		Layer:     n.Layer,
		Updated:   n.Updated,
	}
}
