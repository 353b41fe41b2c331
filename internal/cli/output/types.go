package output

import (
	"time"

	"github.com/leapstack-labs/schemamap/pkg/core"
)

// StepOutput is one committed (or skipped) plan step.
type StepOutput struct {
	Index      int              `json:"index"`
	Name       string           `json:"name"`
	Schema     []core.Attribute `json:"schema"`
	Added      []core.Attribute `json:"added"`
	Removed    []core.Attribute `json:"removed"`
	Derived    int              `json:"derived"`
	Deleted    int              `json:"deleted"`
	Carried    int              `json:"carried"`
	Marked     int              `json:"marked"`
	Layer      int              `json:"layer"`
	Skipped    bool             `json:"skipped,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// ProvenanceOutput explains one attribute of the final schema.
type ProvenanceOutput struct {
	Attribute core.Attribute   `json:"attribute"`
	Sources   []core.Attribute `json:"sources"`
	Origins   []core.Attribute `json:"origins"`
	Path      []core.Attribute `json:"path"`
}

// ReplayOutput is the JSON document printed by replay.
type ReplayOutput struct {
	Plan       string             `json:"plan"`
	RunID      string             `json:"run_id,omitempty"`
	Source     []core.Attribute   `json:"source"`
	Target     []core.Attribute   `json:"target,omitempty"`
	Steps      []StepOutput       `json:"steps"`
	Final      []core.Attribute   `json:"final"`
	Mapped     *bool              `json:"mapped,omitempty"`
	Provenance []ProvenanceOutput `json:"provenance"`
	Error      string             `json:"error,omitempty"`
}

// HopOutput is one lineage edge reached by trace.
type HopOutput struct {
	Direction string         `json:"direction"`
	Depth     int            `json:"depth"`
	From      core.Attribute `json:"from"`
	To        core.Attribute `json:"to"`
}

// TraceOutput is the JSON document printed by trace.
type TraceOutput struct {
	Plan      string           `json:"plan"`
	Attribute string           `json:"attribute"`
	Direction string           `json:"direction"`
	Targets   []core.Attribute `json:"targets"`
	Sources   []core.Attribute `json:"sources"`
	Hops      []HopOutput      `json:"hops"`
}

// RunInfo summarizes a recorded run.
type RunInfo struct {
	ID          string           `json:"id"`
	Plan        string           `json:"plan"`
	Status      string           `json:"status"`
	Source      []core.Attribute `json:"source"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// ForestNode is one persisted lineage node.
type ForestNode struct {
	ID        int            `json:"id"`
	Parent    int            `json:"parent"`
	Root      int            `json:"root"`
	Attribute core.Attribute `json:"attribute"`
	Layer     int            `json:"layer"`
	Updated   bool           `json:"updated"`
}

// HistoryOutput is the JSON document printed by history without a run ID.
type HistoryOutput struct {
	Runs []RunInfo `json:"runs"`
}

// RunDetailOutput is the JSON document printed by history <run-id>.
type RunDetailOutput struct {
	Run    RunInfo      `json:"run"`
	Steps  []StepOutput `json:"steps"`
	Forest []ForestNode `json:"forest"`
}
