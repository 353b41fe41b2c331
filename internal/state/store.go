// Package state records plan replays in SQLite.
// It tracks runs, the committed schema of every step and the final
// lineage forest of each run.
package state

import (
	"errors"
	"time"

	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one replay of a plan.
type Run struct {
	ID          string           `json:"id"`
	Plan        string           `json:"plan"`
	Source      []core.Attribute `json:"source"`
	Status      RunStatus        `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Step is the persisted outcome of one plan step.
type Step struct {
	RunID    string           `json:"run_id"`
	Index    int              `json:"index"`
	Name     string           `json:"name"`
	Schema   []core.Attribute `json:"schema"`
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

// Store defines the run history operations.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(planName string, source core.Schema) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	RecordStep(runID string, step *Step) error
	ListSteps(runID string) ([]*Step, error)

	SaveForest(runID string, nodes []lineage.NodeInfo) error
	GetForest(runID string) ([]lineage.NodeInfo, error)
}
