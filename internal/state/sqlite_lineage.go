package state

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/leapstack-labs/schemamap/pkg/lineage"
)

// RecordStep saves the outcome of one step of a run.
func (s *SQLiteStore) RecordStep(runID string, step *Step) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	schema, err := encodeAttributes(step.Schema)
	if err != nil {
		return err
	}
	added, err := encodeAttributes(step.Added)
	if err != nil {
		return err
	}
	removed, err := encodeAttributes(step.Removed)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx(),
		`INSERT INTO run_steps (run_id, step_index, name, schema, added, removed,
		    derived, deleted, carried, marked, layer, skipped, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, step.Index, step.Name, schema, added, removed,
		step.Derived, step.Deleted, step.Carried, step.Marked, step.Layer,
		step.Skipped, nullableString(step.Error), step.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", step.Name, err)
	}
	return nil
}

// ListSteps retrieves every step of a run in order.
func (s *SQLiteStore) ListSteps(runID string) ([]*Step, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT step_index, name, schema, added, removed, derived, deleted, carried,
		    marked, layer, skipped, COALESCE(error, ''), duration_ms
		 FROM run_steps WHERE run_id = ? ORDER BY step_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step := &Step{RunID: runID}
		var schema, added, removed string
		var durationMS int64
		if err := rows.Scan(&step.Index, &step.Name, &schema, &added, &removed,
			&step.Derived, &step.Deleted, &step.Carried, &step.Marked, &step.Layer,
			&step.Skipped, &step.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if step.Schema, err = decodeAttributes(schema); err != nil {
			return nil, err
		}
		if step.Added, err = decodeAttributes(added); err != nil {
			return nil, err
		}
		if step.Removed, err = decodeAttributes(removed); err != nil {
			return nil, err
		}
		step.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// SaveForest stores the lineage forest of a run, replacing any earlier copy.
func (s *SQLiteStore) SaveForest(runID string, nodes []lineage.NodeInfo) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx(), `DELETE FROM lineage_nodes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx(),
		`INSERT INTO lineage_nodes (run_id, node_id, parent_id, root_id, name, data_type, layer, updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.ExecContext(ctx(), runID, int(n.ID), int(n.Parent), int(n.Root),
			n.Attribute.Name, n.Attribute.Type.String(), n.Layer, n.Updated); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", n.ID, err)
		}
	}

	s.logger.Debug("saved forest", "run_id", runID, "nodes", len(nodes))
	return tx.Commit()
}

// GetForest retrieves the lineage forest of a run in creation order. Child
// lists are rebuilt from the parent links.
func (s *SQLiteStore) GetForest(runID string) ([]lineage.NodeInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT node_id, parent_id, root_id, name, data_type, layer, updated
		 FROM lineage_nodes WHERE run_id = ? ORDER BY node_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get forest: %w", err)
	}
	defer rows.Close()

	var nodes []lineage.NodeInfo
	pos := map[lineage.NodeID]int{}
	for rows.Next() {
		var (
			n                lineage.NodeInfo
			id, parent, root int
			name, dataType   string
		)
		if err := rows.Scan(&id, &parent, &root, &name, &dataType, &n.Layer, &n.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.ID = lineage.NodeID(id)
		n.Parent = lineage.NodeID(parent)
		n.Root = lineage.NodeID(root)
		n.Attribute = core.NewAttribute(name, core.DataType(dataType))

		pos[n.ID] = len(nodes)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if n.Parent == lineage.NoParent {
			continue
		}
		if i, ok := pos[n.Parent]; ok {
			nodes[i].Children = append(nodes[i].Children, n.ID)
		}
	}
	return nodes, nil
}
