package flowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/compress"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

type RunSummary struct {
	ID            idwrap.IDWrap     `json:"id"`
	FlowName      string            `json:"flowName"`
	Status        runner.FlowStatus `json:"status"`
	StartedAt     time.Time         `json:"startedAt"`
	Duration      time.Duration     `json:"duration"`
	FailedNodeIDs []string          `json:"failedNodeIds"`
}

type NodeExecution struct {
	ExecutionID   idwrap.IDWrap   `json:"executionId"`
	NodeID        string          `json:"nodeId"`
	Name          string          `json:"name"`
	State         mflow.NodeState `json:"state"`
	Error         string          `json:"error,omitempty"`
	Duration      time.Duration   `json:"duration"`
	IterationPath []int           `json:"iterationPath,omitempty"`
	Output        any             `json:"output,omitempty"`
}

type RunRecord struct {
	RunSummary
	VisitedNodeIDs []string        `json:"visitedNodeIds"`
	Context        map[string]any  `json:"context"`
	Nodes          []NodeExecution `json:"nodes"`
}

// SaveRun records a finished run together with its node executions.
func (s *Store) SaveRun(ctx context.Context, flowName string, o runner.Outcome) error {
	if !runner.IsFlowStatusDone(o.Status) {
		return fmt.Errorf("%w: %s is %s", ErrRunNotDone, o.RunID, o.Status)
	}
	visited, err := json.Marshal(nonNil(o.VisitedNodeIDs))
	if err != nil {
		return err
	}
	failed, err := json.Marshal(nonNil(o.FailedNodeIDs))
	if err != nil {
		return err
	}
	rawCtx, err := json.Marshal(o.Context)
	if err != nil {
		return fmt.Errorf("encode run context: %w", err)
	}
	packedCtx, ctxType, err := s.pack(rawCtx)
	if err != nil {
		return fmt.Errorf("compress run context: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flow_run (id, flow_name, status, started_at, duration_ms, visited_nodes, failed_nodes, context, context_compress_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.RunID.String(), flowName, int(o.Status), o.StartedAt.UnixMilli(), o.Duration.Milliseconds(),
			string(visited), string(failed), packedCtx, ctxType,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO node_execution (id, run_id, node_id, name, state, error, duration_ms, iteration_path, output, output_compress_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, st := range o.Nodes {
			if err := s.insertExecution(ctx, stmt, o.RunID, st); err != nil {
				return fmt.Errorf("insert node execution %s: %w", st.NodeID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "run saved",
		slog.String("run_id", o.RunID.String()),
		slog.String("flow", flowName),
		slog.Int("nodes", len(o.Nodes)))
	return nil
}

func (s *Store) insertExecution(ctx context.Context, stmt *sql.Stmt, runID idwrap.IDWrap, st runner.FlowNodeStatus) error {
	var errText sql.NullString
	if st.Error != nil {
		errText = sql.NullString{String: st.Error.Error(), Valid: true}
	}
	var path sql.NullString
	if st.IterationContext != nil {
		raw, err := json.Marshal(st.IterationContext.IterationPath)
		if err != nil {
			return err
		}
		path = sql.NullString{String: string(raw), Valid: true}
	}

	var (
		output []byte
		otype  compress.Type
	)
	if st.OutputData != nil {
		raw, err := json.Marshal(st.OutputData)
		if err != nil {
			return err
		}
		if output, otype, err = s.pack(raw); err != nil {
			return err
		}
	}

	_, err := stmt.ExecContext(ctx,
		st.ExecutionID.String(), runID.String(), st.NodeID, st.Name, st.State,
		errText, st.RunDuration.Milliseconds(), path, output, otype)
	return err
}

// ListRuns returns the most recent runs first. An empty flowName lists runs
// of every flow.
func (s *Store) ListRuns(ctx context.Context, flowName string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flow_name, status, started_at, duration_ms, failed_nodes
		FROM flow_run
		WHERE ? = '' OR flow_name = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, flowName, flowName, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var (
			sum     RunSummary
			failed  string
			started int64
			durMs   int64
			id      string
			status  int
		)
		if err := rows.Scan(&id, &sum.FlowName, &status, &started, &durMs, &failed); err != nil {
			return nil, err
		}
		if sum.ID, err = idwrap.NewText(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		sum.Status = runner.FlowStatus(status)
		sum.StartedAt = time.UnixMilli(started)
		sum.Duration = time.Duration(durMs) * time.Millisecond
		if err := json.Unmarshal([]byte(failed), &sum.FailedNodeIDs); err != nil {
			return nil, err
		}
		runs = append(runs, sum)
	}
	return runs, rows.Err()
}

// GetRun loads one run with its context snapshot and node executions in
// execution order.
func (s *Store) GetRun(ctx context.Context, id idwrap.IDWrap) (RunRecord, error) {
	var (
		rec      RunRecord
		status   int
		started  int64
		durMs    int64
		visited  string
		failed   string
		ctxBlob  []byte
		ctxCType compress.Type
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT flow_name, status, started_at, duration_ms, visited_nodes, failed_nodes, context, context_compress_type
		FROM flow_run WHERE id = ?`, id.String()).
		Scan(&rec.FlowName, &status, &started, &durMs, &visited, &failed, &ctxBlob, &ctxCType)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run: %w", err)
	}

	rec.ID = id
	rec.Status = runner.FlowStatus(status)
	rec.StartedAt = time.UnixMilli(started)
	rec.Duration = time.Duration(durMs) * time.Millisecond
	if err := json.Unmarshal([]byte(visited), &rec.VisitedNodeIDs); err != nil {
		return RunRecord{}, err
	}
	if err := json.Unmarshal([]byte(failed), &rec.FailedNodeIDs); err != nil {
		return RunRecord{}, err
	}
	if err := unpackJSON(ctxBlob, ctxCType, &rec.Context); err != nil {
		return RunRecord{}, fmt.Errorf("decode run context: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_id, name, state, error, duration_ms, iteration_path, output, output_compress_type
		FROM node_execution WHERE run_id = ? ORDER BY id`, id.String())
	if err != nil {
		return RunRecord{}, fmt.Errorf("list node executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			ne     NodeExecution
			execID string
			errTxt sql.NullString
			durMs  int64
			path   sql.NullString
			output []byte
			otype  compress.Type
		)
		if err := rows.Scan(&execID, &ne.NodeID, &ne.Name, &ne.State, &errTxt, &durMs, &path, &output, &otype); err != nil {
			return RunRecord{}, err
		}
		if ne.ExecutionID, err = idwrap.NewText(execID); err != nil {
			return RunRecord{}, err
		}
		ne.Error = errTxt.String
		ne.Duration = time.Duration(durMs) * time.Millisecond
		if path.Valid {
			if err := json.Unmarshal([]byte(path.String), &ne.IterationPath); err != nil {
				return RunRecord{}, err
			}
		}
		if err := unpackJSON(output, otype, &ne.Output); err != nil {
			return RunRecord{}, fmt.Errorf("decode node output: %w", err)
		}
		rec.Nodes = append(rec.Nodes, ne)
	}
	return rec, rows.Err()
}

// DeleteRunsBefore prunes history older than cutoff and reports how many
// runs were removed.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM node_execution WHERE run_id IN (SELECT id FROM flow_run WHERE started_at < ?)`,
			cutoff.UnixMilli()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM flow_run WHERE started_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func unpackJSON(data []byte, ctype compress.Type, v any) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := compress.Decompress(data, ctype)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
