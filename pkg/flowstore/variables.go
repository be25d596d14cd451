package flowstore

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

// SetVariable stores a flow variable. Values keep their JSON type.
func (s *Store) SetVariable(ctx context.Context, flowName, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode variable %q: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_variable (flow_name, name, value) VALUES (?, ?, ?)
		ON CONFLICT (flow_name, name) DO UPDATE SET value = excluded.value`,
		flowName, name, string(raw))
	if err != nil {
		return fmt.Errorf("set variable %q: %w", name, err)
	}
	return nil
}

func (s *Store) DeleteVariable(ctx context.Context, flowName, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_variable WHERE flow_name = ? AND name = ?`, flowName, name)
	return err
}

// Variables returns every stored variable of a flow.
func (s *Store) Variables(ctx context.Context, flowName string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM flow_variable WHERE flow_name = ?`, flowName)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	vars := make(map[string]any)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode variable %q: %w", name, err)
		}
		vars[name] = v
	}
	return vars, rows.Err()
}

// VariableProvider snapshots a flow's stored variables. Lookups during a run
// never touch the database.
func (s *Store) VariableProvider(ctx context.Context, flowName string) (varsource.Map, error) {
	vars, err := s.Variables(ctx, flowName)
	if err != nil {
		return nil, err
	}
	return varsource.Map(vars), nil
}
