package flowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

// PutSecret seals value with the store's vault and saves it under name.
func (s *Store) PutSecret(ctx context.Context, name, value string) error {
	if s.vault == nil {
		return ErrNoVault
	}
	sealed, err := s.vault.SealString(name, value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secret (name, sealed, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at`,
		name, sealed, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put secret %q: %w", name, err)
	}
	return nil
}

func (s *Store) Secret(ctx context.Context, name string) (string, error) {
	if s.vault == nil {
		return "", ErrNoVault
	}
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM secret WHERE name = ?`, name).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return s.vault.OpenString(name, sealed)
}

func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secret WHERE name = ?`, name)
	return err
}

// SecretNames lists stored secret names without opening them.
func (s *Store) SecretNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM secret ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SecretProvider opens every stored secret up front so the resolver can read
// them synchronously. A secret that fails to open aborts the whole load.
func (s *Store) SecretProvider(ctx context.Context) (varsource.Map, error) {
	if s.vault == nil {
		return nil, ErrNoVault
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, sealed FROM secret`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	secrets := make(varsource.Map)
	for rows.Next() {
		var (
			name   string
			sealed []byte
		)
		if err := rows.Scan(&name, &sealed); err != nil {
			return nil, err
		}
		plain, err := s.vault.OpenString(name, sealed)
		if err != nil {
			return nil, err
		}
		secrets[name] = plain
	}
	return secrets, rows.Err()
}
