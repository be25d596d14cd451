// Package flowstore persists run history, flow variables and sealed secrets
// in a local sqlite database.
package flowstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/compress"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/credvault"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVault        = errors.New("store has no vault configured")
	ErrRunNotDone     = errors.New("run has not finished")
)

// compressThreshold is the payload size above which blobs are zstd compressed.
const compressThreshold = 1024

type Options struct {
	Logger *slog.Logger
	// Vault seals secrets. Secret operations fail with ErrNoVault without one.
	Vault        *credvault.Vault
	CompressType compress.Type
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	vault  *credvault.Vault
	ctype  compress.Type
}

// Open opens (and creates) the database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	return open(ctx, dsn, opts)
}

// OpenMemory opens an isolated in-memory database.
func OpenMemory(ctx context.Context, opts Options) (*Store, error) {
	dsn := fmt.Sprintf("file:flowstore_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", ulid.Make().String())
	return open(ctx, dsn, opts)
}

func open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer; one connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctype := opts.CompressType
	if ctype == compress.None {
		ctype = compress.Zstd
	}
	return &Store{db: db, logger: logger, vault: opts.Vault, ctype: ctype}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// pack compresses payloads above compressThreshold.
func (s *Store) pack(data []byte) ([]byte, compress.Type, error) {
	if len(data) <= compressThreshold {
		return data, compress.None, nil
	}
	packed, err := compress.Compress(data, s.ctype)
	if err != nil {
		return nil, 0, err
	}
	return packed, s.ctype, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
