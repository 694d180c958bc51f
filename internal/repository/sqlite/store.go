// Package sqlite is a docket store backed by a local SQLite database, used
// by the podctl CLI and for running the assistant without AWS.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pod-assistant/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const docketColumns = "id, customer_name, address, status, pod_verified, updated_at"

// Store manages docket persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the docket database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps :memory: databases alive and serialises writes.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has v%d, expected v%d (delete %s to recreate)", ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// GetDocket fetches a docket by id.
func (s *Store) GetDocket(ctx context.Context, id string) (domain.Docket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+docketColumns+` FROM dockets WHERE id = ?`, id)
	d, err := scanDocket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Docket{}, fmt.Errorf("get docket %s: %w", id, domain.ErrDocketNotFound)
	}
	if err != nil {
		return domain.Docket{}, fmt.Errorf("get docket: %w", err)
	}
	return d, nil
}

// UpdateDocketStatus rewrites status and verification for one docket.
func (s *Store) UpdateDocketStatus(ctx context.Context, id string, status domain.DocketStatus, verified bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE dockets SET status = ?, pod_verified = ?, updated_at = ? WHERE id = ?`,
		string(status),
		boolToInt(verified),
		s.now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update docket: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update docket rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update docket %s: %w", id, domain.ErrDocketNotFound)
	}
	return nil
}

// SeedDockets inserts dockets that do not exist yet and returns how many were written.
func (s *Store) SeedDockets(ctx context.Context, dockets []domain.Docket) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	inserted := 0
	for _, d := range dockets {
		updated := d.UpdatedAt
		if updated.IsZero() {
			updated = s.now()
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO dockets (`+docketColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID,
			d.CustomerName,
			d.Address,
			string(d.Status),
			boolToInt(d.PODVerified),
			updated.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("seed docket %s: %w", d.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("seed docket rows affected: %w", err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed tx: %w", err)
	}
	return inserted, nil
}

// ListDockets returns every docket ordered by id.
func (s *Store) ListDockets(ctx context.Context) ([]domain.Docket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+docketColumns+` FROM dockets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list dockets: %w", err)
	}
	defer rows.Close()

	var dockets []domain.Docket
	for rows.Next() {
		d, err := scanDocket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan docket: %w", err)
		}
		dockets = append(dockets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dockets: %w", err)
	}
	return dockets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocket(row rowScanner) (domain.Docket, error) {
	var (
		d        domain.Docket
		status   string
		verified int
		updated  string
	)
	if err := row.Scan(&d.ID, &d.CustomerName, &d.Address, &status, &verified, &updated); err != nil {
		return domain.Docket{}, err
	}
	d.Status = domain.DocketStatus(status)
	d.PODVerified = verified != 0
	ts, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return domain.Docket{}, fmt.Errorf("parse updated_at: %w", err)
	}
	d.UpdatedAt = ts
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
