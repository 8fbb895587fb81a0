package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// CreatedAtLayout matches JavaScript's Date.toISOString, so rows written by
// earlier tooling sort together with ours.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// Options configures Open
type Options struct {
	BusyTimeout time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

// SQLiteStore keeps raw snapshot documents in one SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path, applies pragmas
// and runs pending migrations.
func Open(path string, opts Options) (*SQLiteStore, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 10 * time.Second
	}

	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	// One writer; also keeps every query on the same :memory: database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	opts.Logger.Info("Snapshot store ready", zap.String("path", path))
	return &SQLiteStore{db: db, logger: opts.Logger, now: opts.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("storage: migrations source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("storage: migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	// m.Close would close db as well; only the source is released here.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: migrate up: %w", err)
	}
	return nil
}

// Get returns one snapshot
func (s *SQLiteStore) Get(ctx context.Context, id string) (*snapshot.Record, error) {
	var rec snapshot.Record
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, time, raw_json, created_at FROM snapshots WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Time, &raw, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &snapshot.NotFoundError{Kind: "snapshot", ID: id}
	}
	if err != nil {
		return nil, &snapshot.StorageError{Op: "get", Err: err}
	}
	rec.Raw = []byte(raw)
	return &rec, nil
}

// Put inserts or replaces a snapshot and stamps its created_at
func (s *SQLiteStore) Put(ctx context.Context, id string, raw []byte, t int64) (*snapshot.Meta, error) {
	meta := &snapshot.Meta{
		ID:        id,
		Time:      t,
		CreatedAt: s.now().UTC().Format(CreatedAtLayout),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (id, time, raw_json, created_at) VALUES (?, ?, ?, ?)`,
		meta.ID, meta.Time, string(raw), meta.CreatedAt,
	)
	if err != nil {
		return nil, &snapshot.StorageError{Op: "put", Err: err}
	}
	return meta, nil
}

// List returns every snapshot, newest first
func (s *SQLiteStore) List(ctx context.Context) ([]snapshot.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, raw_json, created_at FROM snapshots ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, &snapshot.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	out := make([]snapshot.Record, 0)
	for rows.Next() {
		var rec snapshot.Record
		var raw string
		if err := rows.Scan(&rec.ID, &rec.Time, &raw, &rec.CreatedAt); err != nil {
			return nil, &snapshot.StorageError{Op: "list", Err: err}
		}
		rec.Raw = []byte(raw)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &snapshot.StorageError{Op: "list", Err: err}
	}
	return out, nil
}

// Delete removes a snapshot
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return &snapshot.StorageError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &snapshot.StorageError{Op: "delete", Err: err}
	}
	if n == 0 {
		return &snapshot.NotFoundError{Kind: "snapshot", ID: id}
	}
	return nil
}

// Count returns the number of stored snapshots
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, &snapshot.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &snapshot.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.logger.Info("Closing snapshot store")
	return s.db.Close()
}
