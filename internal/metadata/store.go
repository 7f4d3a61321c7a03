// Package metadata keeps the per-document side-index: one row per ingested
// playbook with its file details, chunk count and ingestion status.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tom2tomtomtom/Playbook/internal/metadata/migrations"
)

var (
	// ErrNotFound indicates no record exists for the id.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidRecord indicates a record missing required fields.
	ErrInvalidRecord = errors.New("invalid document record")
)

// Status is the ingestion state of a document.
type Status string

const (
	StatusIngesting Status = "ingesting"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// Record describes one ingested document.
type Record struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	ChunkCount int       `json:"chunk_count"`
	Status     Status    `json:"status"`
}

// Store persists document records.
type Store interface {
	// Put inserts or replaces a record.
	Put(ctx context.Context, r Record) error

	// Get returns ErrNotFound when no record exists.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records ordered by creation time, oldest first.
	List(ctx context.Context, offset, limit int) ([]Record, error)

	Count(ctx context.Context) (int, error)

	// CountStatus counts records in one status.
	CountStatus(ctx context.Context, status Status) (int, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	SetStatus(ctx context.Context, id string, status Status, chunkCount int) error

	// CountChunks sums chunk counts of ready documents.
	CountChunks(ctx context.Context) (int, error)

	Close() error
}

// Config configures the SQLite store.
type Config struct {
	// Path is the database file. ":memory:" keeps everything in memory.
	Path string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "./data/metadata.db"
	}
}

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the database and runs pending migrations.
func Open(cfg Config, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, path: cfg.Path, logger: logger}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("metadata store opened", zap.String("path", cfg.Path))
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies NNN_name.up.sql files newer than the recorded version.
func (s *SQLiteStore) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("applied migration", zap.String("name", name))
	}
	return nil
}

// Put inserts or replaces a record. Replacing keeps the original list position.
func (s *SQLiteStore) Put(ctx context.Context, r Record) error {
	if r.ID == "" || r.Filename == "" {
		return fmt.Errorf("%w: id and filename are required", ErrInvalidRecord)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusIngesting
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, filename, file_type, file_size, uploaded_by, created_at, chunk_count, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			file_type = excluded.file_type,
			file_size = excluded.file_size,
			uploaded_by = excluded.uploaded_by,
			chunk_count = excluded.chunk_count,
			status = excluded.status
	`, r.ID, r.Filename, r.FileType, r.FileSize, r.UploadedBy,
		r.CreatedAt.UnixNano(), r.ChunkCount, string(r.Status))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `id, filename, file_type, file_size, uploaded_by, created_at, chunk_count, status`

// Get retrieves a record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM documents WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit records starting at offset.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]Record, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("invalid range: offset %d, limit %d", offset, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM documents ORDER BY created_at, seq LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return records, nil
}

// Count returns the number of records in any status.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// CountStatus returns the number of records in status.
func (s *SQLiteStore) CountStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE status = ?", string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s documents: %w", status, err)
	}
	return n, nil
}

// Delete removes a record by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// SetStatus updates status and chunk count.
func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status Status, chunkCount int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, chunk_count = ? WHERE id = ?",
		string(status), chunkCount, id)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountChunks sums chunk_count over ready documents.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(chunk_count), 0) FROM documents WHERE status = ?",
		string(StatusReady)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r       Record
		created int64
		status  string
	)
	if err := row.Scan(&r.ID, &r.Filename, &r.FileType, &r.FileSize, &r.UploadedBy,
		&created, &r.ChunkCount, &status); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Status = Status(status)
	return &r, nil
}

var _ Store = (*SQLiteStore)(nil)
