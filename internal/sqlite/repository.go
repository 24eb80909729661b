package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pavel-fokin/lan-share/internal/files"
	_ "modernc.org/sqlite"
)

// Repository implements files.MetadataStore using SQLite
type Repository struct {
	db       *sql.DB
	reserved []string
}

// NewRepository opens the database at dbPath. When the database lives inside
// sharedDir its files are reserved and never listed as shared files.
func NewRepository(dbPath, sharedDir string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if sameDir(filepath.Dir(dbPath), sharedDir) {
		base := filepath.Base(dbPath)
		repo.reserved = []string{base, base + "-journal", base + "-wal", base + "-shm"}
	}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// initSchema creates the necessary database tables
func (r *Repository) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS metadata (
		name TEXT PRIMARY KEY,
		device_id TEXT NOT NULL DEFAULT '',
		device_name TEXT NOT NULL DEFAULT '',
		uploaded_at DATETIME NOT NULL
	);`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}
	return nil
}

// Load retrieves the whole document. Query failures yield an empty document.
func (r *Repository) Load(ctx context.Context) files.Document {
	doc, err := r.load(ctx)
	if err != nil {
		slog.Warn("Failed to load metadata", "error", err)
		return files.Document{}
	}
	return doc
}

func (r *Repository) load(ctx context.Context) (files.Document, error) {
	query := `SELECT name, device_id, device_name, uploaded_at FROM metadata`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	doc := files.Document{}
	for rows.Next() {
		var (
			name       string
			rec        files.Record
			uploadedAt time.Time
		)
		if err := rows.Scan(&name, &rec.DeviceID, &rec.DeviceName, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		rec.UploadedAt = uploadedAt.UTC()
		doc[name] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metadata rows: %w", err)
	}

	return doc, nil
}

// Save replaces every stored record with doc in a single transaction
func (r *Repository) Save(ctx context.Context, doc files.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO metadata (name, device_id, device_name, uploaded_at)
	VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, rec := range doc {
		if _, err := stmt.ExecContext(ctx, name, rec.DeviceID, rec.DeviceName, rec.UploadedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert metadata for %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata: %w", err)
	}
	return nil
}

// ReservedNames implements files.MetadataStore
func (r *Repository) ReservedNames() []string {
	return r.reserved
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
