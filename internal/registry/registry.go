// Package registry maintains the root-level registry.db mapping
// project_id -> creation timestamp, and owns the explicit project
// create/delete lifecycle: a project is created on first write, and
// deleted only through an explicit cascading operation.
//
// The registry file itself is guarded with a cross-process file lock
// (gofrs/flock) so that two engine processes sharing a data_root don't
// race on registry.db's schema creation.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kayis-rahman/synapse/internal/synerr"
	"github.com/kayis-rahman/synapse/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	project_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
`

// Registry owns registry.db.
type Registry struct {
	dbPath string
	lock   *flock.Flock

	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the registry database at dataRoot/registry.db.
func Open(dataRoot string) (*Registry, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating data root %s: %w", dataRoot, err)
	}
	dbPath := filepath.Join(dataRoot, "registry.db")
	lockPath := dbPath + ".lock"

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(contextWithTimeout(), 50*time.Millisecond)
	if err != nil || !locked {
		return nil, fmt.Errorf("acquiring registry lock at %s: %w", lockPath, err)
	}
	defer fl.Unlock()

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening registry db %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing registry schema: %w", err)
	}
	return &Registry{dbPath: dbPath, lock: fl, db: db}, nil
}

func contextWithTimeout() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = cancel
	return ctx
}

// EnsureProject records project_id on first write. Idempotent.
func (r *Registry) EnsureProject(ctx context.Context, projectID string) (*types.Project, error) {
	if err := types.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, created_at) VALUES (?, ?)
		 ON CONFLICT(project_id) DO NOTHING`, projectID, now)
	if err != nil {
		return nil, fmt.Errorf("registering project %s: %w", projectID, err)
	}

	var createdAt int64
	if err := r.db.QueryRowContext(ctx, `SELECT created_at FROM projects WHERE project_id = ?`, projectID).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("reading registered project %s: %w", projectID, err)
	}
	return &types.Project{ID: projectID, CreatedAt: createdAt}, nil
}

// List returns every known project_id (tool surface: proj.list).
func (r *Registry) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT project_id FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Forget removes project_id from the registry. It does not touch the
// project's on-disk relational.db or semantic/ directory — callers
// orchestrate the full cascading delete by calling Forget
// alongside the store-level deletes.
func (r *Registry) Forget(ctx context.Context, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("forgetting project %s: %w", projectID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return synerr.New(synerr.NotFound, "", "project %s not found", projectID)
	}
	return nil
}

// Close closes the registry database handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}
