// Package vectorindex implements the Project Index Manager: a cache of
// per-project resource handles, created lazily on first access and torn
// down idempotently.
//
// One client is cached per project behind a singleflight.Group, so
// concurrent first-access callers for the same project collapse into a
// single opener rather than racing to create the on-disk layout twice.
package vectorindex

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kayis-rahman/synapse/internal/config"
	"github.com/kayis-rahman/synapse/internal/debug"
	"github.com/kayis-rahman/synapse/internal/episodic"
	"github.com/kayis-rahman/synapse/internal/pool"
	"github.com/kayis-rahman/synapse/internal/semantic"
	"github.com/kayis-rahman/synapse/internal/symbolic"
	"github.com/kayis-rahman/synapse/internal/types"
)

// ProjectHandle bundles every per-project resource: the relational
// connection pool and the three memory stores layered over it. Semantic
// chunk vectors are colocated with the relational rows (design
// note), so "the index" is this handle's pool plus the project's
// dedicated directory under data_root, not a separate ANN structure.
type ProjectHandle struct {
	ProjectID string
	Pool      *pool.Pool
	Symbolic  *symbolic.Store
	Episodic  *episodic.Store
	Semantic  *semantic.Store
}

func (h *ProjectHandle) close() {
	h.Pool.CloseAll()
}

// Manager maintains project_id -> *ProjectHandle.
type Manager struct {
	cfg *config.Config

	mu      sync.Mutex
	handles map[string]*ProjectHandle
	sf      singleflight.Group
}

// NewManager creates an empty manager rooted at cfg.DataRoot.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg, handles: make(map[string]*ProjectHandle)}
}

// Acquire returns the cached handle for projectID, initializing it on
// first access. Concurrent first accesses for the same project_id are
// collapsed into a single opener.
func (m *Manager) Acquire(ctx context.Context, projectID string) (*ProjectHandle, error) {
	if err := types.ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if h, ok := m.handles[projectID]; ok {
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do(projectID, func() (any, error) {
		m.mu.Lock()
		if h, ok := m.handles[projectID]; ok {
			m.mu.Unlock()
			return h, nil
		}
		m.mu.Unlock()

		h, err := m.open(ctx, projectID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.handles[projectID] = h
		m.mu.Unlock()
		debug.Logf("vectorindex: initialized handle for project %s", projectID)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProjectHandle), nil
}

// open initializes the on-disk layout for a project that has never been
// accessed in this process: its directory, its relational connection
// pool, and the three stores' schemas. A query against project A can never
// observe vectors of project B, because every project gets its own
// directory and its own pool.
func (m *Manager) open(ctx context.Context, projectID string) (*ProjectHandle, error) {
	projectDir := m.cfg.ProjectDir(projectID)
	if err := os.MkdirAll(m.cfg.SemanticDir(projectID), 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory %s: %w", projectDir, err)
	}

	p, err := pool.Open(m.cfg.RelationalDBPath(projectID), m.cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening pool for project %s: %w", projectID, err)
	}

	symStore := symbolic.New(p)
	if err := symStore.EnsureSchema(ctx); err != nil {
		p.CloseAll()
		return nil, fmt.Errorf("preparing symbolic schema for %s: %w", projectID, err)
	}

	epStore := episodic.New(p, types.DedupMode(m.cfg.DeduplicationMode), m.cfg.MinEpisodeConfidence)
	if err := epStore.EnsureSchema(ctx); err != nil {
		p.CloseAll()
		return nil, fmt.Errorf("preparing episodic schema for %s: %w", projectID, err)
	}

	semStore := semantic.New(p, m.cfg.EmbeddingDim)
	if err := semStore.EnsureSchema(ctx); err != nil {
		p.CloseAll()
		return nil, fmt.Errorf("preparing semantic schema for %s: %w", projectID, err)
	}

	return &ProjectHandle{
		ProjectID: projectID,
		Pool:      p,
		Symbolic:  symStore,
		Episodic:  epStore,
		Semantic:  semStore,
	}, nil
}

// Remove drops the cached handle for projectID and closes its pool,
// idempotently. It does not delete the project's on-disk files; a full
// project deletion orchestrates that separately alongside the registry.
func (m *Manager) Remove(projectID string) {
	m.mu.Lock()
	h, ok := m.handles[projectID]
	if ok {
		delete(m.handles, projectID)
	}
	m.mu.Unlock()

	if ok {
		h.close()
		debug.Logf("vectorindex: removed handle for project %s", projectID)
	}
}

// CloseAll tears down every cached handle. Used on engine shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[string]*ProjectHandle)
	m.mu.Unlock()

	for _, h := range handles {
		h.close()
	}
}
