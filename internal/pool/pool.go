// Package pool implements a per-project connection pool: a bounded LIFO
// pool of relational DB handles with overflow and graceful close.
//
// Overflow handles are tagged explicitly at acquisition time rather than
// detected later by object identity, which is brittle under concurrent
// release.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kayis-rahman/synapse/internal/debug"
)

// Handle wraps a single SQLite connection. It is not safe for concurrent
// use by two callers at once — the contract in is that the
// caller acquires, uses exclusively, and releases.
type Handle struct {
	DB       *sql.DB
	overflow bool
	closed   bool
}

// Pool is a bounded LIFO pool of Handles for one project's relational.db.
type Pool struct {
	dbPath   string
	poolSize int

	mu   sync.Mutex
	idle []*Handle
}

// Open creates a Pool and eagerly opens poolSize handles, each configured
// for write-ahead journaling, NORMAL durability, and foreign-key
// enforcement.
func Open(dbPath string, poolSize int) (*Pool, error) {
	if poolSize <= 0 {
		poolSize = 1
	}
	p := &Pool{dbPath: dbPath, poolSize: poolSize}
	for i := 0; i < poolSize; i++ {
		h, err := openHandle(dbPath, false)
		if err != nil {
			p.CloseAll()
			return nil, fmt.Errorf("opening pool connection %d/%d for %s: %w", i+1, poolSize, dbPath, err)
		}
		p.idle = append(p.idle, h)
	}
	debug.Logf("pool: opened %d connections for %s", poolSize, dbPath)
	return p, nil
}

func openHandle(dbPath string, overflow bool) (*Handle, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	return &Handle{DB: db, overflow: overflow}, nil
}

// healthCheck runs a trivial statement to detect a handle that has gone
// bad since it was last pooled; a handle that fails is discarded rather
// than returned to the pool.
func healthCheck(h *Handle) bool {
	return h.DB.Ping() == nil
}

// Acquire returns a handle in scoped-acquisition form: the caller must call
// the returned release func on every exit path (defer release()). If the
// pool is empty, an overflow handle is opened; overflow handles are closed
// on release rather than returned to the pool.
func (p *Pool) Acquire(ctx context.Context) (*Handle, func(), error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		h := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if !healthCheck(h) {
			debug.Logf("pool: discarding unhealthy handle for %s", p.dbPath)
			_ = h.DB.Close()
			p.mu.Lock()
			continue
		}
		return h, p.releaseFunc(h), nil
	}
	p.mu.Unlock()

	h, err := openHandle(p.dbPath, true)
	if err != nil {
		return nil, nil, fmt.Errorf("opening overflow connection for %s: %w", p.dbPath, err)
	}
	debug.Logf("pool: opened overflow connection for %s", p.dbPath)
	return h, p.releaseFunc(h), nil
}

// releaseFunc builds the idempotent release closure returned by Acquire.
// Releases never panic or return an error.
func (p *Pool) releaseFunc(h *Handle) func() {
	var once sync.Once
	return func() {
		once.Do(func() { p.release(h) })
	}
}

func (p *Pool) release(h *Handle) {
	if h.closed {
		return
	}
	p.mu.Lock()
	if !h.overflow && len(p.idle) < p.poolSize {
		p.idle = append(p.idle, h)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	h.closed = true
	_ = h.DB.Close()
}

// CloseAll closes every pooled handle. Idempotent.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, h := range idle {
		if !h.closed {
			h.closed = true
			_ = h.DB.Close()
		}
	}
}

// Size reports the number of handles currently idle in the pool (for
// tests/diagnostics).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
