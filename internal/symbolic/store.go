package symbolic

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kayis-rahman/synapse/internal/pool"
	"github.com/kayis-rahman/synapse/internal/synerr"
	"github.com/kayis-rahman/synapse/internal/types"
)

// Store implements the symbolic fact store over a per-project
// connection pool.
type Store struct {
	pool *pool.Pool
}

// New wraps a project's connection pool. EnsureSchema must be called once
// before use.
func New(p *pool.Pool) *Store { return &Store{pool: p} }

// EnsureSchema creates the facts/fact_history tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring handle for schema init: %w", err)
	}
	defer release()
	if _, err := h.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating symbolic schema: %w", err)
	}
	return nil
}

// AddFactResult is the outcome of an upsert (tool surface: mem.fact.add).
type AddFactResult struct {
	FactID   string
	Replaced bool
	Existing *types.Fact // set when Replaced is false and a row already existed
}

// AddFact upserts a fact: an incoming write overwrites the
// active row only if its confidence is strictly greater, or its source
// outranks the existing one (ties broken in favor of the incoming,
// more recent, write); otherwise the existing row is left untouched but an
// observation entry is still appended to fact_history. Every mutation
// appends to history once an active row exists to compare against — the
// very first insert for a key has no prior state to record.
func (s *Store) AddFact(ctx context.Context, projectID, scope, category, key, value string, confidence float64, source types.Source) (*AddFactResult, error) {
	if err := types.ValidateFactInput(projectID, scope, category, key, source); err != nil {
		return nil, err
	}
	confidence = types.ClipConfidence(confidence)

	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "beginning transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := queryActive(ctx, tx, projectID, scope, category, key)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	if existing == nil {
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO facts (id, project_id, scope, category, key, value, confidence, source, created_at, updated_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`, id, projectID, scope, category, key, value, confidence, string(source), now, now)
		if err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "inserting fact")
		}
		if err := tx.Commit(); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "committing insert")
		}
		return &AddFactResult{FactID: id, Replaced: true}, nil
	}

	overwrite := confidence > existing.Confidence ||
		source.Rank() > existing.Source.Rank() ||
		(confidence == existing.Confidence && source.Rank() == existing.Source.Rank())

	reason := "observed_no_change"
	if overwrite {
		reason = "overwritten"
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fact_history (fact_id, ts, prev_value, prev_confidence, reason) VALUES (?, ?, ?, ?, ?)
	`, existing.ID, now, existing.Value, existing.Confidence, reason); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "appending fact history")
	}

	if overwrite {
		if _, err := tx.ExecContext(ctx, `
			UPDATE facts SET value = ?, confidence = ?, source = ?, updated_at = ? WHERE id = ?
		`, value, confidence, string(source), now, existing.ID); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "updating fact")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "committing upsert")
	}

	if !overwrite {
		return &AddFactResult{FactID: existing.ID, Replaced: false, Existing: existing}, nil
	}
	return &AddFactResult{FactID: existing.ID, Replaced: true}, nil
}

// queryActive fetches the single active row for (project_id, scope,
// category, key), or nil if none exists.
func queryActive(ctx context.Context, tx *sql.Tx, projectID, scope, category, key string) (*types.Fact, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, value, confidence, source, created_at, updated_at
		FROM facts WHERE project_id = ? AND scope = ? AND category = ? AND key = ? AND deleted = 0
	`, projectID, scope, category, key)

	f := &types.Fact{ProjectID: projectID, Scope: scope, Category: category, Key: key}
	var source string
	if err := row.Scan(&f.ID, &f.Value, &f.Confidence, &source, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "reading active fact")
	}
	f.Source = types.Source(source)
	return f, nil
}

// Filter narrows query_memory.
type Filter struct {
	Scope         string
	Category      string
	Key           string
	MinConfidence *float64
}

// QueryMemory returns active rows matching filter, ordered primarily by
// confidence desc, secondarily by updated_at desc.
func (s *Store) QueryMemory(ctx context.Context, projectID string, filter Filter) ([]*types.Fact, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	q := `SELECT id, scope, category, key, value, confidence, source, created_at, updated_at
	      FROM facts WHERE project_id = ? AND deleted = 0`
	args := []any{projectID}
	if filter.Scope != "" {
		q += " AND scope = ?"
		args = append(args, filter.Scope)
	}
	if filter.Category != "" {
		q += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Key != "" {
		q += " AND key = ?"
		args = append(args, filter.Key)
	}
	if filter.MinConfidence != nil {
		q += " AND confidence >= ?"
		args = append(args, *filter.MinConfidence)
	}
	q += " ORDER BY confidence DESC, updated_at DESC"

	rows, err := h.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "querying facts")
	}
	defer rows.Close()

	var out []*types.Fact
	for rows.Next() {
		f := &types.Fact{ProjectID: projectID}
		var source string
		if err := rows.Scan(&f.ID, &f.Scope, &f.Category, &f.Key, &f.Value, &f.Confidence, &source, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "scanning fact row")
		}
		f.Source = types.Source(source)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListScopes discovers the scopes currently in use for a project. Scopes
// are open-set: there is no hardcoded enum, only the syntactic
// validation applied at write time.
func (s *Store) ListScopes(ctx context.Context, projectID string) ([]string, error) {
	return s.distinctColumn(ctx, projectID, "scope", "")
}

// ListCategories discovers the categories in use within a scope.
func (s *Store) ListCategories(ctx context.Context, projectID, scope string) ([]string, error) {
	return s.distinctColumn(ctx, projectID, "category", scope)
}

func (s *Store) distinctColumn(ctx context.Context, projectID, column, scope string) ([]string, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	q := fmt.Sprintf(`SELECT DISTINCT %s FROM facts WHERE project_id = ? AND deleted = 0`, column)
	args := []any{projectID}
	if scope != "" {
		q += " AND scope = ?"
		args = append(args, scope)
	}
	rows, err := h.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "querying distinct %s", column)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "scanning distinct %s", column)
		}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, rows.Err()
}

// DeleteFact soft-deletes a fact with a final history entry.
func (s *Store) DeleteFact(ctx context.Context, projectID, id string) error {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "beginning transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	var value string
	var confidence float64
	err = tx.QueryRowContext(ctx, `SELECT value, confidence FROM facts WHERE id = ? AND project_id = ? AND deleted = 0`, id, projectID).Scan(&value, &confidence)
	if err == sql.ErrNoRows {
		return synerr.New(synerr.NotFound, "", "fact %s not found in project %s", id, projectID)
	}
	if err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "reading fact for delete")
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `UPDATE facts SET deleted = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "soft-deleting fact")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fact_history (fact_id, ts, prev_value, prev_confidence, reason) VALUES (?, ?, ?, ?, 'deleted')
	`, id, now, value, confidence); err != nil {
		return synerr.Wrap(synerr.ExternalFailure, "", err, "appending delete history")
	}

	return tx.Commit()
}

// History returns the audit trail for a single fact id, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]types.FactHistoryEntry, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	rows, err := h.DB.QueryContext(ctx, `
		SELECT ts, prev_value, prev_confidence, reason FROM fact_history WHERE fact_id = ? ORDER BY ts ASC
	`, id)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "querying fact history")
	}
	defer rows.Close()

	var out []types.FactHistoryEntry
	for rows.Next() {
		var e types.FactHistoryEntry
		if err := rows.Scan(&e.Timestamp, &e.PrevValue, &e.PrevConfidence, &e.Reason); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "scanning history row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
