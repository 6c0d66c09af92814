package episodic

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kayis-rahman/synapse/internal/pool"
	"github.com/kayis-rahman/synapse/internal/synerr"
	"github.com/kayis-rahman/synapse/internal/types"
)

// Store implements the episodic store over a per-project pool.
type Store struct {
	pool           *pool.Pool
	dedupMode      types.DedupMode
	minEpisodeConf float64
}

// New wraps a project's connection pool. dedupMode and minEpisodeConf are
// fixed at startup; callers pick one mode and confidence floor per store
// instance.
func New(p *pool.Pool, dedupMode types.DedupMode, minEpisodeConf float64) *Store {
	return &Store{pool: p, dedupMode: dedupMode, minEpisodeConf: minEpisodeConf}
}

// EnsureSchema creates the episodes table if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring handle for schema init: %w", err)
	}
	defer release()
	if _, err := h.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating episodic schema: %w", err)
	}
	return nil
}

// AddEpisodeResult is the outcome of add_episode (tool surface: mem.ep.add).
type AddEpisodeResult struct {
	EpisodeID         string
	Deduped           bool
	DiscardedLowConf  bool
}

// AddEpisode inserts an episode, or — within the active deduplication
// window — merges it into an existing episode with the same fingerprint by
// incrementing ref_count and refreshing updated_at.
// Episodes below minEpisodeConf are rejected before any write (// confidence gating).
func (s *Store) AddEpisode(ctx context.Context, projectID, sessionID string, ep *types.Episode) (*AddEpisodeResult, error) {
	if err := types.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	ep.Confidence = types.ClipConfidence(ep.Confidence)
	if ep.Confidence < s.minEpisodeConf {
		return &AddEpisodeResult{DiscardedLowConf: true}, nil
	}
	if ep.Confidence > types.DefaultEpisodeConfidenceCeiling {
		ep.Confidence = types.DefaultEpisodeConfidenceCeiling
	}

	fp := types.Fingerprint(ep.Situation, ep.Action, ep.Outcome)

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

	now := time.Now()
	existingID, err := s.findDuplicate(ctx, tx, projectID, sessionID, fp, now)
	if err != nil {
		return nil, err
	}

	if existingID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE episodes SET ref_count = ref_count + 1, updated_at = ? WHERE id = ?
		`, now.Unix(), existingID); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "incrementing ref_count")
		}
		if err := tx.Commit(); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "committing dedup update")
		}
		return &AddEpisodeResult{EpisodeID: existingID, Deduped: true}, nil
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO episodes (id, project_id, session_id, situation, action, outcome, lesson, lesson_type, confidence, quality, fingerprint, created_at, updated_at, ref_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, id, projectID, sessionID, ep.Situation, ep.Action, ep.Outcome, ep.Lesson, string(ep.LessonType), ep.Confidence, ep.Quality, fp, now.Unix(), now.Unix())
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "inserting episode")
	}
	if err := tx.Commit(); err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "committing insert")
	}
	return &AddEpisodeResult{EpisodeID: id}, nil
}

// findDuplicate locates an episode with the same fingerprint still within
// the active dedup window, under one of three modes:
//   - per_day: created within the trailing 24h
//   - per_session: same session_id, regardless of age
//   - global: any prior episode with the same fingerprint
func (s *Store) findDuplicate(ctx context.Context, tx *sql.Tx, projectID, sessionID, fingerprint string, now time.Time) (string, error) {
	var q string
	args := []any{projectID, fingerprint}
	switch s.dedupMode {
	case types.DedupPerSession:
		q = `SELECT id FROM episodes WHERE project_id = ? AND fingerprint = ? AND session_id = ? ORDER BY created_at DESC LIMIT 1`
		args = append(args, sessionID)
	case types.DedupGlobal:
		q = `SELECT id FROM episodes WHERE project_id = ? AND fingerprint = ? ORDER BY created_at DESC LIMIT 1`
	default: // per_day
		windowStart := now.Add(-24 * time.Hour).Unix()
		q = `SELECT id FROM episodes WHERE project_id = ? AND fingerprint = ? AND created_at >= ? ORDER BY created_at DESC LIMIT 1`
		args = append(args, windowStart)
	}

	var id string
	err := tx.QueryRowContext(ctx, q, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", synerr.Wrap(synerr.ExternalFailure, "", err, "checking episode dedup")
	}
	return id, nil
}

// EpisodeFilter narrows query_episodes.
type EpisodeFilter struct {
	LessonType      types.LessonType
	MinConfidence   *float64
	MinQuality      *float64
	SubstringMatch  string // matched against situation or lesson
}

// QueryEpisodes ranks episodes by confidence*quality desc, then recency
//.
func (s *Store) QueryEpisodes(ctx context.Context, projectID string, filter EpisodeFilter, topK int) ([]*types.Episode, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	q := `SELECT id, session_id, situation, action, outcome, lesson, lesson_type, confidence, quality, fingerprint, created_at, updated_at, ref_count
	      FROM episodes WHERE project_id = ?`
	args := []any{projectID}
	if filter.LessonType != "" {
		q += " AND lesson_type = ?"
		args = append(args, string(filter.LessonType))
	}
	if filter.MinConfidence != nil {
		q += " AND confidence >= ?"
		args = append(args, *filter.MinConfidence)
	}
	if filter.MinQuality != nil {
		q += " AND quality >= ?"
		args = append(args, *filter.MinQuality)
	}
	if filter.SubstringMatch != "" {
		q += " AND (situation LIKE ? OR lesson LIKE ?)"
		like := "%" + filter.SubstringMatch + "%"
		args = append(args, like, like)
	}
	q += " ORDER BY (confidence * quality) DESC, created_at DESC"
	if topK > 0 {
		q += fmt.Sprintf(" LIMIT %d", topK)
	}

	return scanEpisodes(ctx, h.DB, q, args, projectID)
}

// ListRecentEpisodes returns the most recently created episodes.
func (s *Store) ListRecentEpisodes(ctx context.Context, projectID string, limit int) ([]*types.Episode, error) {
	h, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "acquiring connection")
	}
	defer release()

	q := `SELECT id, session_id, situation, action, outcome, lesson, lesson_type, confidence, quality, fingerprint, created_at, updated_at, ref_count
	      FROM episodes WHERE project_id = ? ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return scanEpisodes(ctx, h.DB, q, []any{projectID}, projectID)
}

func scanEpisodes(ctx context.Context, db *sql.DB, q string, args []any, projectID string) ([]*types.Episode, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "querying episodes")
	}
	defer rows.Close()

	var out []*types.Episode
	for rows.Next() {
		e := &types.Episode{ProjectID: projectID}
		var lessonType string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Situation, &e.Action, &e.Outcome, &e.Lesson, &lessonType, &e.Confidence, &e.Quality, &e.Fingerprint, &e.CreatedAt, &e.UpdatedAt, &e.RefCount); err != nil {
			return nil, synerr.Wrap(synerr.ExternalFailure, "", err, "scanning episode row")
		}
		e.LessonType = types.LessonType(lessonType)
		out = append(out, e)
	}
	return out, rows.Err()
}
