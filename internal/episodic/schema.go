// Package episodic implements the episodic store:
// situation/action/outcome/lesson records with fingerprint-based
// deduplication.
package episodic

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	situation TEXT NOT NULL,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	lesson TEXT NOT NULL,
	lesson_type TEXT NOT NULL,
	confidence REAL NOT NULL,
	quality REAL NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	ref_count INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_episodes_fingerprint ON episodes(project_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_episodes_recent ON episodes(project_id, created_at);
`
