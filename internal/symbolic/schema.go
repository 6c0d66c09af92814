// Package symbolic implements the symbolic fact store: a single embedded
// SQL string of CREATE TABLE IF NOT EXISTS statements applied at open, with
// fact_history as an append-only audit trail alongside the current rows.
package symbolic

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	scope TEXT NOT NULL,
	category TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	confidence REAL NOT NULL,
	source TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_facts_identity
	ON facts(project_id, scope, category, key)
	WHERE deleted = 0;

CREATE INDEX IF NOT EXISTS idx_facts_lookup ON facts(project_id, scope, category);

CREATE TABLE IF NOT EXISTS fact_history (
	fact_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	prev_value TEXT NOT NULL,
	prev_confidence REAL NOT NULL,
	reason TEXT NOT NULL,
	FOREIGN KEY (fact_id) REFERENCES facts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_fact_history_fact ON fact_history(fact_id);
`
