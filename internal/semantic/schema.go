// Package semantic implements the chunked-document semantic store:
// documents are split into overlapping chunks, each embedded to a
// fixed-dimension dense vector and scored by cosine similarity.
//
// Embeddings are kept as BLOB columns alongside their owning row rather
// than in a separate index file; a pure-Go brute-force cosine scan stands
// in for an ANN index (see DESIGN.md).
package semantic

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	source_name TEXT NOT NULL,
	source_type TEXT NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	ingested_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	text TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	metadata_json TEXT NOT NULL DEFAULT '{}',
	embedding BLOB NOT NULL,
	inserted_at INTEGER NOT NULL,
	FOREIGN KEY (doc_id) REFERENCES documents(doc_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chunks_project ON chunks(project_id);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
`
