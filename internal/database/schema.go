package database

import "fmt"

// dynamicSchema returns schema DDL using the configured embedding dimension
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = 4
	}
	return []string{
		// Curriculum concepts (graph nodes)
		`CREATE TABLE IF NOT EXISTS concepts (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        grade_level INTEGER NOT NULL DEFAULT 0,
        subject TEXT NOT NULL DEFAULT '',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		// Typed, directed edges between concepts. Insertion order (id) is the
		// tie-break for shortest-path discovery.
		`CREATE TABLE IF NOT EXISTS relations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL,
        target TEXT NOT NULL,
        relation_type TEXT NOT NULL,
        weight REAL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (source) REFERENCES concepts(id),
        FOREIGN KEY (target) REFERENCES concepts(id)
    )`,

		// Textbook passages with fixed-dimension embeddings
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS passages (
        chunk_id TEXT PRIMARY KEY,
        source_id TEXT NOT NULL CHECK (source_id != ''),
        content TEXT NOT NULL,
        embedding F32_BLOB(%d),
        grade_level INTEGER NOT NULL DEFAULT 0,
        subject TEXT NOT NULL DEFAULT '',
        key_terms TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		// Chunk-concept cross references
		`CREATE TABLE IF NOT EXISTS chunk_concepts (
        chunk_id TEXT NOT NULL,
        concept_id TEXT NOT NULL,
        relevance REAL NOT NULL CHECK (relevance >= 0 AND relevance <= 1),
        PRIMARY KEY (chunk_id, concept_id),
        FOREIGN KEY (chunk_id) REFERENCES passages(chunk_id),
        FOREIGN KEY (concept_id) REFERENCES concepts(id)
    )`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_concepts_name ON concepts(name)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_subject ON concepts(subject)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_type_target ON relations(relation_type, target)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_grade_subject ON passages(grade_level, subject)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_concepts_concept ON chunk_concepts(concept_id)`,

		// Vector index for similarity search
		`CREATE INDEX IF NOT EXISTS idx_passages_embedding ON passages(libsql_vector_idx(embedding))`,
	}
}
