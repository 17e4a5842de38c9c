package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// CreatePassages creates or updates passages. Every passage must carry a
// non-empty source id; that field is the grounding contract the citation
// guard enforces downstream.
func (dm *DBManager) CreatePassages(ctx context.Context, passages []apptype.Passage) error {
	done := metrics.TimeOp("create_passages")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB()
	if err != nil {
		return err
	}

	for _, p := range passages {
		if strings.TrimSpace(p.ChunkID) == "" {
			return fmt.Errorf("passage chunk id must be a non-empty string")
		}
		if strings.TrimSpace(p.SourceID) == "" {
			return fmt.Errorf("passage %q must have a source id", p.ChunkID)
		}
		if strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("passage %q must have content", p.ChunkID)
		}

		vectorString, err := dm.vectorToString(p.Embedding)
		if err != nil {
			return fmt.Errorf("failed to convert embedding for passage %q: %w", p.ChunkID, err)
		}
		keyTerms, err := json.Marshal(p.KeyTerms)
		if err != nil {
			return fmt.Errorf("failed to marshal key terms for passage %q: %w", p.ChunkID, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for passage %q: %w", p.ChunkID, err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE passages SET source_id = ?, content = ?, embedding = vector32(?),
				grade_level = ?, subject = ?, key_terms = ?
			WHERE chunk_id = ?`,
			p.SourceID, p.Content, vectorString, p.GradeLevel, p.Subject, string(keyTerms), p.ChunkID)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to update passage %q: %w", p.ChunkID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO passages (chunk_id, source_id, content, embedding, grade_level, subject, key_terms)
				VALUES (?, ?, ?, vector32(?), ?, ?, ?)`,
				p.ChunkID, p.SourceID, p.Content, vectorString, p.GradeLevel, p.Subject, string(keyTerms)); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert passage %q: %w", p.ChunkID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	success = true
	return nil
}

// GetPassage retrieves a passage by chunk id. A miss returns (nil, nil).
func (dm *DBManager) GetPassage(ctx context.Context, chunkID string) (*apptype.Passage, error) {
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, `
		SELECT chunk_id, source_id, content, embedding, grade_level, subject, key_terms
		FROM passages WHERE chunk_id = ?`)
	if err != nil {
		return nil, err
	}

	var p apptype.Passage
	var embeddingBytes []byte
	var keyTerms string
	err = stmt.QueryRowContext(ctx, chunkID).Scan(
		&p.ChunkID, &p.SourceID, &p.Content, &embeddingBytes, &p.GradeLevel, &p.Subject, &keyTerms)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan passage: %w", err)
	}
	if p.Embedding, err = dm.extractVector(embeddingBytes); err != nil {
		return nil, fmt.Errorf("failed to extract vector for passage %q: %w", chunkID, err)
	}
	if err := json.Unmarshal([]byte(keyTerms), &p.KeyTerms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key terms for passage %q: %w", chunkID, err)
	}
	return &p, nil
}

// SearchPassages performs cosine similarity search over passages. Grade and
// subject filters restrict the candidate set before ranking, so the limit
// always returns the best matches within the allowed subset. Results whose
// similarity falls below filter.MinSimilarity are excluded.
func (dm *DBManager) SearchPassages(ctx context.Context, embedding []float32, filter apptype.PassageFilter) ([]apptype.ScoredPassage, error) {
	done := metrics.TimeOp("search_passages")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("search embedding cannot be empty")
	}
	vectorString, err := dm.vectorToString(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to convert search embedding: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	// Cosine distance is 1 - similarity; a minimum similarity becomes a
	// maximum distance.
	maxDistance := 1.0 - filter.MinSimilarity

	where := []string{"p.embedding IS NOT NULL", "p.embedding != vector32(?)"}
	whereArgs := []interface{}{dm.vectorZeroString()}
	if filter.GradeLevel != nil {
		where = append(where, "p.grade_level = ?")
		whereArgs = append(whereArgs, *filter.GradeLevel)
	}
	if filter.Subject != "" {
		where = append(where, "p.subject = ?")
		whereArgs = append(whereArgs, filter.Subject)
	}
	filtered := filter.GradeLevel != nil || filter.Subject != ""

	var rows *sql.Rows
	// vector_top_k cannot pre-filter by metadata, so the ANN index only
	// serves unfiltered searches.
	useTopK := dm.hasVectorTopK() && !filtered
	if useTopK {
		query := fmt.Sprintf(`WITH vt AS (
			SELECT id FROM vector_top_k('idx_passages_embedding', vector32(?), ?)
		)
		SELECT p.chunk_id, p.source_id, p.content, p.grade_level, p.subject, p.key_terms,
		       vector_distance_cos(p.embedding, vector32(?)) as distance
		FROM vt JOIN passages p ON p.rowid = vt.id
		WHERE %s AND vector_distance_cos(p.embedding, vector32(?)) <= ?
		ORDER BY distance ASC
		LIMIT ?`, strings.Join(where, " AND "))
		args := append([]interface{}{vectorString, limit, vectorString}, whereArgs...)
		args = append(args, vectorString, maxDistance, limit)
		rows, err = db.QueryContext(ctx, query, args...)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "no such function: vector_top_k") {
			dm.disableVectorTopK()
			useTopK = false
		} else if err != nil {
			return nil, fmt.Errorf("failed ANN search: %w", err)
		}
	}
	if !useTopK {
		query := fmt.Sprintf(`
		SELECT p.chunk_id, p.source_id, p.content, p.grade_level, p.subject, p.key_terms,
		       vector_distance_cos(p.embedding, vector32(?)) as distance
		FROM passages p
		WHERE %s AND vector_distance_cos(p.embedding, vector32(?)) <= ?
		ORDER BY distance ASC
		LIMIT ?`, strings.Join(where, " AND "))
		args := append([]interface{}{vectorString}, whereArgs...)
		args = append(args, vectorString, maxDistance, limit)
		rows, err = db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "no such function: vector_distance_cos") || strings.Contains(low, "no such function: vector32") {
			return nil, fmt.Errorf("vector search functions are unavailable in this libSQL build: %w", err)
		}
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []apptype.ScoredPassage
	for rows.Next() {
		var p apptype.Passage
		var keyTerms string
		var distance float64
		if err := rows.Scan(&p.ChunkID, &p.SourceID, &p.Content, &p.GradeLevel, &p.Subject, &keyTerms, &distance); err != nil {
			log.Warn().Err(err).Msg("failed to scan passage search row")
			continue
		}
		if err := json.Unmarshal([]byte(keyTerms), &p.KeyTerms); err != nil {
			log.Warn().Err(err).Str("chunk", p.ChunkID).Msg("failed to unmarshal key terms")
		}
		results = append(results, apptype.ScoredPassage{
			Passage:    p,
			Similarity: 1.0 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	success = true
	return results, nil
}

// LinkChunkConcept associates a passage with a concept. Both entities must
// already exist; referential integrity is enforced at write time, not
// deferred.
func (dm *DBManager) LinkChunkConcept(ctx context.Context, link apptype.ChunkConceptLink) error {
	done := metrics.TimeOp("link_chunk_concept")
	success := false
	defer func() { done(success) }()

	if link.Relevance < 0 || link.Relevance > 1 {
		return fmt.Errorf("relevance must be in [0,1], got %f", link.Relevance)
	}

	db, err := dm.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var chunkID string
	if err := tx.QueryRowContext(ctx, "SELECT chunk_id FROM passages WHERE chunk_id = ?", link.ChunkID).Scan(&chunkID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("link chunk %q: %w", link.ChunkID, apptype.ErrNotFound)
		}
		return fmt.Errorf("failed to check passage existence: %w", err)
	}
	var conceptID string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM concepts WHERE id = ?", link.ConceptID).Scan(&conceptID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("link concept %q: %w", link.ConceptID, apptype.ErrNotFound)
		}
		return fmt.Errorf("failed to check concept existence: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO chunk_concepts (chunk_id, concept_id, relevance) VALUES (?, ?, ?)",
		link.ChunkID, link.ConceptID, link.Relevance); err != nil {
		return fmt.Errorf("failed to link chunk %q to concept %q: %w", link.ChunkID, link.ConceptID, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// ConceptsForChunk returns the concepts linked to a passage, most relevant
// first.
func (dm *DBManager) ConceptsForChunk(ctx context.Context, chunkID string) ([]apptype.Concept, error) {
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, `
		SELECT c.id, c.name, c.description, c.grade_level, c.subject
		FROM chunk_concepts cc JOIN concepts c ON c.id = cc.concept_id
		WHERE cc.chunk_id = ?
		ORDER BY cc.relevance DESC`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, chunkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts for chunk: %w", err)
	}
	defer rows.Close()

	var concepts []apptype.Concept
	for rows.Next() {
		var c apptype.Concept
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.GradeLevel, &c.Subject); err != nil {
			return nil, fmt.Errorf("failed to scan concept row: %w", err)
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// ChunksForConcept returns the chunk ids linked to a concept, most relevant
// first.
func (dm *DBManager) ChunksForConcept(ctx context.Context, conceptID string) ([]apptype.ChunkConceptLink, error) {
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, `
		SELECT chunk_id, concept_id, relevance FROM chunk_concepts
		WHERE concept_id = ?
		ORDER BY relevance DESC`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for concept: %w", err)
	}
	defer rows.Close()

	var links []apptype.ChunkConceptLink
	for rows.Next() {
		var l apptype.ChunkConceptLink
		if err := rows.Scan(&l.ChunkID, &l.ConceptID, &l.Relevance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk link row: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
