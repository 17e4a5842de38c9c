package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// AddConcept creates a concept. Duplicate ids are ignored: the first write
// wins and no error is returned.
func (dm *DBManager) AddConcept(ctx context.Context, c apptype.Concept) error {
	done := metrics.TimeOp("add_concept")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("concept id must be a non-empty string")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("concept %q must have a name", c.ID)
	}

	db, err := dm.getDB()
	if err != nil {
		return err
	}

	stmt, err := dm.getPreparedStmt(ctx, db,
		"INSERT OR IGNORE INTO concepts (id, name, description, grade_level, subject) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Description, c.GradeLevel, c.Subject); err != nil {
		return fmt.Errorf("failed to insert concept %q: %w", c.ID, err)
	}
	success = true
	return nil
}

// GetConcept retrieves a concept by id. A miss returns (nil, nil).
func (dm *DBManager) GetConcept(ctx context.Context, id string) (*apptype.Concept, error) {
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db,
		"SELECT id, name, description, grade_level, subject FROM concepts WHERE id = ?")
	if err != nil {
		return nil, err
	}
	return scanConcept(stmt.QueryRowContext(ctx, id))
}

// GetConceptByName retrieves a concept by display name, case-insensitively.
// A miss returns (nil, nil).
func (dm *DBManager) GetConceptByName(ctx context.Context, name string) (*apptype.Concept, error) {
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db,
		"SELECT id, name, description, grade_level, subject FROM concepts WHERE name = ? COLLATE NOCASE LIMIT 1")
	if err != nil {
		return nil, err
	}
	return scanConcept(stmt.QueryRowContext(ctx, name))
}

func scanConcept(row *sql.Row) (*apptype.Concept, error) {
	var c apptype.Concept
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.GradeLevel, &c.Subject); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan concept: %w", err)
	}
	return &c, nil
}

// UpdateConcept mutates the curriculum-authoring fields of an existing
// concept. The id is immutable; empty fields are left unchanged.
func (dm *DBManager) UpdateConcept(ctx context.Context, id, description string, gradeLevel int, subject string) error {
	done := metrics.TimeOp("update_concept")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB()
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `
		UPDATE concepts SET
			description = CASE WHEN ? != '' THEN ? ELSE description END,
			grade_level = CASE WHEN ? > 0 THEN ? ELSE grade_level END,
			subject     = CASE WHEN ? != '' THEN ? ELSE subject END
		WHERE id = ?`,
		description, description, gradeLevel, gradeLevel, subject, subject, id)
	if err != nil {
		return fmt.Errorf("failed to update concept %q: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update concept %q: %w", id, apptype.ErrNotFound)
	}
	success = true
	return nil
}

// DeleteConcept removes a concept along with its edges and chunk links.
// Concepts are never garbage collected; this explicit removal is the only
// deletion path.
func (dm *DBManager) DeleteConcept(ctx context.Context, id string) error {
	done := metrics.TimeOp("delete_concept")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM concepts WHERE id = ?", id).Scan(&existing); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("delete concept %q: %w", id, apptype.ErrNotFound)
		}
		return fmt.Errorf("failed to check concept existence: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM relations WHERE source = ? OR target = ?", id, id); err != nil {
		return fmt.Errorf("failed to delete relations for %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunk_concepts WHERE concept_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chunk links for %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM concepts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete concept %q: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// SearchConcepts performs a substring match over name and description,
// ranked by earliest match position and then alphabetically by name.
func (dm *DBManager) SearchConcepts(ctx context.Context, term string) ([]apptype.Concept, error) {
	done := metrics.TimeOp("search_concepts")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("search term cannot be empty")
	}

	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}

	pattern := "%" + term + "%"
	stmt, err := dm.getPreparedStmt(ctx, db, `
		SELECT id, name, description, grade_level, subject
		FROM concepts
		WHERE name LIKE ? OR description LIKE ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to execute concept search: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		concept  apptype.Concept
		position int
	}
	lowTerm := strings.ToLower(term)
	var results []ranked
	for rows.Next() {
		var c apptype.Concept
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.GradeLevel, &c.Subject); err != nil {
			return nil, fmt.Errorf("failed to scan concept row: %w", err)
		}
		results = append(results, ranked{concept: c, position: matchPosition(c, lowTerm)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating concept results: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].position != results[j].position {
			return results[i].position < results[j].position
		}
		return results[i].concept.Name < results[j].concept.Name
	})

	concepts := make([]apptype.Concept, len(results))
	for i, r := range results {
		concepts[i] = r.concept
	}
	success = true
	return concepts, nil
}

// matchPosition is the earliest index of term in the concept's name or
// description; name and description compete on equal footing.
func matchPosition(c apptype.Concept, lowTerm string) int {
	pos := strings.Index(strings.ToLower(c.Name), lowTerm)
	if dPos := strings.Index(strings.ToLower(c.Description), lowTerm); dPos >= 0 && (pos < 0 || dPos < pos) {
		pos = dPos
	}
	if pos < 0 {
		// LIKE matched but positions disagree (case folding edge); rank last
		pos = 1 << 20
	}
	return pos
}

// getConcepts materializes concepts for a list of ids, preserving the order
// of the input ids.
func (dm *DBManager) getConcepts(ctx context.Context, ids []string) ([]apptype.Concept, error) {
	if len(ids) == 0 {
		return []apptype.Concept{}, nil
	}
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, name, description, grade_level, subject FROM concepts WHERE id IN (%s)",
		placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]apptype.Concept, len(ids))
	for rows.Next() {
		var c apptype.Concept
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.GradeLevel, &c.Subject); err != nil {
			return nil, fmt.Errorf("failed to scan concept row: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]apptype.Concept, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}
