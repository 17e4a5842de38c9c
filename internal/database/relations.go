package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// maxRelationResults bounds neighborhood expansion so a dense curriculum
// graph cannot explode a single lookup.
const maxRelationResults = 20

// AddRelationship creates a typed edge between two existing concepts. A
// missing endpoint fails with ErrNotFound and writes nothing.
func (dm *DBManager) AddRelationship(ctx context.Context, r apptype.Relation) error {
	done := metrics.TimeOp("add_relationship")
	success := false
	defer func() { done(success) }()

	if r.Source == "" || r.Target == "" || r.Type == "" {
		return fmt.Errorf("relation fields cannot be empty")
	}
	if !apptype.ValidRelationType(r.Type) {
		return fmt.Errorf("invalid relation type %q", r.Type)
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

	for _, endpoint := range []string{r.Source, r.Target} {
		var id string
		if err := tx.QueryRowContext(ctx, "SELECT id FROM concepts WHERE id = ?", endpoint).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("relation endpoint %q: %w", endpoint, apptype.ErrNotFound)
			}
			return fmt.Errorf("failed to check endpoint %q: %w", endpoint, err)
		}
	}

	var weight interface{}
	if r.Weight != nil {
		weight = *r.Weight
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO relations (source, target, relation_type, weight) VALUES (?, ?, ?, ?)",
		r.Source, r.Target, r.Type, weight); err != nil {
		return fmt.Errorf("failed to insert relation (%s -> %s): %w", r.Source, r.Target, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// edge is a relation row with its insertion id, which orders traversal for
// deterministic tie-breaking.
type edge struct {
	id      int64
	source  string
	target  string
	relType string
}

// edgesTouching returns all edges with an endpoint among ids, ordered by
// insertion id.
func (dm *DBManager) edgesTouching(ctx context.Context, ids []string) ([]edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source, target, relation_type FROM relations
		WHERE source IN (%s) OR target IN (%s)
		ORDER BY id`, placeholders, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.id, &e.source, &e.target, &e.relType); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetRelationships expands the neighborhood of the named concept
// breadth-first up to depth hops, bounded at maxRelationResults rows. An
// unknown concept yields an empty result, not an error.
func (dm *DBManager) GetRelationships(ctx context.Context, conceptName string, depth int) ([]apptype.RelationDetail, error) {
	done := metrics.TimeOp("get_relationships")
	success := false
	defer func() { done(success) }()

	if depth <= 0 {
		depth = 2
	}

	anchor, err := dm.GetConceptByName(ctx, conceptName)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		success = true
		return []apptype.RelationDetail{}, nil
	}

	visited := map[string]struct{}{anchor.ID: {}}
	seenEdges := make(map[int64]struct{})
	frontier := []string{anchor.ID}

	type pending struct {
		e   edge
		far string
	}
	var collected []pending

	for hop := 0; hop < depth && len(frontier) > 0 && len(collected) < maxRelationResults; hop++ {
		edges, err := dm.edgesTouching(ctx, frontier)
		if err != nil {
			return nil, err
		}
		inFrontier := make(map[string]struct{}, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = struct{}{}
		}

		var next []string
		for _, e := range edges {
			if _, ok := seenEdges[e.id]; ok {
				continue
			}
			seenEdges[e.id] = struct{}{}

			far := e.target
			if _, ok := inFrontier[e.source]; !ok {
				far = e.source
			}
			collected = append(collected, pending{e: e, far: far})
			if len(collected) >= maxRelationResults {
				break
			}
			if _, ok := visited[far]; !ok {
				visited[far] = struct{}{}
				next = append(next, far)
			}
		}
		frontier = next
	}

	// Materialize every concept involved for names and descriptions
	idSet := make(map[string]struct{})
	var ids []string
	addID := func(id string) {
		if _, ok := idSet[id]; !ok {
			idSet[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, p := range collected {
		addID(p.e.source)
		addID(p.e.target)
	}
	concepts, err := dm.getConcepts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]apptype.Concept, len(concepts))
	for _, c := range concepts {
		byID[c.ID] = c
	}

	details := make([]apptype.RelationDetail, 0, len(collected))
	for _, p := range collected {
		d := apptype.RelationDetail{Type: p.e.relType}
		if c, ok := byID[p.e.source]; ok {
			d.Source = c.Name
		}
		if c, ok := byID[p.e.target]; ok {
			d.Target = c.Name
		}
		if c, ok := byID[p.far]; ok {
			d.Description = c.Description
		}
		details = append(details, d)
	}
	success = true
	return details, nil
}
