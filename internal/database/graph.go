package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// prereqMaxDepth bounds transitive prerequisite collection. The visited set
// already guarantees termination on cyclic graphs; the cap keeps a deep
// chain from dominating a request.
const prereqMaxDepth = 10

// FindPath returns a shortest path between two concepts by hop count,
// traversing edges in either direction. Ties are broken by edge insertion
// order: neighbors are explored in relation-id order, so the first
// discovered path wins. No path yields an empty slice.
func (dm *DBManager) FindPath(ctx context.Context, fromName, toName string) ([]apptype.Concept, error) {
	done := metrics.TimeOp("find_path")
	success := false
	defer func() { done(success) }()

	from, err := dm.GetConceptByName(ctx, fromName)
	if err != nil {
		return nil, err
	}
	to, err := dm.GetConceptByName(ctx, toName)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		success = true
		return []apptype.Concept{}, nil
	}
	if from.ID == to.ID {
		success = true
		return []apptype.Concept{*from}, nil
	}

	parents := make(map[string]string)
	visited := map[string]bool{from.ID: true}
	frontier := []string{from.ID}
	found := false

	for len(frontier) > 0 && !found {
		edges, err := dm.edgesTouching(ctx, frontier)
		if err != nil {
			return nil, err
		}
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []string
		for _, e := range edges {
			for _, pair := range [][2]string{{e.source, e.target}, {e.target, e.source}} {
				u, v := pair[0], pair[1]
				if !inFrontier[u] || visited[v] {
					continue
				}
				visited[v] = true
				parents[v] = u
				next = append(next, v)
				if v == to.ID {
					found = true
				}
			}
			if found {
				break
			}
		}
		frontier = next
	}

	if !found {
		success = true
		return []apptype.Concept{}, nil
	}

	pathIDs := []string{to.ID}
	cur := to.ID
	for cur != from.ID {
		cur = parents[cur]
		pathIDs = append(pathIDs, cur)
	}
	for i, j := 0, len(pathIDs)-1; i < j; i, j = i+1, j-1 {
		pathIDs[i], pathIDs[j] = pathIDs[j], pathIDs[i]
	}

	path, err := dm.getConcepts(ctx, pathIDs)
	if err != nil {
		return nil, err
	}
	success = true
	return path, nil
}

// GetPrerequisites collects the transitive prerequisites of a concept,
// following only PREREQUISITE-typed edges. The visited set makes traversal
// cycle-safe and the result duplicate-free; ordering is discovery order.
// An unknown concept yields an empty result, not an error.
func (dm *DBManager) GetPrerequisites(ctx context.Context, conceptID string) ([]apptype.Concept, error) {
	done := metrics.TimeOp("get_prerequisites")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}

	visited := map[string]struct{}{conceptID: {}}
	frontier := []string{conceptID}
	var order []string

	for depth := 0; depth < prereqMaxDepth && len(frontier) > 0; depth++ {
		placeholders := strings.Repeat("?,", len(frontier))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, 0, len(frontier)+1)
		for _, id := range frontier {
			args = append(args, id)
		}
		args = append(args, apptype.RelationPrerequisite)

		rows, err := db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, source FROM relations
			WHERE target IN (%s) AND relation_type = ?
			ORDER BY id`, placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query prerequisites: %w", err)
		}

		var next []string
		for rows.Next() {
			var edgeID int64
			var source string
			if err := rows.Scan(&edgeID, &source); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan prerequisite edge: %w", err)
			}
			if _, ok := visited[source]; ok {
				continue
			}
			visited[source] = struct{}{}
			order = append(order, source)
			next = append(next, source)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		frontier = next
	}

	prereqs, err := dm.getConcepts(ctx, order)
	if err != nil {
		return nil, err
	}
	success = true
	return prereqs, nil
}
