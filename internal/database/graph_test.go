package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

func TestAddRelationshipValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Sunlight")
	seedConcept(t, db, "c2", "Photosynthesis")

	err := db.AddRelationship(ctx, apptype.Relation{
		Source: "c1", Target: "c2", Type: "CAUSES_VIBES",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid relation type")

	// A missing endpoint must fail without writing a dangling edge.
	err = db.AddRelationship(ctx, apptype.Relation{
		Source: "c1", Target: "ghost", Type: apptype.RelationEnables,
	})
	assert.ErrorIs(t, err, apptype.ErrNotFound)

	rels, err := db.GetRelationships(ctx, "Sunlight", 1)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestGetRelationshipsDepth(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Sunlight")
	seedConcept(t, db, "c2", "Photosynthesis")
	seedConcept(t, db, "c3", "Glucose")
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{
		Source: "c1", Target: "c2", Type: apptype.RelationEnables, Weight: floatPtr(0.9),
	}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{
		Source: "c2", Target: "c3", Type: apptype.RelationProduces,
	}))

	oneHop, err := db.GetRelationships(ctx, "Sunlight", 1)
	require.NoError(t, err)
	require.Len(t, oneHop, 1)
	assert.Equal(t, "Sunlight", oneHop[0].Source)
	assert.Equal(t, apptype.RelationEnables, oneHop[0].Type)
	assert.Equal(t, "Photosynthesis", oneHop[0].Target)
	assert.NotEmpty(t, oneHop[0].Description)

	twoHop, err := db.GetRelationships(ctx, "Sunlight", 2)
	require.NoError(t, err)
	require.Len(t, twoHop, 2)
	assert.Equal(t, "Glucose", twoHop[1].Target)

	// Unknown anchor yields an empty expansion, not an error.
	none, err := db.GetRelationships(ctx, "Quantum Foam", 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetRelationshipsCap(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "hub", "Hub")
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("spoke-%02d", i)
		seedConcept(t, db, id, fmt.Sprintf("Spoke %02d", i))
		require.NoError(t, db.AddRelationship(ctx, apptype.Relation{
			Source: "hub", Target: id, Type: apptype.RelationEnables,
		}))
	}

	rels, err := db.GetRelationships(ctx, "Hub", 1)
	require.NoError(t, err)
	assert.Len(t, rels, maxRelationResults)
}

func TestFindPath(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Counting")
	seedConcept(t, db, "c2", "Addition")
	seedConcept(t, db, "c3", "Multiplication")
	seedConcept(t, db, "c4", "Algebra")
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c1", Target: "c2", Type: apptype.RelationPrerequisite}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c2", Target: "c3", Type: apptype.RelationPrerequisite}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c3", Target: "c4", Type: apptype.RelationPrerequisite}))

	path, err := db.FindPath(ctx, "Counting", "Algebra")
	require.NoError(t, err)
	require.Len(t, path, 4)
	assert.Equal(t, "Counting", path[0].Name)
	assert.Equal(t, "Algebra", path[3].Name)

	// Traversal is undirected: the reverse query walks the same edges.
	back, err := db.FindPath(ctx, "Algebra", "Counting")
	require.NoError(t, err)
	require.Len(t, back, 4)
	assert.Equal(t, "Algebra", back[0].Name)

	seedConcept(t, db, "island", "Island")
	none, err := db.FindPath(ctx, "Counting", "Island")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindPathPrefersEarlierEdges(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "a", "A")
	seedConcept(t, db, "b", "B")
	seedConcept(t, db, "c", "C")
	seedConcept(t, db, "d", "D")
	// Two equal-length paths a->b->d and a->c->d; the edge inserted first
	// decides the winner.
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "a", Target: "b", Type: apptype.RelationEnables}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "a", Target: "c", Type: apptype.RelationEnables}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "b", Target: "d", Type: apptype.RelationEnables}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c", Target: "d", Type: apptype.RelationEnables}))

	path, err := db.FindPath(ctx, "A", "D")
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, "B", path[1].Name)
}

func TestGetPrerequisites(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Counting")
	seedConcept(t, db, "c2", "Addition")
	seedConcept(t, db, "c3", "Multiplication")
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c1", Target: "c2", Type: apptype.RelationPrerequisite}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c2", Target: "c3", Type: apptype.RelationPrerequisite}))
	// Non-prerequisite edges never count.
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c3", Target: "c1", Type: apptype.RelationEnables}))

	prereqs, err := db.GetPrerequisites(ctx, "c3")
	require.NoError(t, err)
	require.Len(t, prereqs, 2)
	assert.Equal(t, "Addition", prereqs[0].Name)
	assert.Equal(t, "Counting", prereqs[1].Name)

	none, err := db.GetPrerequisites(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetPrerequisitesCycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Reading")
	seedConcept(t, db, "c2", "Writing")
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c1", Target: "c2", Type: apptype.RelationPrerequisite}))
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{Source: "c2", Target: "c1", Type: apptype.RelationPrerequisite}))

	// A cycle must terminate; the start concept is never its own
	// prerequisite and nothing is reported twice.
	prereqs, err := db.GetPrerequisites(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, prereqs, 1)
	assert.Equal(t, "c2", prereqs[0].ID)
}
