package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

var testDBCounter atomic.Int64

func setupTestDB(t *testing.T) (*DBManager, func()) {
	config := NewConfig()
	// Use an in-memory database for testing. The `cache=shared` is crucial
	// for sharing the connection across different calls to `sql.Open`
	// within the same process; the per-test name keeps tests isolated.
	config.URL = fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter.Add(1))
	config.EmbeddingDims = 4
	db, err := NewDBManager(config)
	require.NoError(t, err)

	cleanup := func() {
		err := db.Close()
		assert.NoError(t, err)
	}

	return db, cleanup
}

func floatPtr(v float64) *float64 { return &v }

func seedConcept(t *testing.T, db *DBManager, id, name string) {
	t.Helper()
	err := db.AddConcept(context.Background(), apptype.Concept{
		ID:          id,
		Name:        name,
		Description: name + " description",
		GradeLevel:  5,
		Subject:     "science",
	})
	require.NoError(t, err)
}

func TestAddAndGetConcept(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	err := db.AddConcept(ctx, apptype.Concept{
		ID:          "c-photo",
		Name:        "Photosynthesis",
		Description: "How plants make food from light",
		GradeLevel:  5,
		Subject:     "biology",
	})
	require.NoError(t, err)

	got, err := db.GetConcept(ctx, "c-photo")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Photosynthesis", got.Name)
	assert.Equal(t, 5, got.GradeLevel)
	assert.Equal(t, "biology", got.Subject)

	missing, err := db.GetConcept(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAddConceptIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	err := db.AddConcept(ctx, apptype.Concept{ID: "c1", Name: "Gravity", Description: "first write"})
	require.NoError(t, err)

	// Re-adding the same id with different content must be a silent no-op.
	err = db.AddConcept(ctx, apptype.Concept{ID: "c1", Name: "Gravity", Description: "second write"})
	require.NoError(t, err)

	got, err := db.GetConcept(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first write", got.Description)
}

func TestGetConceptByNameCaseInsensitive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Photosynthesis")

	got, err := db.GetConceptByName(ctx, "photosynthesis")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ID)
}

func TestUpdateConcept(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Gravity")

	err := db.UpdateConcept(ctx, "c1", "updated description", 7, "")
	require.NoError(t, err)

	got, err := db.GetConcept(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "updated description", got.Description)
	assert.Equal(t, 7, got.GradeLevel)
	// Empty subject leaves the stored value unchanged.
	assert.Equal(t, "science", got.Subject)

	err = db.UpdateConcept(ctx, "does-not-exist", "x", 0, "")
	assert.ErrorIs(t, err, apptype.ErrNotFound)
}

func TestDeleteConceptCascades(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedConcept(t, db, "c1", "Sunlight")
	seedConcept(t, db, "c2", "Photosynthesis")
	require.NoError(t, db.AddRelationship(ctx, apptype.Relation{
		Source: "c1", Target: "c2", Type: apptype.RelationEnables,
	}))

	require.NoError(t, db.DeleteConcept(ctx, "c1"))

	got, err := db.GetConcept(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	rels, err := db.GetRelationships(ctx, "Photosynthesis", 2)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestSearchConceptsRanking(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, db.AddConcept(ctx, apptype.Concept{ID: "c1", Name: "Plant Cell", Description: "basic unit"}))
	require.NoError(t, db.AddConcept(ctx, apptype.Concept{ID: "c2", Name: "Cell Wall", Description: "rigid outer layer"}))
	require.NoError(t, db.AddConcept(ctx, apptype.Concept{ID: "c3", Name: "Mitosis", Description: "cell division"}))

	results, err := db.SearchConcepts(ctx, "cell")
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Earlier match position ranks first: "Cell Wall" matches at 0.
	assert.Equal(t, "Cell Wall", results[0].Name)

	none, err := db.SearchConcepts(ctx, "quasar")
	require.NoError(t, err)
	assert.Empty(t, none)
}
