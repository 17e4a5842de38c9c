package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

func setupStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore("")
	require.NoError(t, err)

	err = store.CreatePassages(context.Background(), []apptype.Passage{
		{
			ChunkID:    "chunk-1",
			SourceID:   "textbook-bio-12",
			Content:    "Plants convert sunlight into glucose through photosynthesis.",
			Embedding:  []float32{1, 0, 0, 0},
			GradeLevel: 5,
			Subject:    "biology",
			KeyTerms:   []string{"photosynthesis"},
		},
		{
			ChunkID:    "chunk-2",
			SourceID:   "textbook-bio-13",
			Content:    "Chlorophyll absorbs red and blue light.",
			Embedding:  []float32{0.9, 0.1, 0, 0},
			GradeLevel: 8,
			Subject:    "biology",
		},
		{
			ChunkID:    "chunk-3",
			SourceID:   "textbook-phys-01",
			Content:    "Light is electromagnetic radiation.",
			Embedding:  []float32{0, 1, 0, 0},
			GradeLevel: 8,
			Subject:    "physics",
		},
	})
	require.NoError(t, err)
	return store
}

func TestChromemSearchPassages(t *testing.T) {
	store := setupStore(t)

	results, err := store.SearchPassages(context.Background(), []float32{1, 0, 0, 0}, apptype.PassageFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "chunk-1", results[0].Passage.ChunkID)
	assert.Equal(t, "textbook-bio-12", results[0].Passage.SourceID)
	assert.Equal(t, []string{"photosynthesis"}, results[0].Passage.KeyTerms)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestChromemSearchPassagesFilters(t *testing.T) {
	store := setupStore(t)

	grade := 8
	results, err := store.SearchPassages(context.Background(), []float32{1, 0, 0, 0}, apptype.PassageFilter{
		Limit:      3,
		GradeLevel: &grade,
		Subject:    "biology",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-2", results[0].Passage.ChunkID)
	assert.Equal(t, 8, results[0].Passage.GradeLevel)
}

func TestChromemSearchPassagesMinSimilarity(t *testing.T) {
	store := setupStore(t)

	results, err := store.SearchPassages(context.Background(), []float32{1, 0, 0, 0}, apptype.PassageFilter{
		Limit:         3,
		MinSimilarity: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.5)
	}
}

func TestChromemSearchEmptyStore(t *testing.T) {
	store, err := NewChromemStore("")
	require.NoError(t, err)

	results, err := store.SearchPassages(context.Background(), []float32{1, 0, 0, 0}, apptype.PassageFilter{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemCreatePassagesValidation(t *testing.T) {
	store, err := NewChromemStore("")
	require.NoError(t, err)

	err = store.CreatePassages(context.Background(), []apptype.Passage{{
		ChunkID: "c", SourceID: "s", Content: "text",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precomputed embedding")
}
