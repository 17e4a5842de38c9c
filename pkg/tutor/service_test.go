package tutor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/grounding"
)

var testDBCounter atomic.Int64

func setupService(t *testing.T) *Service {
	// Pin optional collaborators off regardless of the ambient environment.
	t.Setenv("EMBEDDINGS_PROVIDER", "")
	t.Setenv("REWRITER_PROVIDER", "disabled")
	t.Setenv("ROUTER_SELECTOR", "")

	cfg := NewConfig()
	cfg.URL = fmt.Sprintf("file:tutorsvc%d?mode=memory&cache=shared", testDBCounter.Add(1))
	cfg.EmbeddingDims = 4
	cfg.StoreBackend = "libsql"

	service, err := NewService(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, service.Close())
	})
	return service
}

func seedCurriculum(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	concepts := []apptype.Concept{
		{ID: "c-sun", Name: "Sunlight", Description: "Radiant energy from the sun", GradeLevel: 5, Subject: "science"},
		{ID: "c-photo", Name: "Photosynthesis", Description: "How plants make food from light", GradeLevel: 5, Subject: "science"},
		{ID: "c-glucose", Name: "Glucose", Description: "A simple sugar", GradeLevel: 5, Subject: "science"},
	}
	for _, c := range concepts {
		require.NoError(t, s.AddConcept(ctx, c))
	}
	require.NoError(t, s.AddRelationship(ctx, apptype.Relation{
		Source: "c-sun", Target: "c-photo", Type: apptype.RelationEnables,
	}))
	require.NoError(t, s.AddRelationship(ctx, apptype.Relation{
		Source: "c-photo", Target: "c-glucose", Type: apptype.RelationProduces,
	}))
}

func TestServiceGraphQuery(t *testing.T) {
	s := setupService(t)
	seedCurriculum(t, s)

	resp, err := s.Query(context.Background(), "How does sunlight affect photosynthesis?", apptype.ModeAuto, 0)
	require.NoError(t, err)
	assert.Equal(t, apptype.QueryTypeConcept, resp.QueryType)
	assert.Equal(t, apptype.EngineGraph, resp.EngineUsed)
	assert.True(t, resp.Grounded)
	assert.Equal(t, "c-sun", resp.SourceID)
	assert.Contains(t, resp.Result, "Sunlight ENABLES Photosynthesis")
}

func TestServiceQueryUnknownConceptNotFound(t *testing.T) {
	s := setupService(t)
	seedCurriculum(t, s)

	resp, err := s.Query(context.Background(), "How does quantum entanglement relate to spin?", apptype.ModeGraph, 0)
	require.NoError(t, err)
	assert.False(t, resp.Grounded)
	assert.Equal(t, grounding.NotFoundMessage, resp.Result)
}

func TestServiceRelationsForUnknownConceptEmpty(t *testing.T) {
	s := setupService(t)
	seedCurriculum(t, s)

	rels, err := s.GetRelationships(context.Background(), "Phlogiston", 2)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestServiceFindPathAndPrerequisites(t *testing.T) {
	s := setupService(t)
	seedCurriculum(t, s)
	ctx := context.Background()

	path, err := s.FindPath(ctx, "Sunlight", "Glucose")
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, "Photosynthesis", path[1].Name)

	require.NoError(t, s.AddRelationship(ctx, apptype.Relation{
		Source: "c-sun", Target: "c-photo", Type: apptype.RelationPrerequisite,
	}))
	prereqs, err := s.GetPrerequisites(ctx, "c-photo")
	require.NoError(t, err)
	require.Len(t, prereqs, 1)
	assert.Equal(t, "c-sun", prereqs[0].ID)
}

func TestServiceVectorQueryWithoutEmbedderUnavailable(t *testing.T) {
	s := setupService(t)
	seedCurriculum(t, s)

	_, err := s.Query(context.Background(), "What is photosynthesis?", apptype.ModeVector, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apptype.ErrBackendUnavailable)
}

func TestServiceAddPassagesRequiresEmbeddings(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	// Inline embeddings are stored as-is.
	err := s.AddPassages(ctx, []apptype.Passage{{
		ChunkID:   "chunk-1",
		SourceID:  "textbook-bio-12",
		Content:   "Plants convert sunlight into glucose.",
		Embedding: []float32{1, 0, 0, 0},
	}})
	require.NoError(t, err)

	// Without a provider, passages missing embeddings are refused.
	err = s.AddPassages(ctx, []apptype.Passage{{
		ChunkID:  "chunk-2",
		SourceID: "textbook-bio-13",
		Content:  "Chlorophyll absorbs red and blue light.",
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apptype.ErrBackendUnavailable)
}

func TestServiceHealth(t *testing.T) {
	s := setupService(t)

	res, err := s.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tutor-retrieval-go", res.Name)
	assert.Equal(t, "libsql", res.StoreBackend)
	assert.Equal(t, 4, res.EmbeddingDims)
	assert.Equal(t, "none", res.Embeddings)
	assert.False(t, res.Rewriter)
}

func TestServiceChromemBackend(t *testing.T) {
	t.Setenv("EMBEDDINGS_PROVIDER", "")
	t.Setenv("REWRITER_PROVIDER", "disabled")

	cfg := NewConfig()
	cfg.URL = fmt.Sprintf("file:tutorsvc%d?mode=memory&cache=shared", testDBCounter.Add(1))
	cfg.EmbeddingDims = 4
	cfg.StoreBackend = "chromem"

	s, err := NewService(cfg)
	require.NoError(t, err)
	defer s.Close()

	err = s.AddPassages(context.Background(), []apptype.Passage{{
		ChunkID:   "chunk-1",
		SourceID:  "textbook-bio-12",
		Content:   "Plants convert sunlight into glucose.",
		Embedding: []float32{1, 0, 0, 0},
	}})
	require.NoError(t, err)
}
