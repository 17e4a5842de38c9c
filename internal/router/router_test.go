package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/grounding"
)

type fakeVector struct {
	results []apptype.ScoredPassage
	err     error
	calls   int
}

func (f *fakeVector) SearchPassages(_ context.Context, _ []float32, _ apptype.PassageFilter) ([]apptype.ScoredPassage, error) {
	f.calls++
	return f.results, f.err
}

type fakeGraph struct {
	concepts  map[string][]apptype.Concept
	relations []apptype.RelationDetail
	calls     int
}

func (f *fakeGraph) SearchConcepts(_ context.Context, term string) ([]apptype.Concept, error) {
	f.calls++
	return f.concepts[strings.ToLower(term)], nil
}

func (f *fakeGraph) GetRelationships(_ context.Context, _ string, _ int) ([]apptype.RelationDetail, error) {
	return f.relations, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

type fakeTranslator struct {
	calls int
}

func (f *fakeTranslator) Translate(_ context.Context, text string, gradeLevel int, sourceID string) (*apptype.Translation, error) {
	f.calls++
	return &apptype.Translation{
		Simplified: "simple: " + text,
		Metaphor:   "like a metaphor",
		SourceID:   sourceID,
		Confidence: 0.8,
	}, nil
}

func newTestRouter(vec *fakeVector, graph *fakeGraph, translator Translator) *Router {
	opts := Options{
		Embedder:   fakeEmbedder{},
		Translator: translator,
	}
	if vec != nil {
		opts.OpenVector = func(context.Context) (PassageBackend, error) { return vec, nil }
	}
	if graph != nil {
		opts.OpenGraph = func(context.Context) (GraphBackend, error) { return graph, nil }
	}
	return New(opts)
}

func groundedPassage() []apptype.ScoredPassage {
	return []apptype.ScoredPassage{{
		Passage: apptype.Passage{
			ChunkID:  "chunk-1",
			SourceID: "textbook-bio-12",
			Content:  "Plants convert sunlight into glucose through photosynthesis.",
		},
		Similarity: 0.93,
	}}
}

func TestQueryFactRoutesToVector(t *testing.T) {
	vec := &fakeVector{results: groundedPassage()}
	graph := &fakeGraph{}
	r := newTestRouter(vec, graph, nil)

	resp, err := r.Query(context.Background(), "What is photosynthesis?", apptype.ModeAuto, 0)
	require.NoError(t, err)
	assert.Equal(t, apptype.QueryTypeFact, resp.QueryType)
	assert.Equal(t, apptype.EngineVector, resp.EngineUsed)
	assert.Equal(t, "auto", resp.RoutedBy)
	assert.True(t, resp.Grounded)
	assert.Equal(t, "textbook-bio-12", resp.SourceID)
	assert.Equal(t, "Plants convert sunlight into glucose through photosynthesis.", resp.Result)
	assert.Zero(t, graph.calls)
}

func TestQueryConceptRoutesToGraph(t *testing.T) {
	vec := &fakeVector{}
	graph := &fakeGraph{
		concepts: map[string][]apptype.Concept{
			"sunlight": {{ID: "c-sun", Name: "Sunlight", Description: "Radiant energy from the sun"}},
		},
		relations: []apptype.RelationDetail{
			{Source: "Sunlight", Type: apptype.RelationEnables, Target: "Photosynthesis", Description: "Light powers the reaction"},
		},
	}
	r := newTestRouter(vec, graph, nil)

	resp, err := r.Query(context.Background(), "How does sunlight affect photosynthesis?", apptype.ModeAuto, 0)
	require.NoError(t, err)
	assert.Equal(t, apptype.QueryTypeConcept, resp.QueryType)
	assert.Equal(t, apptype.EngineGraph, resp.EngineUsed)
	assert.True(t, resp.Grounded)
	assert.Equal(t, "c-sun", resp.SourceID)
	assert.Contains(t, resp.Result, "Sunlight ENABLES Photosynthesis")
	require.Len(t, resp.Relations, 1)
	assert.Zero(t, vec.calls)
}

func TestQueryExplicitModeOverridesClassification(t *testing.T) {
	vec := &fakeVector{results: groundedPassage()}
	r := newTestRouter(vec, &fakeGraph{}, nil)

	// A conceptual query forced onto the vector engine.
	resp, err := r.Query(context.Background(), "How does sunlight affect photosynthesis?", apptype.ModeVector, 0)
	require.NoError(t, err)
	assert.Equal(t, apptype.QueryTypeConcept, resp.QueryType)
	assert.Equal(t, apptype.EngineVector, resp.EngineUsed)
	assert.Equal(t, "explicit", resp.RoutedBy)
}

func TestQueryInvalidMode(t *testing.T) {
	r := newTestRouter(&fakeVector{}, &fakeGraph{}, nil)

	_, err := r.Query(context.Background(), "anything", apptype.Mode("hybrid"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid retrieve mode")
}

func TestQueryEmpty(t *testing.T) {
	r := newTestRouter(&fakeVector{}, &fakeGraph{}, nil)

	_, err := r.Query(context.Background(), "   ", apptype.ModeAuto, 0)
	require.Error(t, err)
}

func TestQueryBackendUnavailableNoFallback(t *testing.T) {
	graph := &fakeGraph{}
	opts := Options{
		OpenVector: func(context.Context) (PassageBackend, error) {
			return nil, errors.New("connection refused")
		},
		OpenGraph: func(context.Context) (GraphBackend, error) { return graph, nil },
		Embedder:  fakeEmbedder{},
	}
	r := New(opts)

	_, err := r.Query(context.Background(), "What is photosynthesis?", apptype.ModeAuto, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apptype.ErrBackendUnavailable)
	// The failure surfaces immediately; the other engine is never tried.
	assert.Zero(t, graph.calls)
}

func TestQueryUnconfiguredBackend(t *testing.T) {
	r := newTestRouter(&fakeVector{results: groundedPassage()}, nil, nil)

	_, err := r.Query(context.Background(), "anything", apptype.ModeGraph, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apptype.ErrBackendUnavailable)
}

func TestQueryEmptyResultsBecomeNotFound(t *testing.T) {
	vec := &fakeVector{}
	r := newTestRouter(vec, &fakeGraph{}, nil)

	resp, err := r.Query(context.Background(), "What is phlogiston?", apptype.ModeVector, 0)
	require.NoError(t, err)
	assert.False(t, resp.Grounded)
	assert.Equal(t, grounding.NotFoundMessage, resp.Result)
	assert.Empty(t, resp.SourceID)
}

func TestQueryGraphNoAnchorBecomesNotFound(t *testing.T) {
	graph := &fakeGraph{concepts: map[string][]apptype.Concept{}}
	r := newTestRouter(&fakeVector{}, graph, nil)

	resp, err := r.Query(context.Background(), "How does entropy relate to time?", apptype.ModeGraph, 0)
	require.NoError(t, err)
	assert.False(t, resp.Grounded)
	assert.Equal(t, grounding.NotFoundMessage, resp.Result)
}

func TestQueryTranslatesGroundedResult(t *testing.T) {
	vec := &fakeVector{results: groundedPassage()}
	translator := &fakeTranslator{}
	r := newTestRouter(vec, &fakeGraph{}, translator)

	resp, err := r.Query(context.Background(), "What is photosynthesis?", apptype.ModeAuto, 5)
	require.NoError(t, err)
	require.NotNil(t, resp.Translation)
	assert.Equal(t, "textbook-bio-12", resp.Translation.SourceID)
	assert.Equal(t, 1, translator.calls)
}

func TestQuerySkipsTranslationWhenUngrounded(t *testing.T) {
	vec := &fakeVector{}
	translator := &fakeTranslator{}
	r := newTestRouter(vec, &fakeGraph{}, translator)

	resp, err := r.Query(context.Background(), "What is phlogiston?", apptype.ModeVector, 5)
	require.NoError(t, err)
	assert.Nil(t, resp.Translation)
	assert.Zero(t, translator.calls)
}

func TestQuerySkipsTranslationWithoutGradeLevel(t *testing.T) {
	vec := &fakeVector{results: groundedPassage()}
	translator := &fakeTranslator{}
	r := newTestRouter(vec, &fakeGraph{}, translator)

	resp, err := r.Query(context.Background(), "What is photosynthesis?", apptype.ModeAuto, 0)
	require.NoError(t, err)
	assert.Nil(t, resp.Translation)
	assert.Zero(t, translator.calls)
}

func TestHeuristicSelector(t *testing.T) {
	s := HeuristicSelector{}

	engine, err := s.Select(context.Background(), "q", apptype.Classification{Type: apptype.QueryTypeConcept})
	require.NoError(t, err)
	assert.Equal(t, apptype.EngineGraph, engine)

	engine, err = s.Select(context.Background(), "q", apptype.Classification{Type: apptype.QueryTypeFact})
	require.NoError(t, err)
	assert.Equal(t, apptype.EngineVector, engine)
}
