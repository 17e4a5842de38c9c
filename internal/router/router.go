// Package router orchestrates classification, backend selection, and
// grounded result assembly for tutoring queries.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/classify"
	"github.com/edusearch/tutor-retrieval-go/internal/grounding"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// PassageBackend is the vector retrieval contract. Both the libSQL store
// and the chromem store satisfy it.
type PassageBackend interface {
	SearchPassages(ctx context.Context, embedding []float32, filter apptype.PassageFilter) ([]apptype.ScoredPassage, error)
}

// GraphBackend is the concept graph retrieval contract.
type GraphBackend interface {
	SearchConcepts(ctx context.Context, term string) ([]apptype.Concept, error)
	GetRelationships(ctx context.Context, conceptName string, depth int) ([]apptype.RelationDetail, error)
}

// Embedder turns the query string into the vector the passage backend
// searches with. Embedding generation is an external collaborator.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Translator is the optional grade-level rewriting collaborator.
type Translator interface {
	Translate(ctx context.Context, text string, gradeLevel int, sourceID string) (*apptype.Translation, error)
}

// Options configures a Router. The backend open functions run at most once
// each, on first use.
type Options struct {
	OpenVector func(ctx context.Context) (PassageBackend, error)
	OpenGraph  func(ctx context.Context) (GraphBackend, error)
	Embedder   Embedder
	Selector   Selector
	Translator Translator

	SearchLimit   int
	MinSimilarity float64
	GraphDepth    int
}

// Router is stateless between calls except for its lazily-initialized
// backend handles, which are safe to share across concurrent requests.
type Router struct {
	opts Options

	vecOnce sync.Once
	vec     PassageBackend
	vecErr  error

	graphOnce sync.Once
	graph     GraphBackend
	graphErr  error
}

// New creates a Router. Defaults: heuristic selector, 5 results, 2 hops.
func New(opts Options) *Router {
	if opts.Selector == nil {
		opts.Selector = HeuristicSelector{}
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.GraphDepth <= 0 {
		opts.GraphDepth = 2
	}
	return &Router{opts: opts}
}

func (r *Router) vectorBackend(ctx context.Context) (PassageBackend, error) {
	r.vecOnce.Do(func() {
		if r.opts.OpenVector == nil {
			return
		}
		r.vec, r.vecErr = r.opts.OpenVector(ctx)
	})
	if r.vecErr != nil {
		return nil, fmt.Errorf("%w: vector store: %v", apptype.ErrBackendUnavailable, r.vecErr)
	}
	if r.vec == nil {
		return nil, fmt.Errorf("%w: vector store not configured", apptype.ErrBackendUnavailable)
	}
	return r.vec, nil
}

func (r *Router) graphBackend(ctx context.Context) (GraphBackend, error) {
	r.graphOnce.Do(func() {
		if r.opts.OpenGraph == nil {
			return
		}
		r.graph, r.graphErr = r.opts.OpenGraph(ctx)
	})
	if r.graphErr != nil {
		return nil, fmt.Errorf("%w: graph store: %v", apptype.ErrBackendUnavailable, r.graphErr)
	}
	if r.graph == nil {
		return nil, fmt.Errorf("%w: graph store not configured", apptype.ErrBackendUnavailable)
	}
	return r.graph, nil
}

// Query classifies the query, dispatches it to one backend, and returns the
// guarded response. The engine is selected once; a backend failure is
// surfaced immediately, never silently retried against the other backend.
// A positive gradeLevel additionally rewrites a grounded result.
func (r *Router) Query(ctx context.Context, query string, mode apptype.Mode, gradeLevel int) (*apptype.RoutedResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	// Classification always runs, even under an explicit mode: the label is
	// part of the response metadata.
	cls := classify.Classify(query)
	if len(cls.Matched) == 0 {
		log.Info().Str("query", query).Msg("no classification evidence, defaulting to fact")
	}

	var engine apptype.Engine
	routedBy := "explicit"
	switch mode {
	case apptype.ModeVector:
		engine = apptype.EngineVector
	case apptype.ModeGraph:
		engine = apptype.EngineGraph
	case apptype.ModeAuto, "":
		var err error
		engine, err = r.opts.Selector.Select(ctx, query, cls)
		if err != nil {
			return nil, fmt.Errorf("engine selection failed: %w", err)
		}
		routedBy = "auto"
	default:
		return nil, fmt.Errorf("invalid retrieve mode %q", mode)
	}
	metrics.Default().IncRouteTotal(string(engine), string(cls.Type))

	var resp *apptype.RoutedResponse
	var err error
	switch engine {
	case apptype.EngineVector:
		resp, err = r.queryVector(ctx, query, cls)
	case apptype.EngineGraph:
		resp, err = r.queryGraph(ctx, query, cls)
	}
	if err != nil {
		return nil, err
	}
	resp.RoutedBy = routedBy

	resp = grounding.Enforce(resp)

	if gradeLevel > 0 && resp.Grounded && r.opts.Translator != nil {
		translation, err := r.opts.Translator.Translate(ctx, resp.Result, gradeLevel, resp.SourceID)
		if err != nil {
			return nil, fmt.Errorf("grade-level rewrite failed: %w", err)
		}
		resp.Translation = translation
	}

	return resp, nil
}

func (r *Router) queryVector(ctx context.Context, query string, cls apptype.Classification) (*apptype.RoutedResponse, error) {
	backend, err := r.vectorBackend(ctx)
	if err != nil {
		return nil, err
	}
	if r.opts.Embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", apptype.ErrBackendUnavailable)
	}

	vectors, err := r.opts.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding provider returned %d vectors for one input", len(vectors))
	}

	results, err := backend.SearchPassages(ctx, vectors[0], apptype.PassageFilter{
		Limit:         r.opts.SearchLimit,
		MinSimilarity: r.opts.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	resp := &apptype.RoutedResponse{
		Query:      query,
		QueryType:  cls.Type,
		EngineUsed: apptype.EngineVector,
		Passages:   results,
	}
	if len(results) > 0 {
		resp.Result = results[0].Passage.Content
		resp.SourceID = results[0].Passage.SourceID
	}
	return resp, nil
}

func (r *Router) queryGraph(ctx context.Context, query string, cls apptype.Classification) (*apptype.RoutedResponse, error) {
	backend, err := r.graphBackend(ctx)
	if err != nil {
		return nil, err
	}

	anchor, err := r.findAnchor(ctx, backend, query)
	if err != nil {
		return nil, err
	}

	resp := &apptype.RoutedResponse{
		Query:      query,
		QueryType:  cls.Type,
		EngineUsed: apptype.EngineGraph,
	}
	if anchor == nil {
		// No concept matched; the guard converts this to a "not found"
		return resp, nil
	}

	relations, err := backend.GetRelationships(ctx, anchor.Name, r.opts.GraphDepth)
	if err != nil {
		return nil, fmt.Errorf("graph traversal failed: %w", err)
	}

	var b strings.Builder
	b.WriteString(anchor.Name)
	if anchor.Description != "" {
		b.WriteString(": ")
		b.WriteString(anchor.Description)
	}
	for _, rel := range relations {
		b.WriteString(fmt.Sprintf("\n%s %s %s", rel.Source, rel.Type, rel.Target))
	}

	resp.Result = b.String()
	resp.SourceID = anchor.ID
	resp.Relations = relations
	return resp, nil
}

// queryStopwords are skipped when hunting for an anchor concept in the
// query text.
var queryStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "does": {}, "do": {}, "did": {}, "how": {},
	"why": {}, "what": {}, "which": {}, "when": {}, "where": {},
	"affect": {}, "affects": {}, "relate": {}, "relates": {},
	"between": {}, "into": {}, "about": {},
}

// findAnchor scans the query's content words in order and returns the first
// concept any of them matches. Returns nil when nothing matches.
func (r *Router) findAnchor(ctx context.Context, backend GraphBackend, query string) (*apptype.Concept, error) {
	for _, word := range strings.FieldsFunc(strings.ToLower(query), func(c rune) bool {
		return !('a' <= c && c <= 'z') && !('0' <= c && c <= '9')
	}) {
		if len(word) < 3 {
			continue
		}
		if _, stop := queryStopwords[word]; stop {
			continue
		}
		matches, err := backend.SearchConcepts(ctx, word)
		if err != nil {
			return nil, fmt.Errorf("concept lookup failed: %w", err)
		}
		if len(matches) > 0 {
			return &matches[0], nil
		}
	}
	return nil, nil
}
