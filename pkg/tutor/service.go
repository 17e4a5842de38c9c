// Package tutor provides the embeddable retrieval service: storage,
// embeddings, routing, and grade-level rewriting behind one facade.
package tutor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/buildinfo"
	"github.com/edusearch/tutor-retrieval-go/internal/database"
	"github.com/edusearch/tutor-retrieval-go/internal/embeddings"
	"github.com/edusearch/tutor-retrieval-go/internal/rewriter"
	"github.com/edusearch/tutor-retrieval-go/internal/router"
	"github.com/edusearch/tutor-retrieval-go/internal/vectorstore"
)

// PassageStore is the write/search contract both passage backends satisfy.
type PassageStore interface {
	CreatePassages(ctx context.Context, passages []apptype.Passage) error
	SearchPassages(ctx context.Context, embedding []float32, filter apptype.PassageFilter) ([]apptype.ScoredPassage, error)
}

// Service wires the concept graph, the passage store, the embedding
// provider, and the router into one handle. It is safe for concurrent use.
type Service struct {
	cfg      *Config
	db       *database.DBManager
	passages PassageStore
	embedder embeddings.Provider
	rewriter *rewriter.Rewriter
	router   *router.Router
}

// NewService builds a Service from the given configuration. The embedding
// provider and rewriter come from the environment and are optional:
// without an embedding provider vector retrieval reports the backend as
// unavailable, and without a rewriter grade-level rewriting is skipped.
func NewService(cfg *Config) (*Service, error) {
	db, err := database.NewDBManager(cfg.toInternal())
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, db: db}

	switch strings.ToLower(cfg.StoreBackend) {
	case "", "libsql":
		s.passages = db
	case "chromem":
		store, err := vectorstore.NewChromemStore(cfg.ChromemPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store: %w", err)
		}
		s.passages = store
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if p := embeddings.NewFromEnv(); p != nil {
		s.embedder = embeddings.WrapToDims(p, db.EmbeddingDims(), os.Getenv("EMBEDDINGS_ADAPT"))
		log.Info().Str("provider", p.Name()).Int("dims", db.EmbeddingDims()).Msg("embedding provider configured")
	} else {
		log.Warn().Msg("no embedding provider configured, vector retrieval disabled")
	}

	s.rewriter = rewriter.NewFromEnv()

	var selector router.Selector
	if strings.EqualFold(os.Getenv("ROUTER_SELECTOR"), "llm") && s.rewriter != nil {
		selector = router.NewLLMSelector(s.rewriter.Model())
	}

	opts := router.Options{
		OpenVector: func(context.Context) (router.PassageBackend, error) {
			return s.passages, nil
		},
		OpenGraph: func(context.Context) (router.GraphBackend, error) {
			return db, nil
		},
		Selector:      selector,
		SearchLimit:   cfg.SearchLimit,
		MinSimilarity: cfg.MinSimilarity,
		GraphDepth:    cfg.GraphDepth,
	}
	if s.embedder != nil {
		opts.Embedder = s.embedder
	}
	if s.rewriter != nil {
		opts.Translator = s.rewriter
	}
	s.router = router.New(opts)

	return s, nil
}

// Query routes a question to one retrieval engine and returns the guarded
// response.
func (s *Service) Query(ctx context.Context, query string, mode apptype.Mode, gradeLevel int) (*apptype.RoutedResponse, error) {
	return s.router.Query(ctx, query, mode, gradeLevel)
}

// Translate rewrites text to a grade level, carrying the citation forward.
func (s *Service) Translate(ctx context.Context, text string, gradeLevel int, sourceID string) (*apptype.Translation, error) {
	if s.rewriter == nil {
		return nil, fmt.Errorf("%w: no rewriter configured", apptype.ErrBackendUnavailable)
	}
	return s.rewriter.Translate(ctx, text, gradeLevel, sourceID)
}

// AddConcept stores a concept. Re-adding an existing id is a no-op.
func (s *Service) AddConcept(ctx context.Context, c apptype.Concept) error {
	return s.db.AddConcept(ctx, c)
}

// GetConcept returns the concept with the given id, or nil when absent.
func (s *Service) GetConcept(ctx context.Context, id string) (*apptype.Concept, error) {
	return s.db.GetConcept(ctx, id)
}

// UpdateConcept modifies a concept's mutable fields.
func (s *Service) UpdateConcept(ctx context.Context, id, description string, gradeLevel int, subject string) error {
	return s.db.UpdateConcept(ctx, id, description, gradeLevel, subject)
}

// DeleteConcept removes a concept along with its edges and chunk links.
func (s *Service) DeleteConcept(ctx context.Context, id string) error {
	return s.db.DeleteConcept(ctx, id)
}

// SearchConcepts matches a term against concept names and descriptions.
func (s *Service) SearchConcepts(ctx context.Context, term string) ([]apptype.Concept, error) {
	return s.db.SearchConcepts(ctx, term)
}

// AddRelationship creates a typed edge between two existing concepts.
func (s *Service) AddRelationship(ctx context.Context, r apptype.Relation) error {
	return s.db.AddRelationship(ctx, r)
}

// GetRelationships traverses up to depth hops from the named concept.
func (s *Service) GetRelationships(ctx context.Context, conceptName string, depth int) ([]apptype.RelationDetail, error) {
	return s.db.GetRelationships(ctx, conceptName, depth)
}

// FindPath returns the shortest undirected concept path between two names.
func (s *Service) FindPath(ctx context.Context, from, to string) ([]apptype.Concept, error) {
	return s.db.FindPath(ctx, from, to)
}

// GetPrerequisites collects the transitive prerequisites of a concept.
func (s *Service) GetPrerequisites(ctx context.Context, conceptID string) ([]apptype.Concept, error) {
	return s.db.GetPrerequisites(ctx, conceptID)
}

// AddPassages stores passages, computing embeddings for any that omit one.
func (s *Service) AddPassages(ctx context.Context, passages []apptype.Passage) error {
	missing := make([]int, 0, len(passages))
	for i := range passages {
		if len(passages[i].Embedding) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		if s.embedder == nil {
			return fmt.Errorf("%w: %d passages need embeddings but no provider is configured",
				apptype.ErrBackendUnavailable, len(missing))
		}
		inputs := make([]string, len(missing))
		for j, i := range missing {
			inputs[j] = passages[i].Content
		}
		vectors, err := s.embedder.Embed(ctx, inputs)
		if err != nil {
			return fmt.Errorf("failed to embed passages: %w", err)
		}
		if len(vectors) != len(missing) {
			return fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vectors), len(missing))
		}
		for j, i := range missing {
			passages[i].Embedding = vectors[j]
		}
	}
	return s.passages.CreatePassages(ctx, passages)
}

// SearchPassages embeds the query and searches the passage store directly,
// bypassing the router.
func (s *Service) SearchPassages(ctx context.Context, query string, filter apptype.PassageFilter) ([]apptype.ScoredPassage, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", apptype.ErrBackendUnavailable)
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding provider returned %d vectors for one input", len(vectors))
	}
	return s.passages.SearchPassages(ctx, vectors[0], filter)
}

// LinkChunkConcept associates a passage chunk with a concept.
func (s *Service) LinkChunkConcept(ctx context.Context, link apptype.ChunkConceptLink) error {
	return s.db.LinkChunkConcept(ctx, link)
}

// ConceptsForChunk lists the concepts linked to a chunk by relevance.
func (s *Service) ConceptsForChunk(ctx context.Context, chunkID string) ([]apptype.Concept, error) {
	return s.db.ConceptsForChunk(ctx, chunkID)
}

// ChunksForConcept lists the chunk links of a concept by relevance.
func (s *Service) ChunksForConcept(ctx context.Context, conceptID string) ([]apptype.ChunkConceptLink, error) {
	return s.db.ChunksForConcept(ctx, conceptID)
}

// Health reports the service's configuration and storage reachability.
func (s *Service) Health(ctx context.Context) (*apptype.HealthResult, error) {
	if err := s.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage unreachable: %w", err)
	}
	res := &apptype.HealthResult{
		Name:          "tutor-retrieval-go",
		Version:       buildinfo.Version,
		StoreBackend:  s.cfg.StoreBackend,
		EmbeddingDims: s.db.EmbeddingDims(),
		Rewriter:      s.rewriter != nil,
	}
	if s.embedder != nil {
		res.Embeddings = s.embedder.Name()
	} else {
		res.Embeddings = "none"
	}
	return res, nil
}

// PoolStats reports the libSQL connection pool's in-use and idle counts.
func (s *Service) PoolStats() (inUse, idle int) {
	return s.db.PoolStats()
}

// Close releases the underlying stores.
func (s *Service) Close() error {
	return s.db.Close()
}
