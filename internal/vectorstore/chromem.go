// Package vectorstore provides an embedded, in-process passage vector store
// backed by chromem-go. It implements the same passage-search contract as
// the libSQL store, so either engine can back the retrieval router.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

const defaultCollection = "passages"

// ChromemStore keeps passages in a chromem-go collection, persisted to disk
// unless constructed in memory.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) a persistent store at path. An empty
// path yields an in-memory store.
func NewChromemStore(path string) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store: %w", err)
		}
	}

	// nil embedding func: passages always arrive with precomputed vectors
	collection, err := db.GetOrCreateCollection(defaultCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open passages collection: %w", err)
	}
	return &ChromemStore{db: db, collection: collection}, nil
}

// CreatePassages stores passages with their metadata. Every passage must
// carry a non-empty source id and a precomputed embedding.
func (s *ChromemStore) CreatePassages(ctx context.Context, passages []apptype.Passage) error {
	done := metrics.TimeOp("chromem_create_passages")
	success := false
	defer func() { done(success) }()

	docs := make([]chromem.Document, 0, len(passages))
	for _, p := range passages {
		if p.ChunkID == "" {
			return fmt.Errorf("passage chunk id must be a non-empty string")
		}
		if p.SourceID == "" {
			return fmt.Errorf("passage %q must have a source id", p.ChunkID)
		}
		if len(p.Embedding) == 0 {
			return fmt.Errorf("passage %q must carry a precomputed embedding", p.ChunkID)
		}
		keyTerms, err := json.Marshal(p.KeyTerms)
		if err != nil {
			return fmt.Errorf("failed to marshal key terms for passage %q: %w", p.ChunkID, err)
		}
		docs = append(docs, chromem.Document{
			ID:      p.ChunkID,
			Content: p.Content,
			Metadata: map[string]string{
				"source_id":   p.SourceID,
				"grade_level": strconv.Itoa(p.GradeLevel),
				"subject":     p.Subject,
				"key_terms":   string(keyTerms),
			},
			Embedding: p.Embedding,
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add passages: %w", err)
	}
	success = true
	return nil
}

// SearchPassages performs cosine similarity search. Grade and subject
// filters are applied as a metadata pre-filter, so the limit returns the
// best matches within the allowed subset.
func (s *ChromemStore) SearchPassages(ctx context.Context, embedding []float32, filter apptype.PassageFilter) ([]apptype.ScoredPassage, error) {
	done := metrics.TimeOp("chromem_search_passages")
	success := false
	defer func() { done(success) }()

	if len(embedding) == 0 {
		return nil, fmt.Errorf("search embedding cannot be empty")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	if count := s.collection.Count(); limit > count {
		if count == 0 {
			success = true
			return nil, nil
		}
		limit = count
	}

	where := map[string]string{}
	if filter.GradeLevel != nil {
		where["grade_level"] = strconv.Itoa(*filter.GradeLevel)
	}
	if filter.Subject != "" {
		where["subject"] = filter.Subject
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       limit,
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}

	var scored []apptype.ScoredPassage
	for _, r := range results {
		similarity := float64(r.Similarity)
		if similarity < filter.MinSimilarity {
			continue
		}
		p := apptype.Passage{
			ChunkID:  r.ID,
			Content:  r.Content,
			SourceID: r.Metadata["source_id"],
			Subject:  r.Metadata["subject"],
		}
		if g, err := strconv.Atoi(r.Metadata["grade_level"]); err == nil {
			p.GradeLevel = g
		}
		if kt := r.Metadata["key_terms"]; kt != "" {
			if err := json.Unmarshal([]byte(kt), &p.KeyTerms); err != nil {
				log.Warn().Err(err).Str("chunk", r.ID).Msg("failed to unmarshal key terms")
			}
		}
		scored = append(scored, apptype.ScoredPassage{Passage: p, Similarity: similarity})
	}
	success = true
	return scored, nil
}
