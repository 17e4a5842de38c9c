package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

// Selector chooses a retrieval engine for a query in auto mode. The
// classifier-based heuristic and any LLM-backed selector are
// interchangeable implementations of this contract.
type Selector interface {
	Select(ctx context.Context, query string, cls apptype.Classification) (apptype.Engine, error)
}

// HeuristicSelector routes on the classification alone: concept-seeking
// queries go to the graph, everything else to the vector store.
type HeuristicSelector struct{}

func (HeuristicSelector) Select(_ context.Context, _ string, cls apptype.Classification) (apptype.Engine, error) {
	if cls.Type == apptype.QueryTypeConcept {
		return apptype.EngineGraph, nil
	}
	return apptype.EngineVector, nil
}

const selectorPrompt = `You route student questions to one of two retrieval backends.
Answer with exactly one word.
Answer "graph" if the question asks about relationships, causes, comparisons, or how concepts connect.
Answer "vector" if the question asks for a definition, a fact, or a list.`

// LLMSelector asks a language model to pick the engine, falling back to a
// heuristic when the model's answer is unusable. A selector failure never
// fails the query.
type LLMSelector struct {
	model    llms.Model
	fallback Selector
}

// NewLLMSelector wraps a configured langchaingo model.
func NewLLMSelector(model llms.Model) *LLMSelector {
	return &LLMSelector{model: model, fallback: HeuristicSelector{}}
}

func (s *LLMSelector) Select(ctx context.Context, query string, cls apptype.Classification) (apptype.Engine, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, selectorPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Question: %s", query)),
	}

	resp, err := s.model.GenerateContent(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Msg("llm selector failed, using heuristic")
		return s.fallback.Select(ctx, query, cls)
	}
	if len(resp.Choices) == 0 {
		return s.fallback.Select(ctx, query, cls)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Content))
	switch {
	case strings.HasPrefix(answer, "graph"):
		return apptype.EngineGraph, nil
	case strings.HasPrefix(answer, "vector"):
		return apptype.EngineVector, nil
	default:
		log.Warn().Str("answer", answer).Msg("llm selector returned unusable answer, using heuristic")
		return s.fallback.Select(ctx, query, cls)
	}
}
