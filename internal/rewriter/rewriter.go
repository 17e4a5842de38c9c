// Package rewriter simplifies retrieved source text to a target grade level
// while carrying the originating citation forward.
package rewriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

const systemPrompt = `You rewrite educational source text for younger readers.
Respond with a single JSON object and nothing else, using exactly these keys:
{"simplified": string, "metaphor": string, "confidence": number, "key_terms": [string]}.
"simplified" restates the text at the requested grade level without losing facts.
"metaphor" is one everyday analogy for the main idea.
"confidence" is your confidence in the rewrite, between 0 and 1.
"key_terms" lists the important terms a student should learn.`

// Rewriter calls a language-generation backend and validates its output
// into the fixed translation shape.
type Rewriter struct {
	model llms.Model
}

// New wraps a configured langchaingo model.
func New(model llms.Model) *Rewriter {
	return &Rewriter{model: model}
}

// NewFromEnv builds a rewriter from environment configuration.
// REWRITER_PROVIDER: "openai" (default when OPENAI_API_KEY is set) or
// "ollama". Returns nil when no backend is configured.
func NewFromEnv() *Rewriter {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("REWRITER_PROVIDER")))
	switch provider {
	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			return nil
		}
		model := os.Getenv("REWRITER_MODEL")
		if model == "" {
			model = "llama3"
		}
		llm, err := ollama.New(ollama.WithServerURL(host), ollama.WithModel(model))
		if err != nil {
			log.Warn().Err(err).Msg("failed to configure ollama rewriter")
			return nil
		}
		return New(llm)
	case "openai", "":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil
		}
		opts := []openai.Option{openai.WithToken(os.Getenv("OPENAI_API_KEY"))}
		if m := os.Getenv("REWRITER_MODEL"); m != "" {
			opts = append(opts, openai.WithModel(m))
		}
		if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
			opts = append(opts, openai.WithBaseURL(base))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			log.Warn().Err(err).Msg("failed to configure openai rewriter")
			return nil
		}
		return New(llm)
	default:
		return nil
	}
}

// Model exposes the underlying language model so callers can share it
// with other model-backed components.
func (r *Rewriter) Model() llms.Model {
	return r.model
}

// rawTranslation is the exact wire shape the model must produce.
type rawTranslation struct {
	Simplified string   `json:"simplified"`
	Metaphor   string   `json:"metaphor"`
	Confidence float64  `json:"confidence"`
	KeyTerms   []string `json:"key_terms"`
}

// Translate rewrites text to the requested grade level. The source id is
// carried through unchanged; when the caller omits it, the "unknown"
// sentinel is attached so downstream consumers can detect the degraded
// citation rather than mistake it for a real one.
func (r *Rewriter) Translate(ctx context.Context, text string, gradeLevel int, sourceID string) (*apptype.Translation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text to translate cannot be empty")
	}
	if sourceID == "" {
		sourceID = apptype.SourceUnknown
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Rewrite for grade level %d:\n\n%s", gradeLevel, text)),
	}

	resp, err := r.model.GenerateContent(ctx, messages, llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("rewriter backend call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rewriter backend returned no choices: %w", apptype.ErrParseFailure)
	}

	raw, err := parseTranslation(resp.Choices[0].Content)
	if err != nil {
		return nil, err
	}

	return &apptype.Translation{
		Simplified: raw.Simplified,
		Metaphor:   raw.Metaphor,
		SourceID:   sourceID,
		Confidence: raw.Confidence,
		KeyTerms:   raw.KeyTerms,
	}, nil
}

// parseTranslation validates the model output against the required shape.
// Anything else surfaces as ErrParseFailure; partially-parsed output is
// never substituted for the structured fields.
func parseTranslation(content string) (*rawTranslation, error) {
	payload := stripCodeFence(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.DisallowUnknownFields()
	var raw rawTranslation
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("malformed rewriter output: %v: %w", err, apptype.ErrParseFailure)
	}
	if strings.TrimSpace(raw.Simplified) == "" || strings.TrimSpace(raw.Metaphor) == "" {
		return nil, fmt.Errorf("rewriter output missing required fields: %w", apptype.ErrParseFailure)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, fmt.Errorf("rewriter confidence %f out of range: %w", raw.Confidence, apptype.ErrParseFailure)
	}
	return &raw, nil
}

// stripCodeFence removes a surrounding markdown fence some models add even
// in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
