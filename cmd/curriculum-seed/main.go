// curriculum-seed loads a YAML curriculum file into the retrieval stores:
// concepts, relations, passages, and chunk-concept links. Passages without
// an inline embedding are embedded via the configured provider.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/pkg/tutor"
)

var (
	seedFile  = flag.String("file", "curriculum.yaml", "Path to the curriculum YAML file")
	libsqlURL = flag.String("libsql-url", "", "libSQL database URL (default: file:./tutor.db)")
	authToken = flag.String("auth-token", "", "Authentication token for remote databases")
)

type seedConcept struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	GradeLevel  int    `yaml:"grade_level"`
	Subject     string `yaml:"subject"`
}

type seedRelation struct {
	Source string   `yaml:"source"`
	Target string   `yaml:"target"`
	Type   string   `yaml:"type"`
	Weight *float64 `yaml:"weight"`
}

type seedPassage struct {
	ChunkID    string    `yaml:"chunk_id"`
	SourceID   string    `yaml:"source_id"`
	Content    string    `yaml:"content"`
	Embedding  []float32 `yaml:"embedding"`
	GradeLevel int       `yaml:"grade_level"`
	Subject    string    `yaml:"subject"`
	KeyTerms   []string  `yaml:"key_terms"`
}

type seedLink struct {
	ChunkID   string  `yaml:"chunk_id"`
	ConceptID string  `yaml:"concept_id"`
	Relevance float64 `yaml:"relevance"`
}

type curriculum struct {
	Concepts  []seedConcept  `yaml:"concepts"`
	Relations []seedRelation `yaml:"relations"`
	Passages  []seedPassage  `yaml:"passages"`
	Links     []seedLink     `yaml:"links"`
}

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	raw, err := os.ReadFile(*seedFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *seedFile).Msg("failed to read curriculum file")
	}

	var cur curriculum
	if err := yaml.Unmarshal(raw, &cur); err != nil {
		log.Fatal().Err(err).Msg("failed to parse curriculum file")
	}

	cfg := tutor.NewConfig()
	if *libsqlURL != "" {
		cfg.URL = *libsqlURL
	}
	if *authToken != "" {
		cfg.AuthToken = *authToken
	}

	service, err := tutor.NewService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create retrieval service")
	}
	defer service.Close()

	ctx := context.Background()

	for _, c := range cur.Concepts {
		err := service.AddConcept(ctx, apptype.Concept{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			GradeLevel:  c.GradeLevel,
			Subject:     c.Subject,
		})
		if err != nil {
			log.Fatal().Err(err).Str("concept", c.ID).Msg("failed to add concept")
		}
	}
	log.Info().Int("count", len(cur.Concepts)).Msg("concepts loaded")

	for _, r := range cur.Relations {
		err := service.AddRelationship(ctx, apptype.Relation{
			Source: r.Source,
			Target: r.Target,
			Type:   r.Type,
			Weight: r.Weight,
		})
		if err != nil {
			log.Fatal().Err(err).Str("source", r.Source).Str("target", r.Target).Msg("failed to add relation")
		}
	}
	log.Info().Int("count", len(cur.Relations)).Msg("relations loaded")

	if len(cur.Passages) > 0 {
		passages := make([]apptype.Passage, len(cur.Passages))
		for i, p := range cur.Passages {
			passages[i] = apptype.Passage{
				ChunkID:    p.ChunkID,
				SourceID:   p.SourceID,
				Content:    p.Content,
				Embedding:  p.Embedding,
				GradeLevel: p.GradeLevel,
				Subject:    p.Subject,
				KeyTerms:   p.KeyTerms,
			}
		}
		if err := service.AddPassages(ctx, passages); err != nil {
			log.Fatal().Err(err).Msg("failed to add passages")
		}
		log.Info().Int("count", len(passages)).Msg("passages loaded")
	}

	for _, l := range cur.Links {
		err := service.LinkChunkConcept(ctx, apptype.ChunkConceptLink{
			ChunkID:   l.ChunkID,
			ConceptID: l.ConceptID,
			Relevance: l.Relevance,
		})
		if err != nil {
			log.Fatal().Err(err).Str("chunk", l.ChunkID).Str("concept", l.ConceptID).Msg("failed to link chunk")
		}
	}
	log.Info().Int("count", len(cur.Links)).Msg("chunk-concept links loaded")
}
