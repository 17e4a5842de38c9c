package embeddings

import (
	"context"
	"os"
	"strconv"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// langchainProvider adapts a langchaingo embedder to the Provider interface.
type langchainProvider struct {
	name     string
	dims     int
	embedder *lcembeddings.EmbedderImpl
}

func newLangchainOllamaFromEnv() Provider {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		return nil
	}
	model := os.Getenv("OLLAMA_EMBEDDINGS_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := 768
	if v := os.Getenv("EMBEDDING_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dims = n
		}
	}

	llm, err := ollama.New(ollama.WithServerURL(host), ollama.WithModel(model))
	if err != nil {
		return nil
	}
	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil
	}
	return &langchainProvider{name: "langchain-ollama", dims: dims, embedder: embedder}
}

func (p *langchainProvider) Name() string    { return p.name }
func (p *langchainProvider) Dimensions() int { return p.dims }

func (p *langchainProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	return p.embedder.EmbedDocuments(ctx, inputs)
}
