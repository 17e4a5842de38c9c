package tutor

import (
	"os"
	"strconv"

	"github.com/edusearch/tutor-retrieval-go/internal/database"
)

// Config exposes a stable wrapper for service configuration in package
// mode. Storage fields map directly to internal/database.Config.
type Config struct {
	// StoreBackend selects the passage vector engine: "libsql" (default)
	// or "chromem". The concept graph always lives in libSQL.
	StoreBackend string
	// ChromemPath is the on-disk location for the chromem store; empty
	// means in-memory.
	ChromemPath string

	URL            string
	AuthToken      string
	EmbeddingDims  int
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int

	SearchLimit   int
	MinSimilarity float64
	GraphDepth    int
}

// NewConfig builds a Config from environment variables.
func NewConfig() *Config {
	dbCfg := database.NewConfig()
	cfg := &Config{
		StoreBackend:   os.Getenv("STORE_BACKEND"),
		ChromemPath:    os.Getenv("CHROMEM_PATH"),
		URL:            dbCfg.URL,
		AuthToken:      dbCfg.AuthToken,
		EmbeddingDims:  dbCfg.EmbeddingDims,
		MaxOpenConns:   dbCfg.MaxOpenConns,
		MaxIdleConns:   dbCfg.MaxIdleConns,
		ConnMaxIdleSec: dbCfg.ConnMaxIdleSec,
		ConnMaxLifeSec: dbCfg.ConnMaxLifeSec,
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "libsql"
	}
	if v := os.Getenv("SEARCH_LIMIT"); v != "" {
		cfg.SearchLimit, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("MIN_SIMILARITY"); v != "" {
		cfg.MinSimilarity, _ = strconv.ParseFloat(v, 64)
	}
	if v := os.Getenv("GRAPH_DEPTH"); v != "" {
		cfg.GraphDepth, _ = strconv.Atoi(v)
	}
	return cfg
}

func (c *Config) toInternal() *database.Config {
	return &database.Config{
		URL:            c.URL,
		AuthToken:      c.AuthToken,
		EmbeddingDims:  c.EmbeddingDims,
		MaxOpenConns:   c.MaxOpenConns,
		MaxIdleConns:   c.MaxIdleConns,
		ConnMaxIdleSec: c.ConnMaxIdleSec,
		ConnMaxLifeSec: c.ConnMaxLifeSec,
	}
}
