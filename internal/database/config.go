package database

import (
	"os"
	"strconv"
)

// Config holds the store configuration
type Config struct {
	URL            string
	AuthToken      string
	EmbeddingDims  int
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("LIBSQL_URL")
	if url == "" {
		url = "file:./tutor.db"
	}

	dims := 768
	if v := os.Getenv("EMBEDDING_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dims = n
		}
	}

	cfg := &Config{
		URL:           url,
		AuthToken:     os.Getenv("LIBSQL_AUTH_TOKEN"),
		EmbeddingDims: dims,
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		cfg.MaxOpenConns, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		cfg.MaxIdleConns, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("DB_CONN_MAX_IDLE_SEC"); v != "" {
		cfg.ConnMaxIdleSec, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("DB_CONN_MAX_LIFE_SEC"); v != "" {
		cfg.ConnMaxLifeSec, _ = strconv.Atoi(v)
	}

	return cfg
}
