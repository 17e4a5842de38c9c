package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// DBManager owns the libSQL handle backing both the concept graph store and
// the passage vector store. The connection is created lazily on first use
// and shared by every request afterwards.
type DBManager struct {
	config *Config
	db     *sql.DB
	mu     sync.RWMutex

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt

	capMu sync.RWMutex
	caps  capFlags
}

// NewDBManager creates a new database manager. The underlying connection is
// not opened until the first operation needs it.
func NewDBManager(config *Config) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}
	return &DBManager{
		config:    config,
		stmtCache: make(map[string]*sql.Stmt),
	}, nil
}

// getDB returns the shared connection, creating it on first use. Safe for
// concurrent callers: the double-checked lock guarantees at-most-once
// initialization.
func (dm *DBManager) getDB() (*sql.DB, error) {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	dm.mu.Lock()
	if dm.db != nil {
		db = dm.db
		dm.mu.Unlock()
		return db, nil
	}

	dbURL := dm.config.URL
	var newDb *sql.DB
	var err error

	if strings.HasPrefix(dbURL, "file:") {
		newDb, err = sql.Open("libsql", dbURL)
	} else {
		authURL := dbURL
		if dm.config.AuthToken != "" {
			if u, perr := url.Parse(dbURL); perr == nil {
				q := u.Query()
				q.Set("authToken", dm.config.AuthToken)
				u.RawQuery = q.Encode()
				authURL = u.String()
			} else if strings.Contains(dbURL, "?") {
				authURL = dbURL + "&authToken=" + url.QueryEscape(dm.config.AuthToken)
			} else {
				authURL = dbURL + "?authToken=" + url.QueryEscape(dm.config.AuthToken)
			}
		}
		newDb, err = sql.Open("libsql", authURL)
	}
	if err != nil {
		dm.mu.Unlock()
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}

	if err := dm.initialize(newDb); err != nil {
		newDb.Close()
		dm.mu.Unlock()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if dm.config.MaxOpenConns > 0 {
		newDb.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		newDb.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		newDb.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		newDb.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}

	dm.db = newDb
	// Unlock before capability detection to avoid self-deadlock
	dm.mu.Unlock()

	// Reconcile embedding dims with an existing database to avoid env drift.
	if dbDims := detectDBEmbeddingDims(newDb); dbDims > 0 && dbDims != dm.config.EmbeddingDims {
		log.Warn().Int("db", dbDims).Int("config", dm.config.EmbeddingDims).
			Msg("embedding dims mismatch, adopting database dims")
		dm.config.EmbeddingDims = dbDims
	}

	dm.detectCapabilities(context.Background(), newDb)
	stats := newDb.Stats()
	metrics.Default().ObservePoolStats(stats.InUse, stats.Idle)
	return newDb, nil
}

// detectDBEmbeddingDims introspects the schema to infer the F32_BLOB size
// for passages.embedding
func detectDBEmbeddingDims(db *sql.DB) int {
	var sqlText string
	_ = db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='passages'").Scan(&sqlText)
	if sqlText != "" {
		low := strings.ToLower(sqlText)
		idx := strings.Index(low, "f32_blob(")
		if idx >= 0 {
			rest := low[idx+len("f32_blob("):]
			end := strings.Index(rest, ")")
			if end > 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(rest[:end])); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	var blob []byte
	_ = db.QueryRow("SELECT embedding FROM passages LIMIT 1").Scan(&blob)
	if len(blob) > 0 && len(blob)%4 == 0 {
		return len(blob) / 4
	}
	return 0
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(dm.config.EmbeddingDims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// EmbeddingDims returns the dimension the store was opened with.
func (dm *DBManager) EmbeddingDims() int {
	return dm.config.EmbeddingDims
}

// PoolStats reports connection pool usage for metrics.
func (dm *DBManager) PoolStats() (inUse, idle int) {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()
	if db == nil {
		return 0, 0
	}
	stats := db.Stats()
	return stats.InUse, stats.Idle
}

// Ping verifies the store is reachable, opening the connection if needed.
func (dm *DBManager) Ping(ctx context.Context) error {
	db, err := dm.getDB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the database connection and cached statements.
func (dm *DBManager) Close() error {
	dm.stmtMu.Lock()
	for _, stmt := range dm.stmtCache {
		_ = stmt.Close()
	}
	dm.stmtCache = make(map[string]*sql.Stmt)
	dm.stmtMu.Unlock()

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
