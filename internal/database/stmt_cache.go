package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement
func (dm *DBManager) getPreparedStmt(ctx context.Context, db *sql.DB, sqlText string) (*sql.Stmt, error) {
	// fast path read
	dm.stmtMu.RLock()
	if stmt, ok := dm.stmtCache[sqlText]; ok {
		dm.stmtMu.RUnlock()
		metrics.Default().IncStmtCacheHit("prepare")
		return stmt, nil
	}
	dm.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss("prepare")

	stmt, err := db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtMu.Lock()
	dm.stmtCache[sqlText] = stmt
	dm.stmtMu.Unlock()
	return stmt, nil
}
