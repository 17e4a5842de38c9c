package database

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// capFlags stores optional-feature detection for the DB handle
type capFlags struct {
	checked    bool
	vectorTopK bool
}

// detectCapabilities probes presence of vector_top_k and records the result.
func (dm *DBManager) detectCapabilities(ctx context.Context, db *sql.DB) {
	dm.capMu.RLock()
	checked := dm.caps.checked
	dm.capMu.RUnlock()
	if checked {
		return
	}

	// Skip the ANN probe for in-memory test URLs to avoid driver quirks
	if strings.Contains(dm.config.URL, "mode=memory") {
		dm.capMu.Lock()
		dm.caps = capFlags{checked: true, vectorTopK: false}
		dm.capMu.Unlock()
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	topK := false
	rows, err := db.QueryContext(probeCtx,
		"SELECT id FROM vector_top_k('idx_passages_embedding', vector32(?), 1)",
		dm.vectorZeroString())
	if err == nil {
		rows.Close()
		topK = true
	}

	dm.capMu.Lock()
	dm.caps = capFlags{checked: true, vectorTopK: topK}
	dm.capMu.Unlock()
}

func (dm *DBManager) hasVectorTopK() bool {
	dm.capMu.RLock()
	defer dm.capMu.RUnlock()
	return dm.caps.vectorTopK
}

func (dm *DBManager) disableVectorTopK() {
	dm.capMu.Lock()
	dm.caps.vectorTopK = false
	dm.capMu.Unlock()
}
