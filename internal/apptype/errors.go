package apptype

import "errors"

// Sentinel errors shared across stores, router, and rewriter. Callers match
// with errors.Is after unwrapping.
var (
	// ErrNotFound signals a graph mutation referencing a nonexistent
	// concept. Read-path misses return empty results instead.
	ErrNotFound = errors.New("concept not found")

	// ErrBackendUnavailable signals that the selected retrieval backend is
	// unconfigured or unreachable. The router never falls back to the other
	// backend on this error.
	ErrBackendUnavailable = errors.New("retrieval backend unavailable")

	// ErrParseFailure signals that the rewriter's language model returned
	// output not matching the required structured shape.
	ErrParseFailure = errors.New("rewriter output failed to parse")
)
