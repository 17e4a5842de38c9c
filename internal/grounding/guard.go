// Package grounding enforces the citation invariant: no answer surfaces
// without a traceable source identifier.
package grounding

import (
	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

// NotFoundMessage is the explicit payload an ungrounded response is
// converted into. Ungrounded content is a correctness policy, not a fault,
// so it is never surfaced as an error.
const NotFoundMessage = "could not find grounded information for this query"

// Enforce checks that resp carries a non-empty, non-sentinel source id.
// Responses failing the check are rewritten into an explicit "not found"
// result; the ungrounded content is dropped, never returned as an answer.
func Enforce(resp *apptype.RoutedResponse) *apptype.RoutedResponse {
	if resp == nil {
		return nil
	}
	if Grounded(resp.SourceID) {
		resp.Grounded = true
		return resp
	}

	log.Info().
		Str("query", resp.Query).
		Str("engine", string(resp.EngineUsed)).
		Msg("rejecting ungrounded response")

	return &apptype.RoutedResponse{
		Query:      resp.Query,
		QueryType:  resp.QueryType,
		EngineUsed: resp.EngineUsed,
		RoutedBy:   resp.RoutedBy,
		Grounded:   false,
		Result:     NotFoundMessage,
	}
}

// Grounded reports whether sourceID is a usable citation. The "unknown"
// sentinel a translation may carry is not equivalent to a real citation.
func Grounded(sourceID string) bool {
	return sourceID != "" && sourceID != apptype.SourceUnknown
}
