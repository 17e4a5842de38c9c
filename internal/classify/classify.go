// Package classify maps a raw query string to a fact or concept intent
// using case-insensitive substring evidence. It is pure and does no I/O.
package classify

import (
	"strings"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
)

// Conceptual evidence is checked before factual evidence: a query carrying
// both kinds of pattern classifies as concept.
var conceptualPatterns = []string{
	"how does",
	"how do",
	"why does",
	"why do",
	"relate",
	"relationship",
	"connection",
	"compare",
	"difference",
	"affect",
	"effect",
	"influence",
}

var factualPatterns = []string{
	"what is",
	"define",
	"list",
	"name",
	"identify",
}

// Classify returns the classification for query. Queries matching no
// pattern default to fact, the cheaper retrieval path.
func Classify(query string) apptype.Classification {
	lower := strings.ToLower(query)

	var matched []string
	for _, p := range conceptualPatterns {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	if len(matched) > 0 {
		return apptype.Classification{Query: query, Type: apptype.QueryTypeConcept, Matched: matched}
	}

	for _, p := range factualPatterns {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	if len(matched) > 0 {
		return apptype.Classification{Query: query, Type: apptype.QueryTypeFact, Matched: matched}
	}

	// No evidence either way; callers treat this default as informational,
	// not an error.
	return apptype.Classification{Query: query, Type: apptype.QueryTypeFact}
}
