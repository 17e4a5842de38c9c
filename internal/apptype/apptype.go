package apptype

// Concept represents a node in the curriculum concept graph
type Concept struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	GradeLevel  int    `json:"gradeLevel"`
	Subject     string `json:"subject"`
}

// Relation represents a directed, typed relationship between two concepts
type Relation struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   string   `json:"type"`
	Weight *float64 `json:"weight,omitempty"`
}

// Controlled relationship vocabulary. Edges carrying any other type are
// rejected at write time.
const (
	RelationEnables      = "ENABLES"
	RelationRequiredFor  = "REQUIRED_FOR"
	RelationProduces     = "PRODUCES"
	RelationPrerequisite = "PREREQUISITE"
	RelationSourceOf     = "SOURCE_OF"
)

var relationTypes = map[string]struct{}{
	RelationEnables:      {},
	RelationRequiredFor:  {},
	RelationProduces:     {},
	RelationPrerequisite: {},
	RelationSourceOf:     {},
}

// ValidRelationType reports whether t belongs to the controlled vocabulary.
func ValidRelationType(t string) bool {
	_, ok := relationTypes[t]
	return ok
}

// RelationDetail is one row of a neighborhood expansion: the edge plus the
// description of the concept on the far side.
type RelationDetail struct {
	Source      string `json:"source"`
	Type        string `json:"type"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// Passage represents a retrievable unit of source text
type Passage struct {
	ChunkID    string    `json:"chunkId"`
	SourceID   string    `json:"sourceId"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	GradeLevel int       `json:"gradeLevel"`
	Subject    string    `json:"subject"`
	KeyTerms   []string  `json:"keyTerms,omitempty"`
}

// ScoredPassage is a passage with its cosine similarity to the query vector
type ScoredPassage struct {
	Passage    Passage `json:"passage"`
	Similarity float64 `json:"similarity"`
}

// ChunkConceptLink associates a passage with a concept at a relevance in [0,1]
type ChunkConceptLink struct {
	ChunkID   string  `json:"chunkId"`
	ConceptID string  `json:"conceptId"`
	Relevance float64 `json:"relevance"`
}

// PassageFilter narrows a vector search before ranking. A nil GradeLevel or
// empty Subject leaves that dimension unfiltered.
type PassageFilter struct {
	GradeLevel    *int
	Subject       string
	Limit         int
	MinSimilarity float64
}

// QueryType is the classifier's verdict for a query
type QueryType string

const (
	QueryTypeFact    QueryType = "fact"
	QueryTypeConcept QueryType = "concept"
)

// Classification is the ephemeral result of classifying a query. Matched
// lists the patterns that fired, for observability only.
type Classification struct {
	Query   string    `json:"query"`
	Type    QueryType `json:"type"`
	Matched []string  `json:"matched,omitempty"`
}

// Mode selects how the router picks a retrieval backend
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeVector Mode = "vector"
	ModeGraph  Mode = "graph"
)

// Engine identifies a retrieval backend
type Engine string

const (
	EngineVector Engine = "vector"
	EngineGraph  Engine = "graph"
)

// SourceUnknown is the sentinel a translation carries when the caller
// supplied no source id. The citation guard never accepts it as grounding.
const SourceUnknown = "unknown"

// Translation is the fixed-shape output of the grade-level rewriter
type Translation struct {
	Simplified string   `json:"simplified"`
	Metaphor   string   `json:"metaphor"`
	SourceID   string   `json:"sourceId"`
	Confidence float64  `json:"confidence"`
	KeyTerms   []string `json:"keyTerms"`
}

// RoutedResponse is the final per-request payload assembled by the router.
// It is constructed per request and never persisted.
type RoutedResponse struct {
	Query       string           `json:"query"`
	QueryType   QueryType        `json:"queryType"`
	EngineUsed  Engine           `json:"engineUsed"`
	RoutedBy    string           `json:"routedBy"`
	Grounded    bool             `json:"grounded"`
	SourceID    string           `json:"sourceId,omitempty"`
	Result      string           `json:"result"`
	Passages    []ScoredPassage  `json:"passages,omitempty"`
	Relations   []RelationDetail `json:"relations,omitempty"`
	Translation *Translation     `json:"translation,omitempty"`
}
