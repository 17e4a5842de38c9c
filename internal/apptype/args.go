package apptype

// QueryArgs represents the arguments for the query tool
type QueryArgs struct {
	Query      string `json:"query" jsonschema:"The natural-language question to answer."`
	Mode       string `json:"mode,omitempty" jsonschema:"Retrieval mode: auto, vector, or graph (default auto)."`
	GradeLevel int    `json:"gradeLevel,omitempty" jsonschema:"If set, rewrite the grounded result to this grade level."`
}

// TranslateArgs represents the arguments for the translate tool
type TranslateArgs struct {
	Text       string `json:"text" jsonschema:"Source text to simplify."`
	GradeLevel int    `json:"gradeLevel" jsonschema:"Target reading grade level."`
	SourceID   string `json:"sourceId,omitempty" jsonschema:"Citation identifier of the source text. Defaults to the 'unknown' sentinel when omitted."`
}

// ConceptRelationsArgs represents the arguments for the concept_relations tool
type ConceptRelationsArgs struct {
	Concept string `json:"concept" jsonschema:"Display name of the anchor concept."`
	Depth   int    `json:"depth,omitempty" jsonschema:"Maximum relationship hops to explore (default 2)."`
}

// ConceptRelationsResult is the output of the concept_relations tool
type ConceptRelationsResult struct {
	Concept   string           `json:"concept"`
	Relations []RelationDetail `json:"relations"`
	Count     int              `json:"count"`
}

// FindPathArgs represents the arguments for the find_path tool
type FindPathArgs struct {
	From string `json:"from" jsonschema:"Display name of the starting concept."`
	To   string `json:"to" jsonschema:"Display name of the destination concept."`
}

// PathResult is the output of the find_path tool
type PathResult struct {
	Path  []Concept `json:"path"`
	Found bool      `json:"found"`
}

// PrerequisitesArgs represents the arguments for the prerequisites tool
type PrerequisitesArgs struct {
	ConceptID string `json:"conceptId" jsonschema:"Identifier of the concept whose prerequisites to collect."`
}

// ConceptsResult wraps a list of concepts for tools returning them
type ConceptsResult struct {
	Concepts []Concept `json:"concepts"`
	Count    int       `json:"count"`
}

// SearchConceptsArgs represents the arguments for the search_concepts tool
type SearchConceptsArgs struct {
	Term string `json:"term" jsonschema:"Substring to match against concept names and descriptions."`
}

// AddConceptArgs represents the arguments for the add_concept tool
type AddConceptArgs struct {
	Concept Concept `json:"concept" jsonschema:"The concept to create. Duplicate ids are ignored (first write wins)."`
}

// UpdateConceptArgs represents the arguments for the update_concept tool.
// The id is immutable; empty fields are left unchanged.
type UpdateConceptArgs struct {
	ID          string `json:"id" jsonschema:"Identifier of the concept to update."`
	Description string `json:"description,omitempty"`
	GradeLevel  int    `json:"gradeLevel,omitempty"`
	Subject     string `json:"subject,omitempty"`
}

// DeleteConceptArgs represents the arguments for the delete_concept tool
type DeleteConceptArgs struct {
	ID string `json:"id" jsonschema:"Identifier of the concept to remove."`
}

// AddRelationshipArgs represents the arguments for the add_relationship tool
type AddRelationshipArgs struct {
	Relation Relation `json:"relation" jsonschema:"The directed, typed edge to create. Both endpoints must exist."`
}

// AddPassagesArgs represents the arguments for the add_passages tool
type AddPassagesArgs struct {
	Passages []Passage `json:"passages" jsonschema:"Passages to store. Embeddings are computed for passages that omit them."`
}

// LinkChunkConceptArgs represents the arguments for the link_chunk_concept tool
type LinkChunkConceptArgs struct {
	Link ChunkConceptLink `json:"link" jsonschema:"Chunk-concept association with relevance in [0,1]."`
}

// HealthArgs represents the arguments for the health tool
type HealthArgs struct{}

// HealthResult is the output of the health tool
type HealthResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	StoreBackend  string `json:"storeBackend"`
	EmbeddingDims int    `json:"embeddingDims"`
	Embeddings    string `json:"embeddings"`
	Rewriter      bool   `json:"rewriter"`
}
