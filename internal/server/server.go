package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/apptype"
	"github.com/edusearch/tutor-retrieval-go/internal/buildinfo"
	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
	"github.com/edusearch/tutor-retrieval-go/pkg/tutor"
)

// MCPServer exposes the retrieval service over the MCP protocol.
type MCPServer struct {
	server  *mcp.Server
	service *tutor.Service
}

// NewMCPServer creates an MCP server around an initialized service.
func NewMCPServer(service *tutor.Service) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tutor-retrieval-go",
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server:  server,
		service: service,
	}

	// initialize metrics from env (no-op if disabled)
	metrics.InitFromEnv()
	mcpServer.setupToolHandlers()
	return mcpServer
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	queryInputSchema, err := jsonschema.For[apptype.QueryArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for QueryArgs: %v", err))
	}
	queryOutputSchema, err := jsonschema.For[apptype.RoutedResponse]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for RoutedResponse: %v", err))
	}
	translateInputSchema, err := jsonschema.For[apptype.TranslateArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for TranslateArgs: %v", err))
	}
	translateOutputSchema, err := jsonschema.For[apptype.Translation]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for Translation: %v", err))
	}
	conceptRelationsInputSchema, err := jsonschema.For[apptype.ConceptRelationsArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ConceptRelationsArgs: %v", err))
	}
	conceptRelationsOutputSchema, err := jsonschema.For[apptype.ConceptRelationsResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ConceptRelationsResult: %v", err))
	}
	findPathInputSchema, err := jsonschema.For[apptype.FindPathArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for FindPathArgs: %v", err))
	}
	findPathOutputSchema, err := jsonschema.For[apptype.PathResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for PathResult: %v", err))
	}
	prerequisitesInputSchema, err := jsonschema.For[apptype.PrerequisitesArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for PrerequisitesArgs: %v", err))
	}
	// Fresh ConceptsResult schema per tool to avoid re-resolving the same root
	prerequisitesOutputSchema, err := jsonschema.For[apptype.ConceptsResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ConceptsResult (prerequisites): %v", err))
	}
	searchConceptsInputSchema, err := jsonschema.For[apptype.SearchConceptsArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for SearchConceptsArgs: %v", err))
	}
	searchConceptsOutputSchema, err := jsonschema.For[apptype.ConceptsResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ConceptsResult (search_concepts): %v", err))
	}
	addConceptInputSchema, err := jsonschema.For[apptype.AddConceptArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for AddConceptArgs: %v", err))
	}
	updateConceptInputSchema, err := jsonschema.For[apptype.UpdateConceptArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for UpdateConceptArgs: %v", err))
	}
	deleteConceptInputSchema, err := jsonschema.For[apptype.DeleteConceptArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for DeleteConceptArgs: %v", err))
	}
	addRelationshipInputSchema, err := jsonschema.For[apptype.AddRelationshipArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for AddRelationshipArgs: %v", err))
	}
	addPassagesInputSchema, err := jsonschema.For[apptype.AddPassagesArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for AddPassagesArgs: %v", err))
	}
	linkChunkConceptInputSchema, err := jsonschema.For[apptype.LinkChunkConceptArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for LinkChunkConceptArgs: %v", err))
	}
	healthInputSchema, err := jsonschema.For[apptype.HealthArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for HealthArgs: %v", err))
	}
	healthOutputSchema, err := jsonschema.For[apptype.HealthResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for HealthResult: %v", err))
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "query",
		Title:        "Query",
		Description:  "Answer a student question via vector or graph retrieval with grounding enforcement.",
		InputSchema:  queryInputSchema,
		OutputSchema: queryOutputSchema,
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "translate",
		Title:        "Translate",
		Description:  "Rewrite source text to a target grade level, preserving its citation.",
		InputSchema:  translateInputSchema,
		OutputSchema: translateOutputSchema,
	}, s.handleTranslate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "concept_relations",
		Title:        "Concept Relations",
		Description:  "Traverse the concept graph around a named concept.",
		InputSchema:  conceptRelationsInputSchema,
		OutputSchema: conceptRelationsOutputSchema,
	}, s.handleConceptRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "find_path",
		Title:        "Find Path",
		Description:  "Find the shortest learning path between two concepts.",
		InputSchema:  findPathInputSchema,
		OutputSchema: findPathOutputSchema,
	}, s.handleFindPath)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "prerequisites",
		Title:        "Prerequisites",
		Description:  "Collect the transitive prerequisites of a concept.",
		InputSchema:  prerequisitesInputSchema,
		OutputSchema: prerequisitesOutputSchema,
	}, s.handlePrerequisites)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "search_concepts",
		Title:        "Search Concepts",
		Description:  "Search concepts by name or description substring.",
		InputSchema:  searchConceptsInputSchema,
		OutputSchema: searchConceptsOutputSchema,
	}, s.handleSearchConcepts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_concept",
		Title:       "Add Concept",
		Description: "Create a concept node. Duplicate ids are ignored.",
		InputSchema: addConceptInputSchema,
	}, s.handleAddConcept)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_concept",
		Title:       "Update Concept",
		Description: "Update a concept's description, grade level, or subject.",
		InputSchema: updateConceptInputSchema,
	}, s.handleUpdateConcept)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_concept",
		Title:       "Delete Concept",
		Description: "Delete a concept and all its relations and chunk links.",
		InputSchema: deleteConceptInputSchema,
	}, s.handleDeleteConcept)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_relationship",
		Title:       "Add Relationship",
		Description: "Create a typed edge between two existing concepts.",
		InputSchema: addRelationshipInputSchema,
	}, s.handleAddRelationship)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_passages",
		Title:       "Add Passages",
		Description: "Store curriculum passages, embedding any that lack vectors.",
		InputSchema: addPassagesInputSchema,
	}, s.handleAddPassages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "link_chunk_concept",
		Title:       "Link Chunk To Concept",
		Description: "Associate a stored passage chunk with a concept.",
		InputSchema: linkChunkConceptInputSchema,
	}, s.handleLinkChunkConcept)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health",
		Title:        "Health Check",
		Description:  "Returns server and configuration information.",
		InputSchema:  healthInputSchema,
		OutputSchema: healthOutputSchema,
	}, s.handleHealth)
}

// handleQuery handles the query tool call
func (s *MCPServer) handleQuery(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.QueryArgs],
) (*mcp.CallToolResultFor[apptype.RoutedResponse], error) {
	done := metrics.TimeTool("query")
	var success bool
	defer func() { done(success) }()

	resp, err := s.service.Query(ctx, params.Arguments.Query, apptype.Mode(params.Arguments.Mode), params.Arguments.GradeLevel)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.RoutedResponse]{
		Content:           []mcp.Content{&mcp.TextContent{Text: resp.Result}},
		StructuredContent: *resp,
	}, nil
}

// handleTranslate handles the translate tool call
func (s *MCPServer) handleTranslate(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.TranslateArgs],
) (*mcp.CallToolResultFor[apptype.Translation], error) {
	done := metrics.TimeTool("translate")
	var success bool
	defer func() { done(success) }()

	translation, err := s.service.Translate(ctx, params.Arguments.Text, params.Arguments.GradeLevel, params.Arguments.SourceID)
	if err != nil {
		return nil, fmt.Errorf("translate failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.Translation]{
		Content:           []mcp.Content{&mcp.TextContent{Text: translation.Simplified}},
		StructuredContent: *translation,
	}, nil
}

// handleConceptRelations handles the concept_relations tool call
func (s *MCPServer) handleConceptRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ConceptRelationsArgs],
) (*mcp.CallToolResultFor[apptype.ConceptRelationsResult], error) {
	done := metrics.TimeTool("concept_relations")
	var success bool
	defer func() { done(success) }()

	depth := params.Arguments.Depth
	if depth <= 0 {
		depth = 2
	}
	relations, err := s.service.GetRelationships(ctx, params.Arguments.Concept, depth)
	if err != nil {
		return nil, fmt.Errorf("concept_relations failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.ConceptRelationsResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d relations for %s", len(relations), params.Arguments.Concept),
		}},
		StructuredContent: apptype.ConceptRelationsResult{
			Concept:   params.Arguments.Concept,
			Relations: relations,
			Count:     len(relations),
		},
	}, nil
}

// handleFindPath handles the find_path tool call
func (s *MCPServer) handleFindPath(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.FindPathArgs],
) (*mcp.CallToolResultFor[apptype.PathResult], error) {
	done := metrics.TimeTool("find_path")
	var success bool
	defer func() { done(success) }()

	path, err := s.service.FindPath(ctx, params.Arguments.From, params.Arguments.To)
	if err != nil {
		return nil, fmt.Errorf("find_path failed: %w", err)
	}
	success = true

	text := "No path found"
	if len(path) > 0 {
		text = fmt.Sprintf("Found a path of %d concepts", len(path))
	}
	return &mcp.CallToolResultFor[apptype.PathResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: apptype.PathResult{Path: path, Found: len(path) > 0},
	}, nil
}

// handlePrerequisites handles the prerequisites tool call
func (s *MCPServer) handlePrerequisites(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.PrerequisitesArgs],
) (*mcp.CallToolResultFor[apptype.ConceptsResult], error) {
	done := metrics.TimeTool("prerequisites")
	var success bool
	defer func() { done(success) }()

	concepts, err := s.service.GetPrerequisites(ctx, params.Arguments.ConceptID)
	if err != nil {
		return nil, fmt.Errorf("prerequisites failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.ConceptsResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d prerequisites", len(concepts)),
		}},
		StructuredContent: apptype.ConceptsResult{Concepts: concepts, Count: len(concepts)},
	}, nil
}

// handleSearchConcepts handles the search_concepts tool call
func (s *MCPServer) handleSearchConcepts(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SearchConceptsArgs],
) (*mcp.CallToolResultFor[apptype.ConceptsResult], error) {
	done := metrics.TimeTool("search_concepts")
	var success bool
	defer func() { done(success) }()

	concepts, err := s.service.SearchConcepts(ctx, params.Arguments.Term)
	if err != nil {
		return nil, fmt.Errorf("search_concepts failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.ConceptsResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d concepts", len(concepts)),
		}},
		StructuredContent: apptype.ConceptsResult{Concepts: concepts, Count: len(concepts)},
	}, nil
}

// handleAddConcept handles the add_concept tool call
func (s *MCPServer) handleAddConcept(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.AddConceptArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("add_concept")
	var success bool
	defer func() { done(success) }()

	if err := s.service.AddConcept(ctx, params.Arguments.Concept); err != nil {
		return nil, fmt.Errorf("failed to add concept: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Stored concept %s", params.Arguments.Concept.ID),
		}},
	}, nil
}

// handleUpdateConcept handles the update_concept tool call
func (s *MCPServer) handleUpdateConcept(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpdateConceptArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("update_concept")
	var success bool
	defer func() { done(success) }()

	a := params.Arguments
	if err := s.service.UpdateConcept(ctx, a.ID, a.Description, a.GradeLevel, a.Subject); err != nil {
		return nil, fmt.Errorf("failed to update concept: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Updated concept %s", a.ID),
		}},
	}, nil
}

// handleDeleteConcept handles the delete_concept tool call
func (s *MCPServer) handleDeleteConcept(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteConceptArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_concept")
	var success bool
	defer func() { done(success) }()

	if err := s.service.DeleteConcept(ctx, params.Arguments.ID); err != nil {
		return nil, fmt.Errorf("failed to delete concept: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Deleted concept %s", params.Arguments.ID),
		}},
	}, nil
}

// handleAddRelationship handles the add_relationship tool call
func (s *MCPServer) handleAddRelationship(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.AddRelationshipArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("add_relationship")
	var success bool
	defer func() { done(success) }()

	r := params.Arguments.Relation
	if err := s.service.AddRelationship(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to add relationship: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Stored relation %s %s %s", r.Source, r.Type, r.Target),
		}},
	}, nil
}

// handleAddPassages handles the add_passages tool call
func (s *MCPServer) handleAddPassages(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.AddPassagesArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("add_passages")
	var success bool
	defer func() { done(success) }()

	if err := s.service.AddPassages(ctx, params.Arguments.Passages); err != nil {
		return nil, fmt.Errorf("failed to add passages: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Stored %d passages", len(params.Arguments.Passages)),
		}},
	}, nil
}

// handleLinkChunkConcept handles the link_chunk_concept tool call
func (s *MCPServer) handleLinkChunkConcept(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.LinkChunkConceptArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("link_chunk_concept")
	var success bool
	defer func() { done(success) }()

	link := params.Arguments.Link
	if err := s.service.LinkChunkConcept(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to link chunk to concept: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Linked chunk %s to concept %s", link.ChunkID, link.ConceptID),
		}},
	}, nil
}

// handleHealth handles the health tool call
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health")
	var success bool
	defer func() { done(success) }()

	res, err := s.service.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: *res,
	}, nil
}

// reportPoolStats periodically publishes connection pool gauges until the
// context ends.
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inUse, idle := s.service.PoolStats()
				metrics.Default().ObservePoolStats(inUse, idle)
			}
		}
	}()
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.reportPoolStats(ctx)
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.reportPoolStats(ctx)
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("endpoint", endpoint).Msg("SSE MCP server listening")
	return srv.ListenAndServe()
}
