// Package mcp exposes the discograph store and network builder as Model
// Context Protocol tools, so assistants can explore a discography directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/graph"
	grapherror "github.com/teranos/discograph/graph/error"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
	"github.com/teranos/discograph/version"
)

// RolesURI is the resource listing the role catalog.
const RolesURI = "discograph://roles"

// searchLimit caps discograph_search results
const searchLimit = 20

// Server adapts a discograph store to MCP.
type Server struct {
	mcpServer *server.MCPServer
	store     storage.Store
	builder   *graph.Builder
	catalog   *role.Catalog
	network   am.NetworkConfig
	logger    *zap.SugaredLogger
}

// NewServer creates an MCP server over store. Network defaults (degree,
// node budget) come from cfg.
func NewServer(store storage.Store, cfg am.NetworkConfig, verbosity int, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.Named("mcp")
	catalog := role.Default()

	s := &Server{
		mcpServer: server.NewMCPServer(
			"discograph",
			version.Get().Version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
		),
		store:   store,
		builder: graph.NewBuilder(store, catalog, verbosity, log),
		catalog: catalog,
		network: cfg,
		logger:  log,
	}
	s.registerResources()
	s.registerTools()
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Infow("MCP server listening on stdio")
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		RolesURI,
		"Discograph role catalog",
		mcp.WithResourceDescription("Role names accepted by the network tools, grouped by category"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRoles)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("discograph_network",
		mcp.WithDescription("Build the ego network around an artist or label: the entities reachable "+
			"through the given roles within the degree budget, with the links between them"),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Center entity key, e.g. artist-2239 or label-23528"),
		),
		mcp.WithArray("roles",
			mcp.Description("Role names to traverse (see "+RolesURI+"). Empty returns the center alone"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("degree",
			mcp.Description(fmt.Sprintf("Maximum distance from the center (default %d)", s.network.Degree)),
		),
		mcp.WithNumber("max_nodes",
			mcp.Description(fmt.Sprintf("Node budget (default %d)", s.network.MaxNodes)),
		),
		mcp.WithString("year",
			mcp.Description("Only follow relations released in this year or range, e.g. 1994 or 1993-1995"),
		),
	), s.handleNetwork)

	s.mcpServer.AddTool(mcp.NewTool("discograph_search",
		mcp.WithDescription("Find artists and labels by name"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name or part of a name"),
		),
	), s.handleSearch)

	s.mcpServer.AddTool(mcp.NewTool("discograph_relations",
		mcp.WithDescription("List every known relation touching an artist or label"),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Entity key, e.g. artist-2239"),
		),
	), s.handleRelations)
}

func (s *Server) handleReadRoles(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(map[string]interface{}{"categories": s.catalog.Categories()}, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal role catalog")
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleNetwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := entity.ParseJSONKey(raw)
	if err != nil {
		return toolError(err), nil
	}
	year, err := graph.ParseYearRange(request.GetString("year", ""))
	if err != nil {
		return toolError(err), nil
	}

	roles := request.GetStringSlice("roles", nil)
	if err := s.catalog.Validate(roles); err != nil {
		return toolError(err), nil
	}
	sort.Strings(roles)

	opts := graph.Options{
		Degree:    request.GetInt("degree", s.network.Degree),
		MaxNodes:  request.GetInt("max_nodes", s.network.MaxNodes),
		LinkRatio: s.network.LinkRatio,
		PageCount: s.network.PageCount,
		Roles:     roles,
		Year:      year,
	}
	if opts.Degree < 0 || opts.MaxNodes <= 0 {
		return mcp.NewToolResultError("degree must be >= 0 and max_nodes > 0"), nil
	}

	center, err := s.store.GetEntity(ctx, key)
	if err != nil {
		return toolError(err), nil
	}
	network, err := s.builder.BuildEgoNetwork(ctx, center, opts)
	if err != nil {
		return toolError(err), nil
	}
	s.logger.Debugw("Network built for MCP client",
		logger.FieldEntityKey, key.JSONKey(),
		logger.FieldRoles, roles,
		logger.FieldNodeCount, len(network.Nodes),
		logger.FieldLinkCount, len(network.Links),
	)
	return jsonResult(network)
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.store.SearchByName(ctx, query, searchLimit)
	if err != nil {
		return toolError(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No artists or labels match %q", query)), nil
	}
	return jsonResult(map[string]interface{}{"results": results})
}

// relationRow is one line of discograph_relations output.
type relationRow struct {
	Role     string `json:"role"`
	Key      string `json:"key"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Category string `json:"category"`
}

func (s *Server) handleRelations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := entity.ParseJSONKey(raw)
	if err != nil {
		return toolError(err), nil
	}
	if _, err := s.store.GetEntity(ctx, key); err != nil {
		return toolError(err), nil
	}
	relations, err := s.store.RelationsOf(ctx, key)
	if err != nil {
		return toolError(err), nil
	}

	rows := make([]relationRow, 0, len(relations))
	for _, rel := range relations {
		known, ok := s.catalog.Lookup(rel.Role)
		if !ok {
			continue
		}
		rows = append(rows, relationRow{
			Role:     rel.Role,
			Key:      rel.LinkKey(),
			Source:   rel.EntityOneKey().JSONKey(),
			Target:   rel.EntityTwoKey().JSONKey(),
			Category: known.Category,
		})
	}
	return jsonResult(map[string]interface{}{"results": rows})
}

// toolError reports err to the client as a failed tool call, carrying the
// same category and hint the HTTP API would send.
func toolError(err error) *mcp.CallToolResult {
	ge := grapherror.Classify(err)
	msg := ge.ToUIMessage() + ": " + ge.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += " (" + hints[0] + ")"
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
