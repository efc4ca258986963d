// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/catalog"
	"github.com/shopvec/shopvec/domain/vector"
)

// ProductSearcher provides product search operations for MCP tools.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query string, options ...service.SearchOption) ([]vector.Result, error)
	HybridSearchProducts(ctx context.Context, query string, limit int, alpha float64) ([]vector.Result, error)
}

// RecordLookup provides catalog record retrieval for MCP tools.
type RecordLookup interface {
	Get(ctx context.Context, platform, externalID string) (catalog.Record, error)
}

// PlatformLister reports the configured platforms.
type PlatformLister interface {
	Platforms() []string
}

// Server wraps the MCP server with shopvec-specific tools.
type Server struct {
	mcpServer *server.MCPServer
	search    ProductSearcher
	records   RecordLookup
	platforms PlatformLister
	logger    *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(search ProductSearcher, records RecordLookup, platforms PlatformLister, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		search:    search,
		records:   records,
		platforms: platforms,
		logger:    logger,
	}

	mcpServer := server.NewMCPServer(
		"shopvec",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools registers all shopvec tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search the product catalog using semantic vector search"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
		mcp.WithString("category",
			mcp.Description("Filter by product category"),
		),
		mcp.WithString("platform",
			mcp.Description("Filter by source platform"),
		),
		mcp.WithNumber("max_price",
			mcp.Description("Filter by maximum price"),
		),
		mcp.WithBoolean("in_stock_only",
			mcp.Description("Only return products in stock"),
		),
		mcp.WithBoolean("hybrid",
			mcp.Description("Blend vector similarity with lexical term overlap"),
		),
	)

	mcpServer.AddTool(searchTool, s.handleSearchProducts)

	getProductTool := mcp.NewTool("get_product",
		mcp.WithDescription("Get one catalog product by platform and external ID"),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("The source platform"),
		),
		mcp.WithString("external_id",
			mcp.Required(),
			mcp.Description("The platform-scoped product identifier"),
		),
	)

	mcpServer.AddTool(getProductTool, s.handleGetProduct)

	listPlatformsTool := mcp.NewTool("list_platforms",
		mcp.WithDescription("List the configured catalog platforms"),
	)

	mcpServer.AddTool(listPlatformsTool, s.handleListPlatforms)
}

type productResult struct {
	ID          string  `json:"id"`
	Platform    string  `json:"platform"`
	ExternalID  string  `json:"external_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	InStock     bool    `json:"in_stock"`
	Score       float64 `json:"score,omitempty"`
}

// handleSearchProducts handles the search_products tool invocation.
func (s *Server) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 10)

	var results []vector.Result
	if request.GetBool("hybrid", false) {
		results, err = s.search.HybridSearchProducts(ctx, query, limit, 0.5)
	} else {
		opts := []service.SearchOption{service.WithLimit(limit)}
		if category := request.GetString("category", ""); category != "" {
			opts = append(opts, service.WithCategory(category))
		}
		if platform := request.GetString("platform", ""); platform != "" {
			opts = append(opts, service.WithPlatform(platform))
		}
		if maxPrice := request.GetFloat("max_price", 0); maxPrice > 0 {
			opts = append(opts, service.WithMaxPrice(maxPrice))
		}
		if request.GetBool("in_stock_only", false) {
			opts = append(opts, service.WithInStockOnly())
		}
		results, err = s.search.SearchProducts(ctx, query, opts...)
	}
	if err != nil {
		s.logger.Error("product search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	out := make([]productResult, len(results))
	for i, res := range results {
		p := res.Payload()
		out[i] = productResult{
			ID:          res.ID(),
			Platform:    p.String("platform"),
			ExternalID:  p.String("external_id"),
			Title:       p.String("title"),
			Description: p.String("description"),
			Price:       p.Float("price"),
			Category:    p.String("category"),
			InStock:     p.Bool("in_stock"),
			Score:       res.Score(),
		}
	}

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleGetProduct handles the get_product tool invocation.
func (s *Server) handleGetProduct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError("platform is required"), nil
	}
	externalID, err := request.RequireString("external_id")
	if err != nil {
		return mcp.NewToolResultError("external_id is required"), nil
	}

	if s.records == nil {
		return mcp.NewToolResultError("record lookup not configured"), nil
	}

	rec, err := s.records.Get(ctx, platform, externalID)
	if err != nil {
		s.logger.Error("failed to get product",
			slog.String("platform", platform),
			slog.String("external_id", externalID),
			slog.Any("error", err),
		)
		return mcp.NewToolResultError(fmt.Sprintf("failed to get product: %v", err)), nil
	}

	item := rec.Item()
	result := productResult{
		ID:          vector.PointID(item.Platform(), item.ExternalID()),
		Platform:    item.Platform(),
		ExternalID:  item.ExternalID(),
		Title:       item.Title(),
		Description: item.Description(),
		Price:       item.Price(),
		Category:    item.Category(),
		InStock:     item.InStock(),
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleListPlatforms handles the list_platforms tool invocation.
func (s *Server) handleListPlatforms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.platforms == nil {
		return mcp.NewToolResultError("platform listing not configured"), nil
	}

	jsonBytes, err := json.Marshal(s.platforms.Platforms())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal platforms: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
