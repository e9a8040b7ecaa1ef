package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/fusionsearch/internal/search"
	"github.com/Aman-CERP/fusionsearch/internal/telemetry"
	"github.com/Aman-CERP/fusionsearch/pkg/version"
)

// ServerName is the MCP implementation name.
const ServerName = "fusionsearch"

// Supported transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Engine is the search surface the server exposes.
type Engine interface {
	search.Searcher

	// Stats returns the current query statistics.
	Stats() *telemetry.QueryStatsSnapshot
}

// Server is the MCP server. It bridges AI clients with the search engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

var tools = []ToolInfo{
	{
		Name:        ToolSearch,
		Description: "Search the component, documentation and resource catalog. Hybrid mode blends keyword and semantic relevance; filters narrow by framework, category, tags and flags.",
	},
	{
		Name:        ToolSuggest,
		Description: "Typeahead completions for a partial query, ranked by title match and popularity.",
	},
	{
		Name:        ToolStats,
		Description: "Query statistics since startup: volume per mode, cache hit rate, degraded rate, latency buckets and frequent terms.",
	},
}

// NewServer creates a new MCP server over engine.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpSuggestHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpStatsHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with JSON-style arguments and returns its
// markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolSearch:
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		_, text, err := s.search(ctx, in)
		return text, err
	case ToolSuggest:
		var in SuggestInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		_, text, err := s.suggest(ctx, in)
		return text, err
	case ToolStats:
		return FormatStats(s.engine.Stats()), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError("arguments must be a JSON object")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidParamsError("invalid arguments: " + err.Error())
	}
	return nil
}

// search runs one search and renders it. Errors are MCP errors.
func (s *Server) search(ctx context.Context, in SearchInput) (*search.SearchResponse, string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, "", NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	start := time.Now()
	requestID := uuid.NewString()
	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.String("mode", in.Mode),
		slog.Int("limit", in.Limit))

	resp, err := s.engine.Search(ctx, in.rawRequest())
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(resp.Results)),
		slog.Bool("degraded", resp.Degraded),
		slog.Bool("cached", resp.Cached))

	return resp, FormatSearchResponse(in.Query, resp), nil
}

// suggest runs one typeahead request and renders it.
func (s *Server) suggest(ctx context.Context, in SuggestInput) (*search.SuggestResponse, string, error) {
	requestID := uuid.NewString()
	resp, err := s.engine.Suggest(ctx, search.SuggestRequest{Query: in.Query, Limit: in.Limit})
	if err != nil {
		s.logger.Error("suggest_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}
	s.logger.Debug("suggest_completed",
		slog.String("request_id", requestID),
		slog.Int("suggestion_count", len(resp.Suggestions)))
	return resp, FormatSuggestions(in.Query, resp), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	resp, text, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(text), ToSearchOutput(resp), nil
}

// mcpSuggestHandler is the MCP SDK handler for the suggest tool.
func (s *Server) mcpSuggestHandler(ctx context.Context, _ *mcp.CallToolRequest, input SuggestInput) (
	*mcp.CallToolResult,
	SuggestOutput,
	error,
) {
	resp, text, err := s.suggest(ctx, input)
	if err != nil {
		return nil, SuggestOutput{}, err
	}
	return textResult(text), ToSuggestOutput(resp), nil
}

// mcpStatsHandler is the MCP SDK handler for the query_stats tool.
func (s *Server) mcpStatsHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	snap := s.engine.Stats()
	return textResult(FormatStats(snap)), ToStatsOutput(snap), nil
}

// Serve starts the server with the specified transport and blocks until ctx
// is canceled.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("addr", addr))

	var err error
	switch transport {
	case TransportStdio:
		err = s.mcp.Run(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		err = s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// serveHTTP serves the streamable HTTP transport on addr.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
