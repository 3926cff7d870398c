package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	md "github.com/jcdickinson/doxnav/internal/markdown"
	"github.com/jcdickinson/doxnav/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

// Backend is the part of the daemon client the MCP tools use.
type Backend interface {
	AddDocSets(ctx context.Context, req rpc.AddDocSetsRequest, onProgress func(string)) ([]rpc.DocSetResult, error)
	Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error)
	GetPage(ctx context.Context, req rpc.GetPageRequest) (*rpc.GetPageResponse, error)
	Tree(ctx context.Context, req rpc.TreeRequest) (*rpc.TreeResponse, error)
	Locate(ctx context.Context, req rpc.LocateRequest) (*rpc.LocateResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	client    Backend
}

// New builds the MCP tool and resource surface over a daemon connection.
func New(client Backend) *Server {
	s := &Server{client: client}

	mcpServer := server.NewMCPServer(
		"doxnav",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("add_docsets",
			mcp.WithDescription("Ingest Doxygen HTML output (a local directory or an http(s) URL) under a short docset name. Synchronous, returns when complete. Already stored docsets are reused unless refresh is set."),
			addDocSetsSchema,
			mcp.WithBoolean("refresh",
				mcp.Description("Re-ingest even if the docset is already stored"),
			),
		),
		s.handleAddDocSets,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_symbols",
			mcp.WithDescription("Look up symbols in the Doxygen search index. Exact names rank first, then prefixes, then other substrings. Returns doxnav:// URIs that can be read as resources."),
			mcp.WithString("query",
				mcp.Description("Symbol name or fragment, e.g. \"drmgr_init\""),
				mcp.Required(),
			),
			mcp.WithArray("docsets",
				mcp.Description("Optional list of docset names to search within"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithArray("sections",
				mcp.Description("Optional search sections such as \"functions\" or \"classes\""),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default from config)"),
			),
			mcp.WithString("match",
				mcp.Description("Keep only this kind of match and better: exact, prefix or substring (default)"),
				mcp.Enum("exact", "prefix", "substring"),
			),
		),
		s.handleSearchSymbols,
	)

	mcpServer.AddTool(
		mcp.NewTool("browse_tree",
			mcp.WithDescription("Show part of a docset's navigation tree as a markdown list. Address a subtree by its breadcrumb labels; omit them for the top level."),
			mcp.WithString("docset",
				mcp.Description("Docset name"),
				mcp.Required(),
			),
			mcp.WithArray("labels",
				mcp.Description("Breadcrumb labels from the top of the tree, e.g. [\"DynamoRIO\", \"DynamoRIO Extensions\"]"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("depth",
				mcp.Description("Levels to show (default 2, 0 for all)"),
			),
		),
		s.handleBrowseTree,
	)

	mcpServer.AddTool(
		mcp.NewTool("locate_anchor",
			mcp.WithDescription("Find where a page or anchor sits in the navigation tree and return its breadcrumb."),
			mcp.WithString("docset",
				mcp.Description("Docset name"),
				mcp.Required(),
			),
			mcp.WithString("anchor",
				mcp.Description("Doxygen URL such as \"page_ext.html#sec_drx\" or a doxnav:// URI"),
				mcp.Required(),
			),
		),
		s.handleLocateAnchor,
	)
}

func addDocSetsSchema(t *mcp.Tool) {
	t.InputSchema.Required = append(t.InputSchema.Required, "docsets")
	t.InputSchema.Properties["docsets"] = map[string]any{
		"type":        "array",
		"description": "List of docsets to ingest",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Docset name used in doxnav:// URIs (letters, digits, - _ .)",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "Directory or base URL of the Doxygen HTML output",
				},
			},
			"required": []string{"name"},
		},
	}
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"doxnav://{docset}/{page}",
			"Doxygen page outline",
			mcp.WithTemplateDescription("Read the outline of a Doxygen page: its sections with links to each anchor. Search and tree results return these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func stringList(args map[string]any, key string) []string {
	raw, ok := args[key]
	if !ok {
		return nil
	}
	data, _ := json.Marshal(raw)
	var out []string
	json.Unmarshal(data, &out)
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) handleAddDocSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	raw, ok := args["docsets"]
	if !ok {
		return mcp.NewToolResultError("missing required parameter: docsets"), nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid docsets parameter: %v", err)), nil
	}
	var specs []rpc.DocSetSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid docsets format: %v", err)), nil
	}
	refresh, _ := args["refresh"].(bool)

	results, err := s.client.AddDocSets(ctx, rpc.AddDocSetsRequest{DocSets: specs, Refresh: refresh}, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add docsets: %v", err)), nil
	}
	return jsonResult(results), nil
}

func (s *Server) handleSearchSymbols(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{
		Query:    query,
		DocSets:  stringList(args, "docsets"),
		Sections: stringList(args, "sections"),
	}
	if limit, ok := args["limit"].(float64); ok {
		searchReq.Limit = int(limit)
	}
	searchReq.Match, _ = args["match"].(string)

	resp, err := s.client.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(resp.Results), nil
}

func (s *Server) handleBrowseTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	docset, _ := args["docset"].(string)
	if docset == "" {
		return mcp.NewToolResultError("missing required parameter: docset"), nil
	}

	treeReq := rpc.TreeRequest{DocSet: docset, Labels: stringList(args, "labels"), Depth: 2}
	if depth, ok := args["depth"].(float64); ok {
		treeReq.Depth = int(depth)
	}

	resp, err := s.client.Tree(ctx, treeReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("browse failed: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

func (s *Server) handleLocateAnchor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	docset, _ := args["docset"].(string)
	anchor, _ := args["anchor"].(string)
	if docset == "" || anchor == "" {
		return mcp.NewToolResultError("missing required parameters: docset and anchor"), nil
	}

	resp, err := s.client.Locate(ctx, rpc.LocateRequest{DocSet: docset, Anchor: anchor})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("locate failed: %v", err)), nil
	}
	if !resp.Found {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not in the navigation tree of %s", anchor, docset)), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	docset, _, _, err := md.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URI: %w", err)
	}

	resp, err := s.client.GetPage(ctx, rpc.GetPageRequest{DocSet: docset, Page: uri})
	if err != nil {
		return nil, fmt.Errorf("getting page: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

// Run serves MCP over stdin and stdout until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	err := server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
