// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes canvas tools for LLM integration over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/bridge"
	"github.com/starford/vellum/internal/canvas"
	"github.com/starford/vellum/internal/catalog"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
)

// Server wraps the MCP server with canvas tools.
type Server struct {
	mcp *server.MCPServer
	svc *canvas.Service
	db  catalog.NodeCatalog
	// fetch downloads remote images for upload_image.
	fetch func(rawURL string) ([]byte, string, error)
}

// New creates a new MCP server with all canvas tools registered.
func New(svc *canvas.Service, db catalog.NodeCatalog, version string) *Server {
	s := &Server{svc: svc, db: db, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"Vellum",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List the nodes on the canvas (id, type, title, position and size) in stacking order."),
		mcp.WithString("type", mcp.Description("Optional node type filter: component, image or note")),
	), s.listNodes)

	s.mcp.AddTool(mcp.NewTool("read_node",
		mcp.WithDescription("Read one node. Components return their HTML, or a Markdown digest when format is markdown."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithString("format", mcp.Description("html (default) or markdown")),
	), s.readNode)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through node titles, page text, note content and keywords."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("focus_node",
		mcp.WithDescription("Pan and zoom every open canvas so the node fills the view."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.focusNode)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Place a sticky note on the canvas."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Note text")),
		mcp.WithString("color", mcp.Description("yellow, pink, blue, green, purple, orange or a #hex colour")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("generate_component",
		mcp.WithDescription("Generate a new component page from a prompt. The node is returned at once; "+
			"its HTML streams in afterwards. Read the component contract via get_component_contract."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What the page should be")),
	), s.generateComponent)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Place an image on the canvas from an http(s) URL or a base64 data URI. "+
			"Returns the node and the asset URL usable inside component HTML."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("title", mcp.Description("Node title; defaults to the file name")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("get_component_contract",
		mcp.WithDescription("Returns the rules component HTML must follow to render on the canvas."),
	), s.getComponentContract)

	// Resource: bridge protocol.
	s.mcp.AddResource(
		mcp.NewResource(BridgeProtocolURI, "Bridge Protocol",
			mcp.WithResourceDescription("Messages exchanged between the host page and rendered component documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBridgeProtocol,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves the MCP server over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

type nodeSummary struct {
	ID     string          `json:"id"`
	Type   models.NodeType `json:"type"`
	Title  string          `json:"title"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Width  float64         `json:"width"`
	Height float64         `json:"height"`
}

func (s *Server) listNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := models.NodeType(req.GetString("type", ""))
	if typ != "" && !typ.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown node type: %s", typ)), nil
	}
	out := []nodeSummary{}
	for _, n := range s.svc.Snapshot().Nodes {
		if typ != "" && n.Type != typ {
			continue
		}
		out = append(out, nodeSummary{ID: n.ID, Type: n.Type, Title: n.Title, X: n.X, Y: n.Y, Width: n.Width, Height: n.Height})
	}
	return jsonResult(out)
}

func (s *Server) readNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := s.svc.Snapshot().Node(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	switch req.GetString("format", "html") {
	case "html":
		return jsonResult(n)
	case "markdown":
		if n.Type != models.NodeComponent {
			return mcp.NewToolResultText(n.Content), nil
		}
		md, err := parser.Markdown(n.HTML)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(md), nil
	default:
		return mcp.NewToolResultError("format must be html or markdown"), nil
	}
}

func (s *Server) searchNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results)
}

func (s *Server) focusNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.svc.FocusNode(id) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("focused: %s", id)), nil
}

func (s *Server) createNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.CreateNote(title, req.GetString("content", ""), req.GetString("color", ""), nil)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func (s *Server) generateComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("prompt is empty"), nil
	}
	n, err := s.svc.Generate(ctx, prompt)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n)
}

func (s *Server) getComponentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ComponentContract), nil
}

func (s *Server) readBridgeProtocol(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      BridgeProtocolURI,
			MIMEType: "text/markdown",
			Text:     BridgeProtocol(bridge.DefaultSchema),
		},
	}, nil
}

// toolError renders a service error for the model.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return mcp.NewToolResultError(fmt.Sprintf("invalid input: %v", err))
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}
