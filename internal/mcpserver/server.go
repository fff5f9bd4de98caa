// Package mcpserver exposes the merged tree to MCP clients as read-only
// tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
	"github.com/agentic-research/resmerge/internal/vfs"
)

const (
	serverName    = "resmerge"
	serverVersion = "0.1.0"
)

// Server wires the tool handlers to a vfs.View.
type Server struct {
	view *vfs.View
	mcp  *server.MCPServer
}

// New registers the tools over view.
func New(view *vfs.View) *Server {
	s := &Server{view: view}
	s.mcp = server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("get_resource",
		mcp.WithDescription("Resolve a path in the merged tree and describe the resource: type, super type, properties and the backing resources it was merged from."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute resource path, e.g. /mnt/overlay/apps/page"),
		),
	), s.handleGetResource)

	s.mcp.AddTool(mcp.NewTool("list_children",
		mcp.WithDescription("List the children of a resource in merged order."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute resource path"),
		),
	), s.handleListChildren)

	s.mcp.AddTool(mcp.NewTool("find_by_type",
		mcp.WithDescription("Find every resource whose type or super type matches, physical and merged. A merged resource matches when any resource it was merged from does."),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Resource type, e.g. apps/page"),
		),
	), s.handleFindByType)

	return s
}

// MCP returns the underlying server, e.g. for ServeStdio.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("mcp server on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleGetResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.resolve(ctx, path)
	if err != nil {
		return toolError(path, err)
	}
	return mcp.NewToolResultText(string(vfs.DescribeJSON(res))), nil
}

func (s *Server) handleListChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.resolve(ctx, path)
	if err != nil {
		return toolError(path, err)
	}
	kids, err := s.view.Host().ListChildren(ctx, res)
	if err != nil {
		return toolError(path, err)
	}

	return summaries(kids), nil
}

func (s *Server) handleFindByType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	found, err := s.view.Host().FindByType(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("find type %s: %w", typ, err)
	}
	return summaries(found), nil
}

// summaries renders resources as a JSON array of name, path and type.
func summaries(rs []graph.Resource) *mcp.CallToolResult {
	out := make([]any, len(rs))
	for i, r := range rs {
		entry := map[string]any{
			"name": pathutil.Name(r.Path()),
			"path": r.Path(),
		}
		if t := r.ResourceType(); t != "" {
			entry["resourceType"] = t
		}
		out[i] = entry
	}
	return mcp.NewToolResultText(oj.JSON(out, &oj.Options{Indent: 2, Sort: true}))
}

func (s *Server) resolve(ctx context.Context, path string) (graph.Resource, error) {
	res, err := s.view.Host().GetResource(ctx, path)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, graph.ErrNotFound
	}
	return res, nil
}

// toolError reports a missing resource to the client as a tool error and
// fails the call for anything else.
func toolError(path string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, graph.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no resource at %s", path)), nil
	}
	return nil, fmt.Errorf("%s: %w", path, err)
}
