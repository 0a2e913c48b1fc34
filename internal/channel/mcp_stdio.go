package channel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"activityplanner/internal/domain"
	"activityplanner/internal/tool"
)

// MCPStdio serves the planner tools over the MCP stdio transport for
// desktop clients. Logs must go to stderr while it runs.
type MCPStdio struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	mcpServer  *server.MCPServer
	in         io.Reader
	out        io.Writer
	cancel     context.CancelFunc
}

type MCPStdioConfig struct {
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	In         io.Reader // defaults to os.Stdin
	Out        io.Writer // defaults to os.Stdout
}

func NewMCPStdio(cfg MCPStdioConfig) *MCPStdio {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	m := &MCPStdio{
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		mcpServer:  server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		in:         cfg.In,
		out:        cfg.Out,
	}
	for _, desc := range tool.Catalogue() {
		m.mcpServer.AddTool(mcpTool(desc), m.handler(desc.Kind))
	}
	return m
}

func (m *MCPStdio) Name() string { return "mcp_stdio" }

// Start blocks until the input stream closes or ctx is cancelled.
func (m *MCPStdio) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("mcp stdio server started", "tools", len(domain.AllTools))
	stdio := server.NewStdioServer(m.mcpServer)
	return stdio.Listen(ctx, m.in, m.out)
}

func (m *MCPStdio) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// Server exposes the underlying MCP server, mainly for tests.
func (m *MCPStdio) Server() *server.MCPServer { return m.mcpServer }

func (m *MCPStdio) handler(kind domain.ToolKind) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, _ := m.dispatcher.Call(ctx, kind.String(), request.GetArguments())
		if !res.OK() {
			return mcp.NewToolResultError(res.Text), nil
		}
		return mcp.NewToolResultText(res.Text), nil
	}
}

func mcpTool(desc tool.Descriptor) mcp.Tool {
	required := make(map[string]bool, len(desc.Required))
	for _, r := range desc.Required {
		required[r] = true
	}
	props, _ := desc.InputSchema["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := []mcp.ToolOption{mcp.WithDescription(desc.Description)}
	for _, name := range names {
		popts := []mcp.PropertyOption{}
		if p, ok := props[name].(map[string]any); ok {
			if d, ok := p["description"].(string); ok {
				popts = append(popts, mcp.Description(d))
			}
		}
		if required[name] {
			popts = append(popts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(name, popts...))
	}
	return mcp.NewTool(desc.Name, opts...)
}
