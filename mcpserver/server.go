package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isogon/sandboxd/config"
	"github.com/isogon/sandboxd/protocol"
	"github.com/isogon/sandboxd/worker"
)

// Server wraps the worker's Executor behind MCP tools.
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	executor  *worker.Executor
	mcpServer *server.MCPServer
}

// New creates a new Server exposing the executor's operations as tools.
func New(cfg *config.Config, logger *zap.Logger, executor *worker.Executor) (*Server, error) {
	s := &Server{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	logger.Info("configuration loaded",
		zap.String("worker.transport", cfg.Worker.Transport),
		zap.Int("execution.default_timeout_sec", cfg.Execution.DefaultTimeoutSec),
		zap.Int("execution.max_line_bytes", cfg.Execution.MaxLineBytes),
		zap.Strings("runtime.preload", cfg.Runtime.Preload),
	)

	s.mcpServer = server.NewMCPServer("sandboxd", "Sandboxed code execution worker")
	s.registerExecuteTool()
	s.registerWriteFileTool()

	return s, nil
}

func (s *Server) registerExecuteTool() {
	tool := mcp.Tool{
		Name:        "execute_sandboxed_code",
		Description: "Execute code inside the persistent sandboxed runtime",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
				"files": map[string]any{
					"type":        "object",
					"description": "Files to stage into the runtime's filesystem before execution (path -> content)",
				},
				"timeout": map[string]any{
					"type":        "number",
					"description": "Execution timeout in seconds (default 30)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecute)
}

func (s *Server) registerWriteFileTool() {
	tool := mcp.Tool{
		Name:        "write_virtual_file",
		Description: "Write a file into the runtime's virtual filesystem without executing code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Destination path inside the virtual filesystem",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "File content",
				},
			},
			Required: []string{"path", "content"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleWriteFile)
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	var files map[string]string
	if raw, ok := request.GetArguments()["files"].(map[string]any); ok {
		files = make(map[string]string, len(raw))
		for path, content := range raw {
			text, ok := content.(string)
			if !ok {
				return nil, fmt.Errorf("file %q content must be a string", path)
			}
			files[path] = text
		}
	}

	req := protocol.Request{
		Type:       protocol.RequestExecute,
		Code:       code,
		Files:      files,
		TimeoutSec: request.GetInt("timeout", 0),
	}

	s.logger.Info("code execution requested",
		zap.Int("code_len", len(code)),
		zap.Int("files", len(files)),
		zap.Int("timeout_sec", req.TimeoutSec))

	return s.toToolResult(s.executor.Handle(ctx, req))
}

func (s *Server) handleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return nil, fmt.Errorf("path parameter is required: %w", err)
	}
	content, err := request.RequireString("content")
	if err != nil {
		return nil, fmt.Errorf("content parameter is required: %w", err)
	}

	req := protocol.Request{
		Type:    protocol.RequestWriteFile,
		Path:    path,
		Content: content,
	}

	return s.toToolResult(s.executor.Handle(ctx, req))
}

// toToolResult embeds the wire-format result as tool output text, so MCP
// clients see exactly what stdio clients would.
func (s *Server) toToolResult(res protocol.Result) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
		IsError: !res.Success,
	}, nil
}

// ServeStdio starts the server on stdio
func (s *Server) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
