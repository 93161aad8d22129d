// Package mcpserver provides the Model Context Protocol (MCP) embedding of
// the worker.
//
// The mcpserver package exposes the same Executor that backs the stdio
// protocol as MCP tools, using the mark3labs/mcp-go library for the
// protocol details. It is a boundary adapter only: tool registry and
// routing decisions belong to the owning host.
//
// Usage:
//
//	server, err := mcpserver.New(cfg, logger, executor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio()
package mcpserver
