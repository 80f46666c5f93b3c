// Package mcp exposes the geocoin hunt to AI agents over the Model Context Protocol.
//
// The Client registers one MCP tool per game operation and proxies every call
// to the REST API, so MCP agents and HTTP clients share sessions and state:
//   - create_session, list_sessions
//   - game_state (position, north-up map of the visible square, caches in view)
//   - move, locate
//   - grab, donate
//   - reset_game, move_history
//   - list_configs, describe_cell, game_instructions
//
// Transport Modes:
//
// main.go serves the same MCP server two ways:
//   - Stdio: server.ServeStdio for local MCP clients (-mcp flag)
//   - HTTP: POST /mcp on the game server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
//
// Tool failures (unknown session, empty cache, bad arguments) are returned as
// tool results with IsError set rather than protocol errors.
package mcp
