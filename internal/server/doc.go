// Package server implements the MCP (Model Context Protocol) server for UI
// element location.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Logs go to stderr; stdout carries only protocol traffic.
//
// # Available Tools
//
//   - ui_locate: Find the element matching a description
//   - ui_hierarchy: Sections, elements, neighbors and density containers
//   - ui_annotate: Render the hierarchy over the screenshot, optionally
//     highlighting a located element
//   - ui_image_info: Dimensions and format
//   - ui_cache_evict: Forget the cached hierarchy of a screenshot
//
// Screenshots are read from the path argument on every call. Hierarchies
// are cached by content hash, so a file rewritten in place is analyzed
// again.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses:
//   - -32602: missing or malformed arguments, or an empty query
//   - -32000: tool execution failure, with the Go error string as data
//
// A locate request that runs out of time is not an error: the result
// reports found=false and timed_out=true.
//
// # Usage
//
//	srv := server.New(service, server.Options{Version: version}, logger)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal("server error", zap.Error(err))
//	}
package server
