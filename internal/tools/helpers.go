// Package tools provides MCP tool handlers for the memory store.
//
// Each tool follows the same shape:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Store failures are reported as tool errors, never as protocol errors.
package tools

import (
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
// Values are clamped to the int32 range.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok || math.IsNaN(v) {
		return defaultVal
	}
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringSliceArg extracts an array of strings. Non-string elements are
// skipped. A missing key yields nil; a present empty array yields an empty
// non-nil slice.
func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// int64SliceArg extracts an array of integer ids.
func int64SliceArg(req mcp.CallToolRequest, key string) []int64 {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int64(f))
		}
	}
	return out
}

// userArg returns the user_id argument, or fallback when it is absent.
func userArg(req mcp.CallToolRequest, fallback string) string {
	if u := req.GetString("user_id", ""); u != "" {
		return u
	}
	return fallback
}
