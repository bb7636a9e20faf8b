package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/sdc-prioritizer/internal/server"
)

func handleGetHistory(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Store == nil {
		return mcp.NewToolResultError("history store is not configured"), nil
	}

	var b strings.Builder
	if err := sc.Store.WriteCSV(&b); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export history: %v", err)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}
