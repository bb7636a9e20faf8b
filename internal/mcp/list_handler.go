package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/sdc-prioritizer/internal/history"
	"github.com/giantswarm/sdc-prioritizer/internal/server"
	"github.com/giantswarm/sdc-prioritizer/internal/strategy"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

func registerTestSuiteTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// list_test_suites
	listTool := mcp.NewTool("list_test_suites",
		mcp.WithDescription("List the SDC test suites that can be prioritized: bundled and directory suites plus uploaded ones"),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListTestSuites(ctx, request, sc)
	})

	// list_strategies
	strategiesTool := mcp.NewTool("list_strategies",
		mcp.WithDescription("List the registered test prioritization strategies"),
	)
	s.AddTool(strategiesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListStrategies(ctx, request, sc)
	})

	return nil
}

type suiteInfo struct {
	ID          string     `json:"id"`
	Description string     `json:"description,omitempty"`
	Version     string     `json:"version,omitempty"`
	Strategy    string     `json:"strategy,omitempty"`
	Source      string     `json:"source"`
	TestCount   int        `json:"test_count"`
	RoadPoints  int        `json:"road_points"`
	CreatedAt   *time.Time `json:"created_at,omitempty"` // uploaded suites only
}

func handleListTestSuites(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	names, err := testsuite.List(sc.SuitesDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list test suites: %v", err)), nil
	}

	suites := []suiteInfo{}
	for _, name := range names {
		suite, err := testsuite.Load(name, sc.SuitesDir)
		if err != nil {
			continue
		}
		suites = append(suites, suiteInfo{
			ID:          suite.ID,
			Description: suite.Description,
			Version:     suite.Version,
			Strategy:    suite.Strategy,
			Source:      "directory",
			TestCount:   len(suite.Tests),
			RoadPoints:  suite.TotalCost(),
		})
	}

	if sc.Store != nil {
		uploads, err := sc.Store.Uploads()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list uploaded suites: %v", err)), nil
		}
		for _, u := range uploads {
			suite, err := sc.Store.Suite(u.SuiteID)
			if err != nil {
				continue
			}
			suites = append(suites, suiteInfo{
				ID:         suite.ID,
				Source:     "uploaded",
				TestCount:  u.TestCount,
				RoadPoints: suite.TotalCost(),
				CreatedAt:  &u.CreatedAt,
			})
		}
	}

	data, err := json.MarshalIndent(suites, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal test suites: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleListStrategies(_ context.Context, _ mcp.CallToolRequest, _ *server.ServerContext) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(strategy.Names(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal strategies: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// resolveSuite finds a suite among the uploaded ones first, then among the
// bundled and directory suites.
func resolveSuite(sc *server.ServerContext, id string) (*testsuite.TestSuite, error) {
	if sc.Store != nil {
		suite, err := sc.Store.Suite(id)
		if err == nil {
			return suite, nil
		}
		var notFound *history.SuiteNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return testsuite.Load(id, sc.SuitesDir)
}
