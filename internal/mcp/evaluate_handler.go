package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/sdc-prioritizer/internal/engine"
	"github.com/giantswarm/sdc-prioritizer/internal/history"
	"github.com/giantswarm/sdc-prioritizer/internal/server"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

func registerEvaluationTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// prioritize_test_suite
	prioritizeTool := mcp.NewTool("prioritize_test_suite",
		mcp.WithDescription("Order the tests of a suite so the ones most likely to reveal a defect run first"),
		mcp.WithString("test_suite",
			mcp.Required(),
			mcp.Description("ID of the test suite (e.g. 'suite_01')"),
		),
		mcp.WithString("strategy",
			mcp.Description("Prioritization strategy (default: the suite's configured strategy)"),
		),
	)
	s.AddTool(prioritizeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handlePrioritizeTestSuite(ctx, request, sc)
	})

	// evaluate_test_suite
	evaluateTool := mcp.NewTool("evaluate_test_suite",
		mcp.WithDescription("Prioritize a suite, simulate its execution and score the ordering with APFD"),
		mcp.WithString("test_suite",
			mcp.Required(),
			mcp.Description("ID of the test suite (e.g. 'suite_01')"),
		),
		mcp.WithString("strategy",
			mcp.Description("Prioritization strategy (default: the suite's configured strategy)"),
		),
		mcp.WithNumber("budget",
			mcp.Description("Maximum number of road points to execute (default: no limit)"),
		),
	)
	s.AddTool(evaluateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleEvaluateTestSuite(ctx, request, sc)
	})

	// run_experiment
	experimentTool := mcp.NewTool("run_experiment",
		mcp.WithDescription("Evaluate several suites with several strategies and write a results directory"),
		mcp.WithString("test_suites",
			mcp.Description("Comma-separated suite IDs (default: every listed suite)"),
		),
		mcp.WithString("strategies",
			mcp.Description("Comma-separated strategy names (default: all)"),
		),
		mcp.WithNumber("budget",
			mcp.Description("Maximum number of road points per evaluation (default: no limit)"),
		),
	)
	s.AddTool(experimentTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRunExperiment(ctx, request, sc)
	})

	// get_results
	getResultsTool := mcp.NewTool("get_results",
		mcp.WithDescription("Retrieve the summaries of past experiments"),
		mcp.WithString("run_id",
			mcp.Description("Specific run ID to retrieve (optional, lists all if omitted)"),
		),
	)
	s.AddTool(getResultsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetResults(ctx, request, sc)
	})

	// get_history
	historyTool := mcp.NewTool("get_history",
		mcp.WithDescription("Return the evaluation history as CSV"),
	)
	s.AddTool(historyTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetHistory(ctx, request, sc)
	})

	return nil
}

// suiteAndStrategy reads the test_suite and strategy arguments.
func suiteAndStrategy(args map[string]interface{}, sc *server.ServerContext) (*testsuite.TestSuite, string, *mcp.CallToolResult) {
	suiteID, ok := args["test_suite"].(string)
	if !ok || suiteID == "" {
		return nil, "", mcp.NewToolResultError("test_suite is required")
	}

	suite, err := resolveSuite(sc, suiteID)
	if err != nil {
		return nil, "", mcp.NewToolResultError(fmt.Sprintf("failed to load test suite: %v", err))
	}

	name, _ := args["strategy"].(string)
	if name == "" {
		name = suite.Strategy
	}
	if name == "" {
		name = testsuite.DefaultStrategy
	}
	return suite, name, nil
}

// budgetArg reads an optional non-negative integer budget.
func budgetArg(args map[string]interface{}) (*int, error) {
	raw, ok := args["budget"]
	if !ok || raw == nil {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok {
		return nil, fmt.Errorf("budget must be a number")
	}
	if f < 0 || f != float64(int(f)) {
		return nil, fmt.Errorf("budget must be a non-negative integer, got %v", f)
	}
	b := int(f)
	return &b, nil
}

func handlePrioritizeTestSuite(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	suite, name, errResult := suiteAndStrategy(request.GetArguments(), sc)
	if errResult != nil {
		return errResult, nil
	}

	ranking, err := engine.Prioritize(suite, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prioritization failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(map[string]interface{}{
		"testSuiteId":  suite.ID,
		"strategy":     ranking.Strategy,
		"orderedTests": ranking.Order,
		"degradations": ranking.Degradations,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal ranking: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleEvaluateTestSuite(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	suite, name, errResult := suiteAndStrategy(args, sc)
	if errResult != nil {
		return errResult, nil
	}
	budget, err := budgetArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	start := time.Now()
	report, err := engine.Evaluate(suite, name, budget)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}

	result := map[string]interface{}{"report": report}
	if sc.Store != nil {
		record, err := sc.Store.SaveEvaluation(history.NewRecord(report, time.Since(start)))
		if err != nil {
			slog.Error("failed to record evaluation", "suite", suite.ID, "error", err)
		} else {
			result["session_id"] = record.ID
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
