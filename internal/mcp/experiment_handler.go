package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/sdc-prioritizer/internal/runner"
	"github.com/giantswarm/sdc-prioritizer/internal/scorer"
	"github.com/giantswarm/sdc-prioritizer/internal/server"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

func handleRunExperiment(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	budget, err := budgetArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ids := splitList(args["test_suites"])
	if len(ids) == 0 {
		ids, err = testsuite.List(sc.SuitesDir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list test suites: %v", err)), nil
		}
		if sc.Store != nil {
			uploaded, err := sc.Store.SuiteIDs()
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to list uploaded suites: %v", err)), nil
			}
			ids = append(ids, uploaded...)
		}
	}

	suites := make([]*testsuite.TestSuite, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		suite, err := resolveSuite(sc, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load test suite %q: %v", id, err)), nil
		}
		suites = append(suites, suite)
	}

	r, err := runner.NewRunner(splitList(args["strategies"]), sc.OutputDir, sc.Parallel)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported strategy: %v", err)), nil
	}
	r.SetBudget(budget)
	if sc.Store != nil {
		r.SetRecorder(sc.Store)
	}

	run, err := r.Run(ctx, "mcp", suites)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("experiment failed: %v", err)), nil
	}

	summaries := run.Summaries()
	strategies := make([]map[string]interface{}, 0, len(summaries))
	for _, name := range scorer.Ranked(summaries) {
		strategies = append(strategies, map[string]interface{}{
			"strategy": name,
			"summary":  summaries[name],
		})
	}

	summary := map[string]interface{}{
		"run_id":     run.ID,
		"suites":     run.Suites,
		"duration":   run.Duration.String(),
		"strategies": strategies,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// splitList splits a comma-separated string argument, dropping blanks.
func splitList(arg interface{}) []string {
	s, _ := arg.(string)
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
