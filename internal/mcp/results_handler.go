package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/sdc-prioritizer/internal/server"
)

func handleGetResults(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	runID, _ := args["run_id"].(string)

	if runID != "" {
		return getSpecificRun(sc.OutputDir, runID)
	}
	return listRuns(sc.OutputDir)
}

func listRuns(outputDir string) (*mcp.CallToolResult, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return mcp.NewToolResultText("[]"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to read results directory: %v", err)), nil
	}

	runs := []map[string]interface{}{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		metadata, err := readMetadata(filepath.Join(outputDir, e.Name()))
		if err != nil {
			continue
		}
		metadata["report_files"] = reportFiles(filepath.Join(outputDir, e.Name()))
		runs = append(runs, metadata)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func getSpecificRun(outputDir, runID string) (*mcp.CallToolResult, error) {
	runPath, err := resolveRunPath(outputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid run_id: %v", err)), nil
	}

	metadata, err := readMetadata(runPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %q not found: %v", runID, err)), nil
	}

	// Include the per-strategy summary if available.
	if data, err := os.ReadFile(filepath.Join(runPath, "summary.json")); err == nil {
		var summary interface{}
		if json.Unmarshal(data, &summary) == nil {
			metadata["summary"] = summary
		}
	}
	metadata["report_files"] = reportFiles(runPath)

	result, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

func readMetadata(runPath string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(runPath, "resultset.json"))
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse run metadata: %w", err)
	}
	return metadata, nil
}

func reportFiles(runPath string) []string {
	files, _ := os.ReadDir(runPath)
	names := []string{}
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "evaluation_report_") && strings.HasSuffix(f.Name(), ".csv") {
			names = append(names, f.Name())
		}
	}
	return names
}
