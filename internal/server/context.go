package server

import (
	"github.com/giantswarm/sdc-prioritizer/internal/history"
)

// ServerContext holds shared dependencies for MCP tool handlers.
type ServerContext struct {
	Store     *history.Store // uploaded suites and evaluation history (optional)
	OutputDir string         // experiment results directory
	SuitesDir string         // external test suites directory (optional)
	Parallel  int            // concurrent evaluations in an experiment
}
