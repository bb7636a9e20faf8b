// Package engine is the entry point for ranking and evaluating test suites.
// Suites arrive fully loaded; nothing here touches storage.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/sdc-prioritizer/internal/evaluator"
	"github.com/giantswarm/sdc-prioritizer/internal/strategy"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// Prioritize ranks suite with the named strategy.
func Prioritize(suite *testsuite.TestSuite, strategyName string) (*strategy.Ranking, error) {
	s, err := strategy.Get(strategyName)
	if err != nil {
		return nil, err
	}

	ranking, err := s.Rank(suite)
	if err != nil {
		return nil, err
	}

	for _, d := range ranking.Degradations {
		slog.Warn("prioritization degraded",
			"suite", suite.ID,
			"strategy", strategyName,
			"code", d.Code,
			"detail", d.Detail,
		)
	}
	slog.Debug("suite prioritized", "suite", suite.ID, "strategy", strategyName, "tests", len(ranking.Order))

	return ranking, nil
}

// Evaluate ranks suite with the named strategy and scores the ranking. A nil
// budget runs every test.
func Evaluate(suite *testsuite.TestSuite, strategyName string, budget *int) (*evaluator.Report, error) {
	start := time.Now()

	ranking, err := Prioritize(suite, strategyName)
	if err != nil {
		return nil, err
	}

	report, err := evaluator.Evaluate(suite, ranking.Order, budget)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s ranking: %w", strategyName, err)
	}
	report.Strategy = strategyName
	degradations := make([]testsuite.Degradation, 0, len(ranking.Degradations)+len(report.Degradations))
	degradations = append(degradations, ranking.Degradations...)
	report.Degradations = append(degradations, report.Degradations...)
	if len(report.Degradations) == 0 {
		report.Degradations = nil
	}

	slog.Info("evaluation complete",
		"suite", suite.ID,
		"strategy", strategyName,
		"executed", report.Executed,
		"tests", report.TestCount,
		"failures", report.FailuresDetected,
		"cost", report.ExecutionCost,
		"score", report.Score,
		"duration", time.Since(start),
	)

	return report, nil
}
