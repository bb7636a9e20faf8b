// Package evaluator replays a test ordering against the fault simulator and
// scores it with APFD (Average Percentage of Faults Detected).
package evaluator

import (
	"fmt"

	"github.com/giantswarm/sdc-prioritizer/internal/features"
	"github.com/giantswarm/sdc-prioritizer/internal/simulator"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// Report is the result of evaluating one ordering.
type Report struct {
	SuiteID  string `json:"testSuiteId"`
	Strategy string `json:"strategy,omitempty"`
	// TestCount is the size of the ordering, executed or not.
	TestCount        int     `json:"testCount"`
	Executed         int     `json:"executed"`
	FailuresDetected int     `json:"failuresDetected"`
	ExecutionCost    int     `json:"executionCost"`
	Score            float64 `json:"score"`
	Budget           *int    `json:"budget,omitempty"`
	// FailurePositions holds the 1-based ranks of the failed tests.
	FailurePositions []int                   `json:"failurePositions"`
	Degradations     []testsuite.Degradation `json:"degradations,omitempty"`
}

// Evaluate executes the tests of suite in the given order. With a budget the
// run stops before the first test whose cost would overrun it; the APFD of a
// partial run still divides by the full test count.
func Evaluate(suite *testsuite.TestSuite, order []string, budget *int) (*Report, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	if len(order) != len(suite.Tests) {
		return nil, fmt.Errorf("ordering has %d tests, suite %q has %d", len(order), suite.ID, len(suite.Tests))
	}

	vectors, err := features.ExtractAll(suite)
	if err != nil {
		return nil, err
	}
	stats := simulator.NewStats(vectors)

	index := make(map[string]int, len(suite.Tests))
	for i, tc := range suite.Tests {
		index[tc.ID] = i
	}

	report := &Report{
		SuiteID:          suite.ID,
		TestCount:        len(order),
		Budget:           budget,
		FailurePositions: []int{},
	}

	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if _, ok := index[id]; !ok {
			return nil, fmt.Errorf("ordering references unknown test %q", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("ordering lists test %q twice", id)
		}
		seen[id] = true
	}

	for rank, id := range order {
		i := index[id]
		outcome := simulator.Simulate(suite.Tests[i], vectors[i], stats)
		if budget != nil && report.ExecutionCost+outcome.Cost > *budget {
			report.Degradations = append(report.Degradations, testsuite.Degradation{
				Code:   testsuite.DegradationBudgetExhausted,
				Detail: fmt.Sprintf("budget %d exhausted after %d of %d tests", *budget, report.Executed, len(order)),
			})
			break
		}
		report.ExecutionCost += outcome.Cost
		report.Executed++
		if outcome.Failed {
			report.FailurePositions = append(report.FailurePositions, rank+1)
		}
	}

	report.FailuresDetected = len(report.FailurePositions)
	report.Score = APFD(report.FailurePositions, report.TestCount)
	if report.FailuresDetected == 0 {
		report.Degradations = append(report.Degradations, testsuite.Degradation{
			Code:   testsuite.DegradationNoFaults,
			Detail: fmt.Sprintf("no failures in %d executed tests", report.Executed),
		})
	}
	return report, nil
}

// APFD returns 1 - sum(positions)/(n*m) + 1/(2n) for m detected faults at
// the given 1-based positions among n tests. Detecting nothing scores 0.
func APFD(positions []int, n int) float64 {
	m := len(positions)
	if m == 0 || n == 0 {
		return 0
	}
	sum := 0
	for _, p := range positions {
		sum += p
	}
	score := 1 - float64(sum)/float64(n*m) + 1/(2*float64(n))
	return min(1, max(0, score))
}
