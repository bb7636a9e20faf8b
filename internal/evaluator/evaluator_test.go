package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
	"github.com/giantswarm/sdc-prioritizer/internal/testutil"
)

func intPtr(v int) *int { return &v }

func TestAPFD(t *testing.T) {
	tests := []struct {
		name      string
		positions []int
		n         int
		want      float64
	}{
		{"single fault first of two", []int{1}, 2, 0.75},
		{"single fault last of two", []int{2}, 2, 0.25},
		{"no faults", nil, 5, 0},
		{"empty suite", nil, 0, 0},
		{"all faults first", []int{1, 2}, 4, 0.75},
		{"all faults last", []int{3, 4}, 4, 0.25},
		{"single test failing", []int{1}, 1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, APFD(tt.positions, tt.n), 1e-12)
		})
	}
}

func TestEvaluateSmokeSuite(t *testing.T) {
	suite := testutil.SmokeSuite()

	report, err := Evaluate(suite, []string{"TC_002", "TC_001"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TestCount)
	assert.Equal(t, 2, report.Executed)
	assert.Equal(t, 1, report.FailuresDetected)
	assert.Equal(t, []int{1}, report.FailurePositions)
	assert.Equal(t, 5, report.ExecutionCost)
	assert.InDelta(t, 0.75, report.Score, 1e-12)
	assert.Empty(t, report.Degradations)

	reversed, err := Evaluate(suite, []string{"TC_001", "TC_002"}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, reversed.Score, 1e-12)
}

func TestEvaluateBudget(t *testing.T) {
	suite := testutil.SmokeSuite()
	order := []string{"TC_001", "TC_002"}

	tests := []struct {
		name      string
		budget    int
		executed  int
		cost      int
		failures  int
		exhausted bool
	}{
		{"below first cost", 2, 0, 0, 0, true},
		{"first test only", 4, 1, 3, 0, true},
		{"exact total", 5, 2, 5, 1, false},
		{"above total", 100, 2, 5, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Evaluate(suite, order, intPtr(tt.budget))
			require.NoError(t, err)

			assert.Equal(t, 2, report.TestCount)
			assert.Equal(t, tt.executed, report.Executed)
			assert.Equal(t, tt.cost, report.ExecutionCost)
			assert.Equal(t, tt.failures, report.FailuresDetected)
			assert.Equal(t, tt.exhausted, hasDegradation(report, testsuite.DegradationBudgetExhausted))
			if tt.failures == 0 {
				assert.Zero(t, report.Score)
				assert.True(t, hasDegradation(report, testsuite.DegradationNoFaults))
			}
		})
	}
}

func TestEvaluateBudgetMonotonic(t *testing.T) {
	suite, err := testsuite.Load("suite_02", "")
	require.NoError(t, err)
	order := suite.TestIDs()
	total := suite.TotalCost()

	base, err := Evaluate(suite, order, nil)
	require.NoError(t, err)

	prevCost, prevFailures := 0, 0
	for budget := 0; budget <= total; budget++ {
		report, err := Evaluate(suite, order, intPtr(budget))
		require.NoError(t, err)

		assert.GreaterOrEqual(t, report.ExecutionCost, prevCost, "budget %d", budget)
		assert.GreaterOrEqual(t, report.FailuresDetected, prevFailures, "budget %d", budget)
		assert.LessOrEqual(t, report.ExecutionCost, budget)
		assert.GreaterOrEqual(t, report.Score, 0.0)
		assert.LessOrEqual(t, report.Score, 1.0)
		prevCost, prevFailures = report.ExecutionCost, report.FailuresDetected
	}

	full, err := Evaluate(suite, order, intPtr(total))
	require.NoError(t, err)
	full.Budget = nil
	assert.Equal(t, base, full)
}

func TestEvaluateErrors(t *testing.T) {
	suite := testutil.SmokeSuite()

	tests := []struct {
		name  string
		suite *testsuite.TestSuite
		order []string
	}{
		{"missing test", suite, []string{"TC_001"}},
		{"unknown test", suite, []string{"TC_001", "TC_999"}},
		{"duplicate test", suite, []string{"TC_001", "TC_001"}},
		{"empty suite", testutil.Suite("empty"), nil},
		{"invalid road", testutil.Suite("bad", testutil.Road("x", [2]float64{0, 0})), []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.suite, tt.order, nil)
			assert.Error(t, err)
		})
	}
}

func hasDegradation(r *Report, code string) bool {
	for _, d := range r.Degradations {
		if d.Code == code {
			return true
		}
	}
	return false
}
