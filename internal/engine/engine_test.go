package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sdc-prioritizer/internal/strategy"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
	"github.com/giantswarm/sdc-prioritizer/internal/testutil"
)

func TestPrioritizeSmokeSuite(t *testing.T) {
	ranking, err := Prioritize(testutil.SmokeSuite(), strategy.EuclideanOutlierFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"TC_002", "TC_001"}, ranking.Order)
}

func TestEvaluateSmokeSuite(t *testing.T) {
	report, err := Evaluate(testutil.SmokeSuite(), strategy.EuclideanOutlierFirst, nil)
	require.NoError(t, err)

	assert.Equal(t, strategy.EuclideanOutlierFirst, report.Strategy)
	assert.Equal(t, "suite_01", report.SuiteID)
	assert.Equal(t, 2, report.TestCount)
	assert.Equal(t, 1, report.FailuresDetected)
	assert.InDelta(t, 0.75, report.Score, 1e-12)
	assert.Nil(t, report.Budget)
}

func TestEvaluateCarriesRankingDegradations(t *testing.T) {
	report, err := Evaluate(testutil.SmokeSuite(), strategy.MahalanobisOutlierFirst, nil)
	require.NoError(t, err)

	require.NotEmpty(t, report.Degradations)
	assert.Equal(t, testsuite.DegradationMahalanobisFallback, report.Degradations[0].Code)
	assert.InDelta(t, 0.75, report.Score, 1e-12)
}

func TestEvaluateZeroBudget(t *testing.T) {
	budget := 0
	report, err := Evaluate(testutil.SmokeSuite(), strategy.LongestFirst, &budget)
	require.NoError(t, err)

	assert.Zero(t, report.Executed)
	assert.Zero(t, report.FailuresDetected)
	assert.Zero(t, report.Score)
	assert.Equal(t, 2, report.TestCount)
}

func TestEntryPointErrors(t *testing.T) {
	var unknown *strategy.UnknownStrategyError
	_, err := Prioritize(testutil.SmokeSuite(), "fastest-first")
	assert.True(t, errors.As(err, &unknown))
	_, err = Evaluate(testutil.SmokeSuite(), "fastest-first", nil)
	assert.True(t, errors.As(err, &unknown))

	var empty *testsuite.EmptySuiteError
	_, err = Evaluate(testutil.Suite("empty"), strategy.LongestFirst, nil)
	assert.True(t, errors.As(err, &empty))

	var invalid *testsuite.InvalidTestCaseError
	_, err = Prioritize(testutil.Suite("bad", testutil.Road("x", [2]float64{0, 0})), strategy.LongestFirst)
	assert.True(t, errors.As(err, &invalid))
}

func TestEvaluateEveryStrategyWithinBounds(t *testing.T) {
	suite, err := testsuite.Load("suite_02", "")
	require.NoError(t, err)

	for _, name := range strategy.Names() {
		t.Run(name, func(t *testing.T) {
			report, err := Evaluate(suite, name, nil)
			require.NoError(t, err)
			assert.Equal(t, len(suite.Tests), report.Executed)
			assert.GreaterOrEqual(t, report.Score, 0.0)
			assert.LessOrEqual(t, report.Score, 1.0)
			if report.FailuresDetected == 0 {
				assert.Zero(t, report.Score)
			}
		})
	}
}
