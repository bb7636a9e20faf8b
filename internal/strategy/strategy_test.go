package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
	"github.com/giantswarm/sdc-prioritizer/internal/testutil"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		wantErr  bool
	}{
		{"longest first", LongestFirst, false},
		{"total distance first", TotalDistanceFirst, false},
		{"euclidean outlier", EuclideanOutlierFirst, false},
		{"mahalanobis outlier", MahalanobisOutlierFirst, false},
		{"less safe first", LessSafeFirst, false},
		{"unknown strategy", "random-first", true},
		{"empty name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Get(tt.strategy)
			if tt.wantErr {
				var unknown *UnknownStrategyError
				require.True(t, errors.As(err, &unknown))
				assert.Equal(t, tt.strategy, unknown.Name)
				assert.Contains(t, err.Error(), "longest-first")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, s.Name())
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		EuclideanOutlierFirst,
		LessSafeFirst,
		LongestFirst,
		MahalanobisOutlierFirst,
		TotalDistanceFirst,
	}, Names())
}

func TestEveryStrategyReturnsPermutation(t *testing.T) {
	suite02, err := testsuite.Load("suite_02", "")
	require.NoError(t, err)

	suites := map[string]*testsuite.TestSuite{
		"smoke":  testutil.SmokeSuite(),
		"mixed":  suite02,
		"single": testutil.Suite("one", testutil.Straight("only", 10, 3)),
	}

	for suiteName, suite := range suites {
		for _, name := range Names() {
			t.Run(suiteName+"/"+name, func(t *testing.T) {
				s, err := Get(name)
				require.NoError(t, err)

				r, err := s.Rank(suite)
				require.NoError(t, err)

				got := append([]string(nil), r.Order...)
				want := suite.TestIDs()
				sort.Strings(got)
				sort.Strings(want)
				assert.Empty(t, cmp.Diff(want, got))
				assert.Len(t, r.Scores, len(suite.Tests))
				assert.Equal(t, name, r.Strategy)
			})
		}
	}
}

func TestLongestFirstStableTies(t *testing.T) {
	suite := testutil.Suite("ties",
		testutil.Straight("A", 10, 2),
		testutil.Straight("B", 15, 4),
		testutil.Road("C", [2]float64{0, 0}, [2]float64{6, 8}),
	)

	r, err := catalog[LongestFirst].Rank(suite)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"B", "A", "C"}, r.Order); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
	assert.InDeltaSlice(t, []float64{15, 10, 10}, r.Scores, 1e-12)
}

func TestTotalDistanceFirst(t *testing.T) {
	suite := testutil.Suite("displacement",
		// Long road that comes back close to its start.
		testutil.Road("loop", [2]float64{0, 0}, [2]float64{50, 0}, [2]float64{50, 50}, [2]float64{0, 10}),
		testutil.Straight("line", 30, 3),
		testutil.Straight("short", 5, 2),
	)

	r, err := catalog[TotalDistanceFirst].Rank(suite)
	require.NoError(t, err)
	assert.Equal(t, []string{"line", "loop", "short"}, r.Order)

	longest, err := catalog[LongestFirst].Rank(suite)
	require.NoError(t, err)
	assert.Equal(t, []string{"loop", "line", "short"}, longest.Order)
}

func TestLessSafeFirstRanksLowestMarginFirst(t *testing.T) {
	suite := testutil.Suite("margins",
		testutil.Road("zigzag", [2]float64{0, 0}, [2]float64{10, 0}, [2]float64{10, 10}, [2]float64{20, 10}),
		testutil.Road("bend", [2]float64{0, 0}, [2]float64{10, 0}, [2]float64{20, 1}),
		testutil.Straight("straight-a", 20, 3),
		testutil.Straight("straight-b", 40, 3),
	)

	r, err := catalog[LessSafeFirst].Rank(suite)
	require.NoError(t, err)
	assert.Equal(t, []string{"straight-a", "straight-b", "bend", "zigzag"}, r.Order)
}

func TestEuclideanOutlierFirstSmokeSuite(t *testing.T) {
	s, err := Get(EuclideanOutlierFirst)
	require.NoError(t, err)

	r, err := s.Rank(testutil.SmokeSuite())
	require.NoError(t, err)
	assert.Equal(t, []string{"TC_002", "TC_001"}, r.Order)
	assert.Empty(t, r.Degradations)
}

func TestEuclideanOutlierFirstPrefersAnomaly(t *testing.T) {
	suite := testutil.Suite("anomaly",
		testutil.Straight("a", 20, 3),
		testutil.Straight("b", 21, 3),
		testutil.Road("odd", [2]float64{0, 0}, [2]float64{5, 0}, [2]float64{5, 30}, [2]float64{-20, 30}),
		testutil.Straight("c", 19, 3),
	)

	r, err := catalog[EuclideanOutlierFirst].Rank(suite)
	require.NoError(t, err)
	assert.Equal(t, "odd", r.Order[0])
}

func TestMahalanobisFallsBackForSingleTest(t *testing.T) {
	r, err := catalog[MahalanobisOutlierFirst].Rank(testutil.Suite("one", testutil.Straight("only", 10, 3)))
	require.NoError(t, err)

	assert.Equal(t, []string{"only"}, r.Order)
	require.Len(t, r.Degradations, 1)
	assert.Equal(t, testsuite.DegradationMahalanobisFallback, r.Degradations[0].Code)
}

func TestMahalanobisEqualLengthRoads(t *testing.T) {
	// Equal vertex counts make the turn sum a multiple of the mean turn.
	tests := make([]testsuite.TestCase, 12)
	for i := range tests {
		tests[i] = testutil.Arc(fmt.Sprintf("TC_%03d", i), 12, 0.01+0.002*float64(i))
	}
	suite := testutil.Suite("arcs", tests...)

	r, err := catalog[MahalanobisOutlierFirst].Rank(suite)
	require.NoError(t, err)

	assert.Empty(t, r.Degradations)
	assert.ElementsMatch(t, suite.TestIDs(), r.Order)
	for _, s := range r.Scores {
		assert.False(t, math.IsNaN(s))
	}
}

func TestMahalanobisMatchesEuclideanOnFallback(t *testing.T) {
	suite := testutil.SmokeSuite()

	m, err := catalog[MahalanobisOutlierFirst].Rank(suite)
	require.NoError(t, err)
	e, err := catalog[EuclideanOutlierFirst].Rank(suite)
	require.NoError(t, err)

	assert.Equal(t, e.Order, m.Order)
	assert.Equal(t, e.Scores, m.Scores)
	assert.NotEmpty(t, m.Degradations)
}

func TestRankRejectsBadSuites(t *testing.T) {
	var empty *testsuite.EmptySuiteError
	var invalid *testsuite.InvalidTestCaseError

	for _, name := range Names() {
		s, err := Get(name)
		require.NoError(t, err)

		_, err = s.Rank(testutil.Suite("empty"))
		assert.True(t, errors.As(err, &empty), name)

		_, err = s.Rank(testutil.Suite("short", testutil.Road("x", [2]float64{1, 1})))
		assert.True(t, errors.As(err, &invalid), name)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	suite, err := testsuite.Load("suite_02", "")
	require.NoError(t, err)

	for _, name := range Names() {
		s, err := Get(name)
		require.NoError(t, err)

		first, err := s.Rank(suite)
		require.NoError(t, err)
		second, err := s.Rank(suite)
		require.NoError(t, err)

		assert.Equal(t, first, second, name)
	}
}

func TestRankDescendingFallsThroughKeys(t *testing.T) {
	order := rankDescending(4,
		[]float64{1, 2, 2, 1},
		[]float64{0, 1, 3, 0},
	)
	assert.Equal(t, []int{2, 1, 0, 3}, order)
}
