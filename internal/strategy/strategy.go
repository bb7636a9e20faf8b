// Package strategy holds the fixed catalog of test prioritization strategies.
package strategy

import (
	"math"
	"sort"
	"strings"

	"github.com/giantswarm/sdc-prioritizer/internal/features"
	"github.com/giantswarm/sdc-prioritizer/internal/outlier"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// Strategy names.
const (
	LongestFirst            = "longest-first"
	TotalDistanceFirst      = "total-distance-first"
	EuclideanOutlierFirst   = "euclidean-outlier-first"
	MahalanobisOutlierFirst = "mahalanobis-outlier-first"
	LessSafeFirst           = "less-safe-first"
)

// Strategy ranks the tests of a suite, most likely to reveal a defect first.
// Implementations must be pure: the same suite always yields the same ranking.
type Strategy interface {
	// Name returns the registered strategy identifier.
	Name() string

	// Rank returns a permutation of the suite's test IDs.
	Rank(suite *testsuite.TestSuite) (*Ranking, error)
}

// Ranking is the ordering produced by a strategy.
type Ranking struct {
	Strategy string   `json:"strategy"`
	Order    []string `json:"orderedTests"`
	// Scores holds the ranking score of Order[i].
	Scores       []float64               `json:"scores"`
	Degradations []testsuite.Degradation `json:"degradations,omitempty"`
}

// catalog maps names to strategies. Adding a strategy means adding an entry.
var catalog = map[string]Strategy{
	LongestFirst: featureStrategy{
		name: LongestFirst,
		key:  func(v features.Vector) float64 { return v.PathLength },
	},
	TotalDistanceFirst: featureStrategy{
		name: TotalDistanceFirst,
		key:  func(v features.Vector) float64 { return v.TotalDistance },
	},
	EuclideanOutlierFirst: outlierStrategy{
		name:   EuclideanOutlierFirst,
		metric: outlier.Euclidean,
	},
	MahalanobisOutlierFirst: outlierStrategy{
		name:   MahalanobisOutlierFirst,
		metric: outlier.Mahalanobis,
	},
	// The inverse of the safety margin, so the lowest margin ranks first.
	// SafetyMargin grows with abrupt turns, so this runs the smoothest roads
	// first and is the baseline the outlier strategies are compared against.
	LessSafeFirst: featureStrategy{
		name: LessSafeFirst,
		key:  func(v features.Vector) float64 { return -v.SafetyMargin },
	},
}

// Get returns the strategy registered under name.
func Get(name string) (Strategy, error) {
	s, ok := catalog[name]
	if !ok {
		return nil, &UnknownStrategyError{Name: name, Available: Names()}
	}
	return s, nil
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownStrategyError is returned when an unregistered strategy is requested.
type UnknownStrategyError struct {
	Name      string
	Available []string
}

func (e *UnknownStrategyError) Error() string {
	return "unknown strategy '" + e.Name + "'. Available strategies: " + strings.Join(e.Available, ", ")
}

// scoreQuantum is the relative precision scores are compared at, so values
// that differ only by floating point noise tie and fall back to upload order.
const scoreQuantum = 1e9

// rankDescending orders indices by keys[0] descending, then keys[1] and so on,
// then by index. Every key slice has one entry per test.
func rankDescending(n int, keys ...[]float64) []int {
	quantized := make([][]float64, len(keys))
	for k, key := range keys {
		quantized[k] = quantize(key)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, key := range quantized {
			if key[idx[a]] != key[idx[b]] {
				return key[idx[a]] > key[idx[b]]
			}
		}
		return false
	})
	return idx
}

func quantize(values []float64) []float64 {
	scale := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	out := make([]float64, len(values))
	if scale == 0 {
		return out
	}
	for i, v := range values {
		out[i] = math.Round(v / scale * scoreQuantum)
	}
	return out
}

func newRanking(name string, suite *testsuite.TestSuite, order []int, scores []float64) *Ranking {
	r := &Ranking{
		Strategy: name,
		Order:    make([]string, len(order)),
		Scores:   make([]float64, len(order)),
	}
	for rank, i := range order {
		r.Order[rank] = suite.Tests[i].ID
		r.Scores[rank] = scores[i]
	}
	return r
}

// featureStrategy ranks by a single feature, highest first.
type featureStrategy struct {
	name string
	key  func(features.Vector) float64
}

func (s featureStrategy) Name() string { return s.name }

func (s featureStrategy) Rank(suite *testsuite.TestSuite) (*Ranking, error) {
	vectors, err := vectorsOf(suite)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		scores[i] = s.key(v)
	}
	return newRanking(s.name, suite, rankDescending(len(scores), scores), scores), nil
}

// outlierStrategy ranks the most anomalous tests first. Equal scores, which
// every two-test suite has, go to the longer road.
type outlierStrategy struct {
	name   string
	metric outlier.Metric
}

func (s outlierStrategy) Name() string { return s.name }

func (s outlierStrategy) Rank(suite *testsuite.TestSuite) (*Ranking, error) {
	vectors, err := vectorsOf(suite)
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, len(vectors))
	lengths := make([]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = v.Slice()
		lengths[i] = v.PathLength
	}

	res, err := outlier.Score(rows, s.metric)
	if err != nil {
		return nil, err
	}

	r := newRanking(s.name, suite, rankDescending(len(rows), res.Scores, lengths), res.Scores)
	if res.Fallback {
		r.Degradations = append(r.Degradations, testsuite.Degradation{
			Code:   testsuite.DegradationMahalanobisFallback,
			Detail: res.Reason,
		})
	}
	return r, nil
}

func vectorsOf(suite *testsuite.TestSuite) ([]features.Vector, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return features.ExtractAll(suite)
}
