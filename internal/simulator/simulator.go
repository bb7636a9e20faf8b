// Package simulator models test execution without a driving simulator. The
// outcome of a test depends only on its road and the suite it belongs to, so
// repeated and partial runs are reproducible.
package simulator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/giantswarm/sdc-prioritizer/internal/features"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// MaxSafeTurn is the largest heading change, in radians, the simulated
// vehicle can follow at a single vertex.
const MaxSafeTurn = math.Pi / 45

// SafetyMarginSigmas is how many standard deviations above the suite mean a
// safety margin has to be for the test to fail.
const SafetyMarginSigmas = 2.0

// Stats describes the safety margin distribution of a suite.
type Stats struct {
	MeanSafetyMargin float64
	StdSafetyMargin  float64
}

// NewStats computes the population mean and standard deviation of the
// safety margins of vectors.
func NewStats(vectors []features.Vector) Stats {
	if len(vectors) == 0 {
		return Stats{}
	}
	margins := make([]float64, len(vectors))
	for i, v := range vectors {
		margins[i] = v.SafetyMargin
	}
	mean, std := stat.PopMeanStdDev(margins, nil)
	return Stats{MeanSafetyMargin: mean, StdSafetyMargin: std}
}

// Threshold is the safety margin above which a test is an anomaly.
func (s Stats) Threshold() float64 {
	return s.MeanSafetyMargin + SafetyMarginSigmas*s.StdSafetyMargin
}

// Outcome is the simulated result of running one test.
type Outcome struct {
	Failed bool `json:"failed"`
	// Cost is the number of road points driven before the run ended.
	Cost int `json:"cost"`
}

// Simulate runs tc. v must be the feature vector of tc.
//
// The vehicle leaves the road at the first vertex whose heading change
// exceeds MaxSafeTurn, which fails the test and ends the run there. A road it
// can follow to the end still fails when its safety margin is anomalous for
// the suite.
func Simulate(tc testsuite.TestCase, v features.Vector, stats Stats) Outcome {
	road := features.LineString(tc.RoadPoints)
	for i, turn := range features.Turns(road) {
		if turn > MaxSafeTurn {
			// Turns[i] is the heading change at vertex i+1.
			return Outcome{Failed: true, Cost: i + 2}
		}
	}
	return Outcome{
		Failed: v.SafetyMargin > stats.Threshold(),
		Cost:   len(tc.RoadPoints),
	}
}
