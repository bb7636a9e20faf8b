// Package testutil provides shared test helpers.
package testutil

import (
	"math"

	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// Road builds a test case whose points get sequence numbers 0, 1, 2, ...
func Road(id string, points ...[2]float64) testsuite.TestCase {
	road := make([]testsuite.RoadPoint, len(points))
	for i, p := range points {
		road[i] = testsuite.RoadPoint{SequenceNumber: i, X: p[0], Y: p[1]}
	}
	return testsuite.TestCase{ID: id, RoadPoints: road}
}

// Straight builds a road along the x axis with the given length and number
// of points.
func Straight(id string, length float64, points int) testsuite.TestCase {
	pts := make([][2]float64, points)
	for i := range pts {
		pts[i] = [2]float64{length * float64(i) / float64(points-1), 0}
	}
	return Road(id, pts...)
}

// Arc builds a road of 5-unit segments turning by the same heading change,
// in radians, at every interior vertex.
func Arc(id string, vertices int, turn float64) testsuite.TestCase {
	points := make([][2]float64, vertices)
	heading := 0.0
	for i := 1; i < vertices; i++ {
		points[i] = [2]float64{
			points[i-1][0] + 5*math.Cos(heading),
			points[i-1][1] + 5*math.Sin(heading),
		}
		heading += turn
	}
	return Road(id, points...)
}

// Suite wraps test cases in a suite without validation, so tests can also
// build malformed suites.
func Suite(id string, tests ...testsuite.TestCase) *testsuite.TestSuite {
	return &testsuite.TestSuite{ID: id, Tests: tests}
}

// SmokeSuite is the two-road suite_01 fixture: TC_001 is a short,
// near-straight road and TC_002 a longer road with a sharp right turn.
func SmokeSuite() *testsuite.TestSuite {
	return Suite("suite_01",
		Road("TC_001", [2]float64{0, 0}, [2]float64{10, 0.1}, [2]float64{20, 0}),
		Road("TC_002", [2]float64{0, 0}, [2]float64{20, 0}, [2]float64{20, -20}),
	)
}
