// Package features derives geometric descriptors from the road of a test case.
package features

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// Dimensions is the length of Vector.Slice.
const Dimensions = 8

// Vector holds the descriptors of a single road. Turn angles are in radians.
type Vector struct {
	// PathLength is the summed length of consecutive road segments.
	PathLength float64 `json:"pathLength"`
	// TotalDistance is the straight-line displacement from first to last point.
	TotalDistance float64 `json:"totalDistance"`
	// EnclosedArea is the shoelace area of the road closed into a polygon.
	EnclosedArea float64 `json:"enclosedArea"`
	// SafetyMargin is the sum of absolute heading changes. Higher means more
	// abrupt manoeuvres, so it acts as an inverse safety signal.
	SafetyMargin float64 `json:"safetyMargin"`

	MaxTurn  float64 `json:"maxTurn"`
	MeanTurn float64 `json:"meanTurn"`
	StdTurn  float64 `json:"stdTurn"`

	// RoadSafety is the area between the road and its simplification through
	// the inflection points.
	RoadSafety float64 `json:"roadSafety"`
}

// Slice returns the vector in a fixed order for distance computations.
func (v Vector) Slice() []float64 {
	return []float64{
		v.PathLength, v.TotalDistance, v.EnclosedArea, v.SafetyMargin,
		v.MaxTurn, v.MeanTurn, v.StdTurn, v.RoadSafety,
	}
}

// Extract computes the feature vector of a test case.
func Extract(tc testsuite.TestCase) (Vector, error) {
	if len(tc.RoadPoints) < testsuite.MinRoadPoints {
		return Vector{}, &testsuite.InvalidTestCaseError{
			TestID: tc.ID,
			Reason: "fewer than 2 road points",
		}
	}

	road := LineString(tc.RoadPoints)
	turns := Turns(road)

	v := Vector{
		PathLength:    planar.Length(road),
		TotalDistance: planar.Distance(road[0], road[len(road)-1]),
		EnclosedArea:  shoelace(road),
		RoadSafety:    roadSafety(road),
	}

	if len(turns) > 0 {
		for _, a := range turns {
			v.SafetyMargin += a
			v.MaxTurn = math.Max(v.MaxTurn, a)
		}
		v.MeanTurn = v.SafetyMargin / float64(len(turns))
		variance := 0.0
		for _, a := range turns {
			d := a - v.MeanTurn
			variance += d * d
		}
		v.StdTurn = math.Sqrt(variance / float64(len(turns)))
	}

	return v, nil
}

// ExtractAll computes the vectors of every test in upload order.
func ExtractAll(suite *testsuite.TestSuite) ([]Vector, error) {
	vectors := make([]Vector, len(suite.Tests))
	for i, tc := range suite.Tests {
		v, err := Extract(tc)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// LineString converts road points, already in sequence order, to a planar line.
func LineString(points []testsuite.RoadPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// Turns returns the absolute heading change at every interior vertex, in
// [0, π]. A vertex adjacent to a zero-length segment has no heading change.
func Turns(road orb.LineString) []float64 {
	if len(road) < 3 {
		return nil
	}
	turns := make([]float64, 0, len(road)-2)
	for i := 1; i < len(road)-1; i++ {
		turns = append(turns, turnAt(road, i))
	}
	return turns
}

func turnAt(road orb.LineString, i int) float64 {
	dx1, dy1 := road[i][0]-road[i-1][0], road[i][1]-road[i-1][1]
	dx2, dy2 := road[i+1][0]-road[i][0], road[i+1][1]-road[i][1]

	len1 := math.Hypot(dx1, dy1)
	len2 := math.Hypot(dx2, dy2)
	if len1 == 0 || len2 == 0 {
		return 0
	}

	cos := (dx1*dx2 + dy1*dy2) / (len1 * len2)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// shoelace is the absolute area of the points closed into a polygon.
func shoelace(points orb.LineString) float64 {
	if len(points) < 3 {
		return 0
	}
	ring := make(orb.Ring, len(points), len(points)+1)
	copy(ring, points)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return math.Abs(planar.Area(ring))
}

// roadSafety sums, for each stretch between inflection points, the area
// enclosed by the road and the straight chord joining the stretch's ends.
func roadSafety(road orb.LineString) float64 {
	if len(road) < 3 {
		return 0
	}
	vertices := inflections(road)
	total := 0.0
	for i := 0; i < len(vertices)-1; i++ {
		total += shoelace(road[vertices[i] : vertices[i+1]+1])
	}
	return total
}

// inflections returns the indices where the turn direction flips sign,
// plus the first and last index. Straight vertices keep the previous sign.
func inflections(road orb.LineString) []int {
	n := len(road)
	vertices := []int{0}

	prev := 0.0
	for i := 1; i < n-1; i++ {
		cross := (road[i][0]-road[i-1][0])*(road[i+1][1]-road[i][1]) -
			(road[i][1]-road[i-1][1])*(road[i+1][0]-road[i][0])
		if cross == 0 {
			continue
		}
		if prev != 0 && (cross > 0) != (prev > 0) {
			vertices = append(vertices, i)
		}
		prev = cross
	}

	return append(vertices, n-1)
}
