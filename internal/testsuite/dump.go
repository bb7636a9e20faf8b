package testsuite

import (
	"encoding/json"
	"fmt"
	"io"
)

// DefaultTestsPerSuite is how many dump entries make up one suite.
const DefaultTestsPerSuite = 10

// dumpEntry is one test case of a competition data dump. Only the road is
// read; the remaining document fields are ignored.
type dumpEntry struct {
	RoadPoints []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"road_points"`
}

// DecodeDump reads a competition data dump and partitions it into suites.
func DecodeDump(r io.Reader, testsPerSuite int) ([]*TestSuite, error) {
	var entries []dumpEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode data dump: %w", err)
	}

	roads := make([][]RoadPoint, len(entries))
	for i, e := range entries {
		road := make([]RoadPoint, len(e.RoadPoints))
		for seq, p := range e.RoadPoints {
			road[seq] = RoadPoint{SequenceNumber: seq, X: p.X, Y: p.Y}
		}
		roads[i] = road
	}
	return Partition(roads, testsPerSuite)
}

// Partition groups roads into suites of testsPerSuite tests, named suite_00,
// suite_01, ... with test IDs TC_000, TC_001, ... restarting in every suite.
// The last suite holds the remainder.
func Partition(roads [][]RoadPoint, testsPerSuite int) ([]*TestSuite, error) {
	if testsPerSuite <= 0 {
		testsPerSuite = DefaultTestsPerSuite
	}

	var suites []*TestSuite
	for start := 0; start < len(roads); start += testsPerSuite {
		end := min(start+testsPerSuite, len(roads))

		tests := make([]TestCase, 0, end-start)
		for i, road := range roads[start:end] {
			tests = append(tests, TestCase{ID: fmt.Sprintf("TC_%03d", i), RoadPoints: road})
		}

		id := fmt.Sprintf("suite_%02d", len(suites))
		suite, err := NewTestSuite(id, tests)
		if err != nil {
			return nil, fmt.Errorf("suite %s: %w", id, err)
		}
		suites = append(suites, suite)
	}
	return suites, nil
}
