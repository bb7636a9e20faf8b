package testsuite

import (
	"fmt"
	"math"
	"sort"
)

// MinRoadPoints is the smallest road that defines a path.
const MinRoadPoints = 2

// InvalidTestCaseError is returned for malformed or degenerate road data.
type InvalidTestCaseError struct {
	TestID string
	Reason string
}

func (e *InvalidTestCaseError) Error() string {
	if e.TestID == "" {
		return "invalid test case: " + e.Reason
	}
	return fmt.Sprintf("invalid test case %q: %s", e.TestID, e.Reason)
}

// EmptySuiteError is returned when a suite has no test cases to rank.
type EmptySuiteError struct {
	SuiteID string
}

func (e *EmptySuiteError) Error() string {
	return fmt.Sprintf("test suite %q has no test cases", e.SuiteID)
}

// NewTestCase validates the road and returns a test case whose points are
// sorted by sequence number. The input slice is not modified.
func NewTestCase(id string, points []RoadPoint) (TestCase, error) {
	if id == "" {
		return TestCase{}, &InvalidTestCaseError{Reason: "empty test id"}
	}
	if len(points) < MinRoadPoints {
		return TestCase{}, &InvalidTestCaseError{
			TestID: id,
			Reason: fmt.Sprintf("has %d road points, need at least %d", len(points), MinRoadPoints),
		}
	}

	sorted := make([]RoadPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	for i, p := range sorted {
		if p.SequenceNumber < 0 {
			return TestCase{}, &InvalidTestCaseError{
				TestID: id,
				Reason: fmt.Sprintf("negative sequence number %d", p.SequenceNumber),
			}
		}
		if i > 0 && sorted[i-1].SequenceNumber == p.SequenceNumber {
			return TestCase{}, &InvalidTestCaseError{
				TestID: id,
				Reason: fmt.Sprintf("duplicate sequence number %d", p.SequenceNumber),
			}
		}
		if err := checkFinite(id, p); err != nil {
			return TestCase{}, err
		}
	}

	return TestCase{ID: id, RoadPoints: sorted}, nil
}

// NewTestSuite validates every test case and the uniqueness of test IDs.
func NewTestSuite(id string, tests []TestCase) (*TestSuite, error) {
	suite := &TestSuite{ID: id, Tests: make([]TestCase, 0, len(tests))}
	seen := make(map[string]bool, len(tests))
	for _, tc := range tests {
		valid, err := NewTestCase(tc.ID, tc.RoadPoints)
		if err != nil {
			return nil, err
		}
		if seen[valid.ID] {
			return nil, &InvalidTestCaseError{TestID: valid.ID, Reason: "duplicate test id in suite"}
		}
		seen[valid.ID] = true
		suite.Tests = append(suite.Tests, valid)
	}
	return suite, nil
}

// Validate checks a suite before ranking or evaluation. An empty suite is an
// EmptySuiteError; any malformed test is an InvalidTestCaseError.
func (s *TestSuite) Validate() error {
	if len(s.Tests) == 0 {
		return &EmptySuiteError{SuiteID: s.ID}
	}
	seen := make(map[string]bool, len(s.Tests))
	for _, tc := range s.Tests {
		if tc.ID == "" {
			return &InvalidTestCaseError{Reason: "empty test id"}
		}
		if seen[tc.ID] {
			return &InvalidTestCaseError{TestID: tc.ID, Reason: "duplicate test id in suite"}
		}
		seen[tc.ID] = true
		if len(tc.RoadPoints) < MinRoadPoints {
			return &InvalidTestCaseError{
				TestID: tc.ID,
				Reason: fmt.Sprintf("has %d road points, need at least %d", len(tc.RoadPoints), MinRoadPoints),
			}
		}
		for _, p := range tc.RoadPoints {
			if err := checkFinite(tc.ID, p); err != nil {
				return err
			}
		}
		for i := 1; i < len(tc.RoadPoints); i++ {
			if tc.RoadPoints[i].SequenceNumber <= tc.RoadPoints[i-1].SequenceNumber {
				return &InvalidTestCaseError{
					TestID: tc.ID,
					Reason: fmt.Sprintf("sequence number %d is not increasing", tc.RoadPoints[i].SequenceNumber),
				}
			}
		}
	}
	return nil
}

func checkFinite(id string, p RoadPoint) error {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidTestCaseError{
				TestID: id,
				Reason: fmt.Sprintf("point %d has non-finite coordinates (%v, %v)", p.SequenceNumber, p.X, p.Y),
			}
		}
	}
	return nil
}
