package testsuite

import "time"

// RoadPoint is a single vertex of a road. SequenceNumber orders the points
// within a test case; numbers must be unique but need not be contiguous.
type RoadPoint struct {
	SequenceNumber int     `json:"sequenceNumber"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
}

// TestCase is a single simulated driving test: an identifier and the ordered
// road it drives along. Values returned by NewTestCase are never mutated.
type TestCase struct {
	ID         string      `json:"testId"`
	RoadPoints []RoadPoint `json:"roadPoints"`
}

// TestSuite is an ordered collection of test cases. The order of Tests is the
// upload order, which strategies use to break ties.
type TestSuite struct {
	ID          string     `json:"testSuiteId" yaml:"-"`
	Name        string     `json:"-" yaml:"name"`
	Description string     `json:"-" yaml:"description"`
	Version     string     `json:"-" yaml:"version"`
	Strategy    string     `json:"-" yaml:"strategy"` // default strategy, e.g. "longest-first"
	RoadsFile   string     `json:"-" yaml:"roads_file"`
	Tests       []TestCase `json:"tests" yaml:"-"` // loaded separately from CSV
}

// TestIDs returns the test identifiers in upload order.
func (s *TestSuite) TestIDs() []string {
	ids := make([]string, len(s.Tests))
	for i, tc := range s.Tests {
		ids[i] = tc.ID
	}
	return ids
}

// Lookup returns the test case with the given ID.
func (s *TestSuite) Lookup(id string) (TestCase, bool) {
	for _, tc := range s.Tests {
		if tc.ID == id {
			return tc, true
		}
	}
	return TestCase{}, false
}

// TotalCost is the number of road points in the whole suite.
func (s *TestSuite) TotalCost() int {
	total := 0
	for _, tc := range s.Tests {
		total += len(tc.RoadPoints)
	}
	return total
}

// Upload records when a suite entered the history store.
type Upload struct {
	SuiteID   string    `json:"testSuiteId"`
	TestCount int       `json:"testCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Degradation annotates a successful result that was computed in a reduced
// way, such as a metric fallback or a budget that stopped execution early.
type Degradation struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

const (
	DegradationMahalanobisFallback = "mahalanobis-fallback"
	DegradationNoFaults            = "no-faults-detected"
	DegradationBudgetExhausted     = "budget-exhausted"
)
