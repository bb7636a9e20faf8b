package testsuite

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedSuite(t *testing.T) {
	suite, err := Load("suite_01", "")
	require.NoError(t, err)

	assert.Equal(t, "suite_01", suite.ID)
	assert.Equal(t, "1", suite.Version)
	assert.Equal(t, "euclidean-outlier-first", suite.Strategy)
	assert.Equal(t, []string{"TC_001", "TC_002"}, suite.TestIDs())
	assert.Equal(t, 6, suite.TotalCost())
}

func TestLoadEmbeddedSuiteRoads(t *testing.T) {
	suite, err := Load("suite_02", "")
	require.NoError(t, err)
	require.Len(t, suite.Tests, 12)

	first := suite.Tests[0]
	assert.Equal(t, "TC_000", first.ID)
	assert.Equal(t, RoadPoint{SequenceNumber: 0, X: 0, Y: 0}, first.RoadPoints[0])
	assert.Equal(t, 10, first.RoadPoints[1].SequenceNumber)

	assert.Equal(t, 83, suite.TotalCost())
}

func TestLoadNonexistentSuite(t *testing.T) {
	_, err := Load("nonexistent-suite", "")
	assert.Error(t, err)
}

func TestListEmbeddedSuites(t *testing.T) {
	names, err := List("")
	require.NoError(t, err)
	assert.Contains(t, names, "suite_01")
	assert.Contains(t, names, "suite_02")
}

func TestLoadExternalSuiteDefaults(t *testing.T) {
	dir := t.TempDir()
	suiteDir := filepath.Join(dir, "custom")
	require.NoError(t, os.MkdirAll(suiteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(suiteDir, "config.yaml"), []byte("name: custom\n"), 0o644))
	// Points deliberately out of order: loading sorts them by sequence number.
	roads := "TestID,Sequence,X,Y\nA,5,10,0\nA,1,0,0\nB,0,0,0\nB,1,3,4\n"
	require.NoError(t, os.WriteFile(filepath.Join(suiteDir, "roads.csv"), []byte(roads), 0o644))

	suite, err := Load("custom", dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultStrategy, suite.Strategy)
	assert.Equal(t, "roads.csv", suite.RoadsFile)
	assert.Equal(t, []string{"A", "B"}, suite.TestIDs())
	assert.Equal(t, 1, suite.Tests[0].RoadPoints[0].SequenceNumber)

	names, err := List(dir)
	require.NoError(t, err)
	assert.Contains(t, names, "custom")
}

func TestLoadExternalSuiteMissingColumn(t *testing.T) {
	dir := t.TempDir()
	suiteDir := filepath.Join(dir, "broken")
	require.NoError(t, os.MkdirAll(suiteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(suiteDir, "config.yaml"), []byte("name: broken\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(suiteDir, "roads.csv"), []byte("TestID,X,Y\nA,0,0\n"), 0o644))

	_, err := Load("broken", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required CSV column: Sequence")
}

func TestLoadExternalSuiteNonFiniteCoordinates(t *testing.T) {
	tests := []struct {
		name  string
		roads string
	}{
		{"nan", "TestID,Sequence,X,Y\nA,0,0,0\nA,1,NaN,1\nB,0,0,0\nB,1,1,1\n"},
		{"infinity", "TestID,Sequence,X,Y\nA,0,0,0\nA,1,1,+Inf\nB,0,0,0\nB,1,1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			suiteDir := filepath.Join(dir, "bad")
			require.NoError(t, os.MkdirAll(suiteDir, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(suiteDir, "config.yaml"), []byte("name: bad\n"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(suiteDir, "roads.csv"), []byte(tt.roads), 0o644))

			_, err := Load("bad", dir)
			var invalid *InvalidTestCaseError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, "A", invalid.TestID)
		})
	}
}

func TestNewTestCase(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		points  []RoadPoint
		wantErr string
	}{
		{"valid", "T1", []RoadPoint{{0, 0, 0}, {1, 1, 1}}, ""},
		{"non contiguous", "T1", []RoadPoint{{0, 0, 0}, {7, 1, 1}}, ""},
		{"single point", "T1", []RoadPoint{{0, 0, 0}}, "need at least 2"},
		{"no points", "T1", nil, "need at least 2"},
		{"duplicate sequence", "T1", []RoadPoint{{3, 0, 0}, {3, 1, 1}}, "duplicate sequence number 3"},
		{"negative sequence", "T1", []RoadPoint{{-1, 0, 0}, {3, 1, 1}}, "negative sequence number"},
		{"empty id", "", []RoadPoint{{0, 0, 0}, {1, 1, 1}}, "empty test id"},
		{"nan x", "T1", []RoadPoint{{0, math.NaN(), 0}, {1, 1, 1}}, "non-finite"},
		{"infinite y", "T1", []RoadPoint{{0, 0, 0}, {1, 1, math.Inf(-1)}}, "non-finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewTestCase(tt.id, tt.points)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Len(t, tc.RoadPoints, len(tt.points))
				return
			}
			var invalid *InvalidTestCaseError
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewTestSuiteDuplicateIDs(t *testing.T) {
	road := []RoadPoint{{0, 0, 0}, {1, 1, 0}}
	_, err := NewTestSuite("s", []TestCase{{ID: "A", RoadPoints: road}, {ID: "A", RoadPoints: road}})

	var invalid *InvalidTestCaseError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "A", invalid.TestID)
}

func TestValidate(t *testing.T) {
	empty := &TestSuite{ID: "empty"}
	var emptyErr *EmptySuiteError
	assert.True(t, errors.As(empty.Validate(), &emptyErr))

	unsorted := &TestSuite{ID: "s", Tests: []TestCase{{ID: "A", RoadPoints: []RoadPoint{{2, 0, 0}, {1, 1, 0}}}}}
	var invalid *InvalidTestCaseError
	assert.True(t, errors.As(unsorted.Validate(), &invalid))

	nan := &TestSuite{ID: "s", Tests: []TestCase{{ID: "A", RoadPoints: []RoadPoint{{0, 0, 0}, {1, math.NaN(), 0}}}}}
	assert.True(t, errors.As(nan.Validate(), &invalid))

	suite, err := Load("suite_01", "")
	require.NoError(t, err)
	assert.NoError(t, suite.Validate())
}

func TestDecodeUpload(t *testing.T) {
	body := `{
		"testSuiteId": "suite_07",
		"tests": [
			{"testId": "TC_001", "roadPoints": [{"sequenceNumber": 1, "x": 5, "y": 0}, {"sequenceNumber": 0, "x": 0, "y": 0}]},
			{"testId": "TC_002", "roadPoints": [{"sequenceNumber": 0, "x": 0, "y": 0}, {"sequenceNumber": 1, "x": 0, "y": 9}]}
		]
	}`

	suite, err := DecodeUpload(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "suite_07", suite.ID)
	assert.Equal(t, []string{"TC_001", "TC_002"}, suite.TestIDs())
	assert.Equal(t, 0, suite.Tests[0].RoadPoints[0].SequenceNumber)
}

func TestDecodeUploadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing suite id", `{"tests": []}`},
		{"unknown field", `{"testSuiteId": "s", "tests": [], "extra": 1}`},
		{"empty suite", `{"testSuiteId": "s", "tests": []}`},
		{"short road", `{"testSuiteId": "s", "tests": [{"testId": "A", "roadPoints": [{"sequenceNumber": 0, "x": 0, "y": 0}]}]}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUpload(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDecodeDumpPartitions(t *testing.T) {
	body := `[
		{"road_points": [{"x": 0, "y": 0}, {"x": 1, "y": 0}]},
		{"road_points": [{"x": 0, "y": 0}, {"x": 2, "y": 0}]},
		{"road_points": [{"x": 0, "y": 0}, {"x": 3, "y": 0}]}
	]`

	suites, err := DecodeDump(strings.NewReader(body), 2)
	require.NoError(t, err)
	require.Len(t, suites, 2)

	assert.Equal(t, "suite_00", suites[0].ID)
	assert.Equal(t, []string{"TC_000", "TC_001"}, suites[0].TestIDs())
	assert.Equal(t, "suite_01", suites[1].ID)
	assert.Equal(t, []string{"TC_000"}, suites[1].TestIDs())
	assert.Equal(t, 1, suites[1].Tests[0].RoadPoints[1].SequenceNumber)
}

func TestPartitionDefaultsSize(t *testing.T) {
	roads := make([][]RoadPoint, 25)
	for i := range roads {
		roads[i] = []RoadPoint{{0, 0, 0}, {1, float64(i + 1), 0}}
	}

	suites, err := Partition(roads, 0)
	require.NoError(t, err)
	require.Len(t, suites, 3)
	assert.Len(t, suites[2].Tests, 5)
}
