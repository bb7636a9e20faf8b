package testsuite

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultStrategy is used when a suite config does not name one.
const DefaultStrategy = "longest-first"

//go:embed all:testdata
var embeddedSuites embed.FS

// Load loads a test suite by name, searching first in the external directory
// (if provided), then in the embedded test suites.
func Load(name string, externalDir string) (*TestSuite, error) {
	if externalDir != "" {
		dir := filepath.Join(externalDir, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return loadFromFS(os.DirFS(dir), name)
		}
	}

	// embed.FS always uses forward slashes.
	subFS, err := fs.Sub(embeddedSuites, path.Join("testdata", name))
	if err != nil {
		return nil, fmt.Errorf("test suite %q not found: %w", name, err)
	}
	return loadFromFS(subFS, name)
}

// List returns the names of all available test suites.
func List(externalDir string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	entries, err := fs.ReadDir(embeddedSuites, "testdata")
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
				names = append(names, e.Name())
			}
		}
	}

	if externalDir != "" {
		entries, err := os.ReadDir(externalDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() && !seen[e.Name()] {
					names = append(names, e.Name())
				}
			}
		}
	}

	return names, nil
}

func loadFromFS(fsys fs.FS, name string) (*TestSuite, error) {
	configData, err := fs.ReadFile(fsys, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config.yaml for suite %q: %w", name, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(configData, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse config.yaml for suite %q: %w", name, err)
	}

	suite.ID = name
	if suite.Strategy == "" {
		suite.Strategy = DefaultStrategy
	}
	if suite.RoadsFile == "" {
		suite.RoadsFile = "roads.csv"
	}

	tests, err := loadRoadsFromFS(fsys, suite.RoadsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load roads for suite %q: %w", name, err)
	}

	valid, err := NewTestSuite(name, tests)
	if err != nil {
		return nil, fmt.Errorf("suite %q: %w", name, err)
	}
	suite.Tests = valid.Tests

	return &suite, nil
}

// loadRoadsFromFS reads a TestID,Sequence,X,Y CSV. Test order follows the
// first appearance of each TestID.
func loadRoadsFromFS(fsys fs.FS, filename string) ([]TestCase, error) {
	f, err := fsys.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	for _, required := range []string{"TestID", "Sequence", "X", "Y"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required CSV column: %s", required)
		}
	}

	minCols := 0
	for _, idx := range colIndex {
		if idx >= minCols {
			minCols = idx + 1
		}
	}

	var order []string
	points := make(map[string][]RoadPoint)
	for lineNum := 2; ; lineNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", lineNum, err)
		}
		if len(record) < minCols {
			return nil, fmt.Errorf("CSV row %d has %d columns, expected at least %d", lineNum, len(record), minCols)
		}

		id := strings.TrimSpace(record[colIndex["TestID"]])
		seq, err := strconv.Atoi(strings.TrimSpace(record[colIndex["Sequence"]]))
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: invalid sequence: %w", lineNum, err)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(record[colIndex["X"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: invalid x: %w", lineNum, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(record[colIndex["Y"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: invalid y: %w", lineNum, err)
		}

		if _, ok := points[id]; !ok {
			order = append(order, id)
		}
		points[id] = append(points[id], RoadPoint{SequenceNumber: seq, X: x, Y: y})
	}

	tests := make([]TestCase, 0, len(order))
	for _, id := range order {
		tests = append(tests, TestCase{ID: id, RoadPoints: points[id]})
	}
	return tests, nil
}

// DecodeUpload reads the JSON upload payload
// {"testSuiteId": ..., "tests": [{"testId": ..., "roadPoints": [...]}]}
// and returns a validated suite.
func DecodeUpload(r io.Reader) (*TestSuite, error) {
	var payload TestSuite
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode test suite: %w", err)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, fmt.Errorf("testSuiteId is required")
	}
	suite, err := NewTestSuite(payload.ID, payload.Tests)
	if err != nil {
		return nil, err
	}
	if len(suite.Tests) == 0 {
		return nil, &EmptySuiteError{SuiteID: suite.ID}
	}
	return suite, nil
}
