package history

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sdc-prioritizer/internal/evaluator"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
	"github.com/giantswarm/sdc-prioritizer/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSaveAndLoadSuite(t *testing.T) {
	store, _ := newTestStore(t)
	suite := testutil.SmokeSuite()

	upload, err := store.SaveSuite(suite)
	require.NoError(t, err)
	assert.Equal(t, "suite_01", upload.SuiteID)
	assert.Equal(t, 2, upload.TestCount)
	assert.False(t, upload.CreatedAt.IsZero())

	got, err := store.Suite("suite_01")
	require.NoError(t, err)
	assert.Equal(t, suite.ID, got.ID)
	assert.Equal(t, suite.Tests, got.Tests)

	ids, err := store.SuiteIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"suite_01"}, ids)
}

func TestUploadsKeepCreationTime(t *testing.T) {
	store, path := newTestStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return created }

	upload, err := store.SaveSuite(testutil.SmokeSuite())
	require.NoError(t, err)

	require.NoError(t, store.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	uploads, err := reopened.Uploads()
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, upload.SuiteID, uploads[0].SuiteID)
	assert.Equal(t, 2, uploads[0].TestCount)
	assert.True(t, created.Equal(uploads[0].CreatedAt))
}

func TestSaveSuiteErrors(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.SaveSuite(testutil.SmokeSuite())
	require.NoError(t, err)

	_, err = store.SaveSuite(testutil.SmokeSuite())
	var exists *SuiteExistsError
	require.True(t, errors.As(err, &exists))
	assert.Equal(t, "suite_01", exists.SuiteID)

	_, err = store.SaveSuite(testutil.Suite("empty"))
	var empty *testsuite.EmptySuiteError
	assert.True(t, errors.As(err, &empty))

	ids, err := store.SuiteIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"suite_01"}, ids)
}

func TestSuiteNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Suite("missing")
	var notFound *SuiteNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestEvaluationsPersistAcrossReopen(t *testing.T) {
	store, path := newTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	budget := 4
	for _, strategy := range []string{"longest-first", "less-safe-first", "euclidean-outlier-first"} {
		r, err := store.SaveEvaluation(NewRecord(&evaluator.Report{
			SuiteID:          "suite_01",
			Strategy:         strategy,
			TestCount:        2,
			FailuresDetected: 1,
			ExecutionCost:    3,
			Score:            0.75,
			Budget:           &budget,
		}, 1500*time.Millisecond))
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, fixed, r.Timestamp)
	}
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Evaluations()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "longest-first", records[0].Strategy)
	assert.Equal(t, "euclidean-outlier-first", records[2].Strategy)
	assert.Equal(t, int64(1500), records[1].DurationMS)
	require.NotNil(t, records[1].Budget)
	assert.Equal(t, 4, *records[1].Budget)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestWriteCSV(t *testing.T) {
	store, _ := newTestStore(t)
	store.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	saved, err := store.SaveEvaluation(Record{
		Strategy:      "longest-first",
		NumTests:      2,
		NumFailures:   1,
		ExecutionCost: 5,
		Score:         0.75,
		DurationMS:    12,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, store.WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{saved.ID, "2026-03-01T12:00:00Z", "longest-first", "2", "1", "5", "0.75", "12"}, rows[1])
}

func TestWriteCSVEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, store.WriteCSV(&buf))
	assert.Equal(t, "session_id,timestamp,strategy,num_tests,num_failures,execution_cost,score,duration_ms\n", buf.String())
}
