// Package history persists uploaded suites and evaluation records in a bbolt
// file. Suites and their upload records are stored as JSON under the suite
// ID; evaluations are appended
// under a monotonically increasing key so iteration returns them in order.
package history

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/giantswarm/sdc-prioritizer/internal/evaluator"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

var (
	bucketSuites      = []byte("suites")
	bucketUploads     = []byte("uploads")
	bucketEvaluations = []byte("evaluations")
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{
	"session_id", "timestamp", "strategy", "num_tests",
	"num_failures", "execution_cost", "score", "duration_ms",
}

// SuiteExistsError is returned when a suite ID is uploaded twice.
type SuiteExistsError struct {
	SuiteID string
}

func (e *SuiteExistsError) Error() string {
	return fmt.Sprintf("test suite %q already exists", e.SuiteID)
}

// SuiteNotFoundError is returned when no suite is stored under an ID.
type SuiteNotFoundError struct {
	SuiteID string
}

func (e *SuiteNotFoundError) Error() string {
	return fmt.Sprintf("test suite %q not found", e.SuiteID)
}

// Record is one evaluation in the history log.
type Record struct {
	ID            string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
	SuiteID       string    `json:"testSuiteId"`
	Strategy      string    `json:"strategy"`
	NumTests      int       `json:"num_tests"`
	NumFailures   int       `json:"num_failures"`
	ExecutionCost int       `json:"execution_cost"`
	Score         float64   `json:"score"`
	Budget        *int      `json:"budget,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
}

// NewRecord builds the record of report, which took d to compute.
func NewRecord(report *evaluator.Report, d time.Duration) Record {
	return Record{
		SuiteID:       report.SuiteID,
		Strategy:      report.Strategy,
		NumTests:      report.TestCount,
		NumFailures:   report.FailuresDetected,
		ExecutionCost: report.ExecutionCost,
		Score:         report.Score,
		Budget:        report.Budget,
		DurationMS:    d.Milliseconds(),
	}
}

// Store is the bbolt-backed history.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSuites, bucketUploads, bucketEvaluations} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise history store: %w", err)
	}

	slog.Debug("history store opened", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSuite stores a validated suite. An ID can only be stored once.
func (s *Store) SaveSuite(suite *testsuite.TestSuite) (testsuite.Upload, error) {
	if err := suite.Validate(); err != nil {
		return testsuite.Upload{}, err
	}
	data, err := json.Marshal(suite)
	if err != nil {
		return testsuite.Upload{}, fmt.Errorf("failed to marshal suite: %w", err)
	}
	upload := testsuite.Upload{
		SuiteID:   suite.ID,
		TestCount: len(suite.Tests),
		CreatedAt: s.now().UTC(),
	}
	uploadData, err := json.Marshal(upload)
	if err != nil {
		return testsuite.Upload{}, fmt.Errorf("failed to marshal upload: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSuites)
		if b.Get([]byte(suite.ID)) != nil {
			return &SuiteExistsError{SuiteID: suite.ID}
		}
		if err := b.Put([]byte(suite.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUploads).Put([]byte(suite.ID), uploadData)
	})
	if err != nil {
		return testsuite.Upload{}, err
	}

	slog.Info("test suite stored", "suite", suite.ID, "tests", len(suite.Tests))
	return upload, nil
}

// Uploads returns the upload record of every stored suite in ID order.
func (s *Store) Uploads() ([]testsuite.Upload, error) {
	var uploads []testsuite.Upload
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUploads).ForEach(func(k, v []byte) error {
			var u testsuite.Upload
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("failed to decode upload %q: %w", k, err)
			}
			uploads = append(uploads, u)
			return nil
		})
	})
	return uploads, err
}

// Suite returns the suite stored under id.
func (s *Store) Suite(id string) (*testsuite.TestSuite, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSuites).Get([]byte(id)); v != nil {
			// bbolt slices are only valid inside the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &SuiteNotFoundError{SuiteID: id}
	}

	var suite testsuite.TestSuite
	if err := json.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to decode suite %q: %w", id, err)
	}
	return &suite, nil
}

// SuiteIDs returns the stored suite IDs in key order.
func (s *Store) SuiteIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSuites).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// SaveEvaluation appends r to the log, assigning its ID and timestamp.
func (s *Store) SaveEvaluation(r Record) (Record, error) {
	r.ID = uuid.NewString()
	r.Timestamp = s.now().UTC()

	data, err := json.Marshal(r)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvaluations)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to save evaluation: %w", err)
	}
	return r, nil
}

// Evaluations returns every record, oldest first.
func (s *Store) Evaluations() ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvaluations).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode evaluation: %w", err)
			}
			records = append(records, r)
			return nil
		})
	})
	return records, err
}

// WriteCSV writes the history log as CSV with CSVHeader.
func (s *Store) WriteCSV(w io.Writer) error {
	records, err := s.Evaluations()
	if err != nil {
		return err
	}
	return WriteRecordsCSV(w, records)
}

// WriteRecordsCSV writes records as CSV with CSVHeader.
func WriteRecordsCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.Timestamp.Format(time.RFC3339),
			r.Strategy,
			strconv.Itoa(r.NumTests),
			strconv.Itoa(r.NumFailures),
			strconv.Itoa(r.ExecutionCost),
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			strconv.FormatInt(r.DurationMS, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
