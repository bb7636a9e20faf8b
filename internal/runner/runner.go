// Package runner runs prioritization experiments over many test suites.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/sdc-prioritizer/internal/engine"
	"github.com/giantswarm/sdc-prioritizer/internal/evaluator"
	"github.com/giantswarm/sdc-prioritizer/internal/history"
	"github.com/giantswarm/sdc-prioritizer/internal/scorer"
	"github.com/giantswarm/sdc-prioritizer/internal/strategy"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// ProgressFunc is called after each suite/strategy evaluation finishes.
type ProgressFunc func(suiteID, strategy string, done, total int)

// Recorder persists evaluation records. *history.Store implements it.
type Recorder interface {
	SaveEvaluation(r history.Record) (history.Record, error)
}

// Run is the outcome of one experiment.
type Run struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"-"`
	Budget    *int          `json:"budget,omitempty"`
	Suites    int           `json:"suites"`
	Results   []StrategyRun `json:"strategies"`
	OutputDir string        `json:"-"`
}

// StrategyRun holds every evaluation of one strategy.
type StrategyRun struct {
	Strategy    string              `json:"strategy"`
	Summary     scorer.Summary      `json:"summary"`
	ResultsFile string              `json:"results_file"`
	Reports     []*evaluator.Report `json:"-"`
	// Failed counts evaluations that returned an error.
	Failed int `json:"failed"`
}

// Summaries returns the summary of each strategy keyed by name.
func (r *Run) Summaries() map[string]scorer.Summary {
	out := make(map[string]scorer.Summary, len(r.Results))
	for _, s := range r.Results {
		out[s.Strategy] = s.Summary
	}
	return out
}

// Runner evaluates many suites with many strategies.
type Runner struct {
	strategies []string
	budget     *int
	outputDir  string
	parallel   int
	progress   ProgressFunc
	recorder   Recorder
}

// NewRunner creates a runner for the given strategies. All registered
// strategies are used when none are given.
func NewRunner(strategies []string, outputDir string, parallel int) (*Runner, error) {
	if len(strategies) == 0 {
		strategies = strategy.Names()
	}
	for _, name := range strategies {
		if _, err := strategy.Get(name); err != nil {
			return nil, err
		}
	}
	if parallel < 1 {
		parallel = 1
	}
	return &Runner{
		strategies: strategies,
		outputDir:  outputDir,
		parallel:   parallel,
	}, nil
}

// SetBudget caps the execution cost of every evaluation. nil runs every test.
func (r *Runner) SetBudget(budget *int) {
	r.budget = budget
}

// SetProgressFunc sets the progress callback. It is never called
// concurrently.
func (r *Runner) SetProgressFunc(fn ProgressFunc) {
	r.progress = fn
}

// SetRecorder makes the runner persist every evaluation record.
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

type job struct {
	suite    *testsuite.TestSuite
	strategy string
}

type outcome struct {
	report   *evaluator.Report
	duration time.Duration
	err      error
}

// Run evaluates every suite with every strategy and writes the results below
// the output directory. An evaluation that fails is logged and counted; only
// cancellation and I/O errors abort the run.
func (r *Runner) Run(ctx context.Context, name string, suites []*testsuite.TestSuite) (*Run, error) {
	if len(suites) == 0 {
		return nil, fmt.Errorf("no test suites to evaluate")
	}

	timestamp := time.Now()
	runID := fmt.Sprintf("%s_%s_%s",
		sanitizeFilename(strings.ReplaceAll(name, " ", "_")),
		timestamp.Format("20060102-150405"),
		uuid.NewString()[:8],
	)

	outputPath := filepath.Join(r.outputDir, runID)
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := make([]job, 0, len(suites)*len(r.strategies))
	for _, suite := range suites {
		for _, s := range r.strategies {
			jobs = append(jobs, job{suite: suite, strategy: s})
		}
	}

	slog.Info("running experiment",
		"name", name,
		"suites", len(suites),
		"strategies", len(r.strategies),
		"parallel", r.parallel,
	)

	outcomes := make([]outcome, len(jobs))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			report, err := engine.Evaluate(j.suite, j.strategy, r.budget)
			outcomes[i] = outcome{report: report, duration: time.Since(start), err: err}

			if r.progress != nil {
				mu.Lock()
				done++
				r.progress(j.suite.ID, j.strategy, done, len(jobs))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("experiment cancelled", "name", name, "error", err)
		return nil, err
	}

	run := &Run{
		ID:        runID,
		Name:      name,
		Timestamp: timestamp,
		Budget:    r.budget,
		Suites:    len(suites),
		Results:   make([]StrategyRun, 0, len(r.strategies)),
		OutputDir: outputPath,
	}

	for _, s := range r.strategies {
		sr, err := r.collect(outputPath, s, jobs, outcomes)
		if err != nil {
			return nil, err
		}
		run.Results = append(run.Results, sr)

		slog.Info("strategy evaluation complete",
			"strategy", s,
			"evaluations", sr.Summary.Count,
			"failed", sr.Failed,
			"mean_apfd", sr.Summary.Mean,
		)
	}

	run.Duration = time.Since(timestamp)

	if err := scorer.WriteSummaryFile(run.Summaries(), filepath.Join(outputPath, "summary.json")); err != nil {
		return nil, err
	}
	if err := writeRunMetadata(outputPath, run); err != nil {
		return nil, fmt.Errorf("failed to write run metadata: %w", err)
	}

	return run, nil
}

// collect gathers the outcomes of one strategy in suite order, records them
// and writes its CSV report.
func (r *Runner) collect(outputPath, name string, jobs []job, outcomes []outcome) (StrategyRun, error) {
	sr := StrategyRun{Strategy: name}
	var (
		scores  []float64
		records []history.Record
	)

	for i, j := range jobs {
		if j.strategy != name {
			continue
		}
		o := outcomes[i]
		if o.err != nil {
			slog.Error("evaluation failed", "suite", j.suite.ID, "strategy", name, "error", o.err)
			sr.Failed++
			continue
		}

		rec := history.NewRecord(o.report, o.duration)
		if r.recorder != nil {
			saved, err := r.recorder.SaveEvaluation(rec)
			if err != nil {
				return StrategyRun{}, err
			}
			rec = saved
		} else {
			rec.ID = uuid.NewString()
			rec.Timestamp = time.Now().UTC()
		}

		sr.Reports = append(sr.Reports, o.report)
		scores = append(scores, o.report.Score)
		records = append(records, rec)
	}

	sr.Summary = scorer.Summarize(scores)
	sr.ResultsFile = filepath.Join(outputPath, fmt.Sprintf("evaluation_report_%s.csv", sanitizeFilename(name)))

	f, err := os.Create(sr.ResultsFile)
	if err != nil {
		return StrategyRun{}, fmt.Errorf("failed to create results for strategy %s: %w", name, err)
	}
	defer f.Close()
	if err := history.WriteRecordsCSV(f, records); err != nil {
		return StrategyRun{}, fmt.Errorf("failed to write results for strategy %s: %w", name, err)
	}
	return sr, f.Close()
}

// sanitizeFilename replaces characters unsafe for filenames with underscores.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

func writeRunMetadata(outputPath string, run *Run) error {
	strategies := make([]map[string]interface{}, 0, len(run.Results))
	for _, s := range run.Results {
		strategies = append(strategies, map[string]interface{}{
			"strategy":     s.Strategy,
			"evaluations":  s.Summary.Count,
			"failed":       s.Failed,
			"mean_apfd":    s.Summary.Mean,
			"results_file": s.ResultsFile,
		})
	}

	metadata := map[string]interface{}{
		"id":            run.ID,
		"name":          run.Name,
		"timestamp":     run.Timestamp,
		"suites":        run.Suites,
		"full_duration": run.Duration.Seconds(),
		"strategies":    strategies,
	}
	if run.Budget != nil {
		metadata["budget"] = *run.Budget
	}

	data, err := json.MarshalIndent(metadata, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(outputPath, "resultset.json"), data, 0o644)
}
