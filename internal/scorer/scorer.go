// Package scorer aggregates APFD scores over many evaluations of the same
// strategy.
package scorer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds aggregate statistics of a set of scores. Values are rounded
// to four decimals.
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Variance float64 `json:"variance"`
	// Zero counts evaluations whose APFD was 0 because nothing was detected.
	Zero int `json:"zero_scores"`
}

// Summarize computes the population statistics of scores.
func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}

	mean, variance := stat.PopMeanVariance(scores, nil)
	s := Summary{
		Count:    len(scores),
		Mean:     round(mean),
		Min:      round(floats.Min(scores)),
		Max:      round(floats.Max(scores)),
		Variance: round(variance),
	}
	for _, v := range scores {
		if v == 0 {
			s.Zero++
		}
	}
	return s
}

// Ranked returns strategy names ordered by mean score, best first. Equal
// means are ordered by name.
func Ranked(summaries map[string]Summary) []string {
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := summaries[names[i]], summaries[names[j]]
		if a.Mean != b.Mean {
			return a.Mean > b.Mean
		}
		return names[i] < names[j]
	})
	return names
}

// WriteSummaryFile writes summaries as indented JSON to path.
func WriteSummaryFile(summaries map[string]Summary, path string) error {
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
