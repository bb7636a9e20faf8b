// Package outlier scores how far each test of a suite lies from the suite's
// centre in feature space. Scores are relative to the batch they are
// computed over.
package outlier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Metric selects the distance used for scoring.
type Metric string

const (
	Euclidean   Metric = "euclidean"
	Mahalanobis Metric = "mahalanobis"
)

// maxCondition is the covariance condition number above which the matrix is
// treated as singular.
const maxCondition = 1e12

// ridge is added to the diagonal of the standardised covariance. Road
// features are partly linear in each other (the turn sum is the mean turn
// times the vertex count), so without it equal-length roads never invert.
const ridge = 1e-6

// Result holds per-vector scores in input order.
type Result struct {
	Scores []float64
	// Metric is the metric actually applied. It differs from the requested
	// one when Mahalanobis scoring fell back to Euclidean.
	Metric   Metric
	Fallback bool
	Reason   string
}

// Score computes the outlier score of every row of vectors. All rows must
// have the same, non-zero length.
func Score(vectors [][]float64, metric Metric) (Result, error) {
	x, err := toDense(vectors)
	if err != nil {
		return Result{}, err
	}
	centroid := Centroid(x)

	switch metric {
	case Euclidean:
		return Result{Scores: euclidean(x, centroid), Metric: Euclidean}, nil
	case Mahalanobis:
		scores, reason := mahalanobis(x, centroid)
		if reason != "" {
			return Result{
				Scores:   euclidean(x, centroid),
				Metric:   Euclidean,
				Fallback: true,
				Reason:   reason,
			}, nil
		}
		return Result{Scores: scores, Metric: Mahalanobis}, nil
	default:
		return Result{}, fmt.Errorf("unknown outlier metric %q", metric)
	}
}

// Centroid returns the column means of x.
func Centroid(x *mat.Dense) []float64 {
	_, d := x.Dims()
	centroid := make([]float64, d)
	for j := range centroid {
		centroid[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	return centroid
}

func toDense(vectors [][]float64) (*mat.Dense, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no feature vectors to score")
	}
	d := len(vectors[0])
	if d == 0 {
		return nil, fmt.Errorf("feature vectors are empty")
	}
	data := make([]float64, 0, len(vectors)*d)
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("feature vector %d has %d dimensions, expected %d", i, len(v), d)
		}
		data = append(data, v...)
	}
	return mat.NewDense(len(vectors), d, data), nil
}

func euclidean(x *mat.Dense, centroid []float64) []float64 {
	n, _ := x.Dims()
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = floats.Distance(x.RawRowView(i), centroid, 2)
	}
	return scores
}

// mahalanobis returns the scores, or a non-empty reason when the covariance
// cannot be inverted. n samples give a covariance of rank at most n-1, so
// n <= d is underdetermined. Columns are standardised before the ridge is
// added; a constant column contributes nothing.
func mahalanobis(x *mat.Dense, centroid []float64) ([]float64, string) {
	n, d := x.Dims()
	if n <= d {
		return nil, fmt.Sprintf("covariance underdetermined: %d tests for %d features", n, d)
	}
	for i := 0; i < n; i++ {
		for _, v := range x.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, "feature values are not finite"
			}
		}
	}

	z := mat.NewDense(n, d, nil)
	for j := range centroid {
		col := mat.Col(nil, j, x)
		sd := stat.StdDev(col, nil)
		if sd == 0 {
			continue
		}
		for i, v := range col {
			z.Set(i, j, (v-centroid[j])/sd)
		}
	}

	cov := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(cov, z, nil)
	for j := 0; j < d; j++ {
		cov.SetSym(j, j, cov.At(j, j)+ridge)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, "covariance matrix is singular"
	}
	if cond := chol.Cond(); cond > maxCondition || math.IsInf(cond, 0) || math.IsNaN(cond) {
		return nil, fmt.Sprintf("covariance matrix is ill-conditioned (condition %.3g)", cond)
	}

	scores := make([]float64, n)
	diff := mat.NewVecDense(d, nil)
	solved := mat.NewVecDense(d, nil)
	for i := range scores {
		for j, v := range z.RawRowView(i) {
			diff.SetVec(j, v)
		}
		if err := chol.SolveVecTo(solved, diff); err != nil {
			return nil, fmt.Sprintf("covariance solve failed: %v", err)
		}
		scores[i] = math.Sqrt(math.Max(0, mat.Dot(diff, solved)))
	}
	return scores, ""
}
