// Package stats computes the correlation report between two table columns:
// Pearson's r and Spearman's rho with two-sided p-values, over
// pairwise-complete observations.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/clinilog/ecmotrend/pkg/schema"
)

// MinPairs is the smallest sample the correlation tests accept.
const MinPairs = 3

// InsufficientDataError means fewer complete pairs exist than the tests
// need. It is a normal "not enough data yet" outcome, not a failure.
type InsufficientDataError struct {
	Pairs int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("need at least %d complete pairs, have %d", MinPairs, e.Pairs)
}

// ErrConstantColumn means one of the columns has zero variance, so the
// correlation coefficient is undefined. Like too-few pairs, this is a
// normal early-session state.
var ErrConstantColumn = errors.New("correlation undefined: column values are constant")

// Result is one correlation report.
type Result struct {
	Pairs       int     `json:"pairs"`
	PearsonR    float64 `json:"pearson_r"`
	PearsonP    float64 `json:"pearson_p"`
	SpearmanRho float64 `json:"spearman_rho"`
	SpearmanP   float64 `json:"spearman_p"`
}

// CompletePairs extracts the rows where both columns are defined. Rows with
// either cell undefined are dropped as a pair, keeping the sequences
// aligned.
func CompletePairs(rows []schema.Row, colX, colY string) (xs, ys []float64) {
	for _, row := range rows {
		x := row.Cell(colX)
		y := row.Cell(colY)
		if !x.Valid || !y.Valid {
			continue
		}
		xs = append(xs, x.Value)
		ys = append(ys, y.Value)
	}
	return xs, ys
}

// Correlate runs both tests on the complete pairs of the two columns.
// Returns InsufficientDataError below MinPairs rather than calling the
// tests on a meaningless sample.
func Correlate(rows []schema.Row, colX, colY string) (*Result, error) {
	xs, ys := CompletePairs(rows, colX, colY)
	if len(xs) < MinPairs {
		return nil, &InsufficientDataError{Pairs: len(xs)}
	}

	r := stat.Correlation(xs, ys, nil)
	rho := stat.Correlation(ranks(xs), ranks(ys), nil)
	if math.IsNaN(r) || math.IsNaN(rho) {
		return nil, ErrConstantColumn
	}
	n := len(xs)

	return &Result{
		Pairs:       n,
		PearsonR:    r,
		PearsonP:    pValue(r, n),
		SpearmanRho: rho,
		SpearmanP:   pValue(rho, n),
	}, nil
}

// pValue is the two-sided p for a correlation coefficient under the
// t-distribution with n-2 degrees of freedom.
func pValue(r float64, n int) float64 {
	if math.IsNaN(r) {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.CDF(-math.Abs(t))
}

// ranks converts values to ranks, averaging ranks across ties, the standard
// Spearman treatment.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// ranks i..j (0-based) tie; assign their average 1-based rank
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
