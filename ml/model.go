package ml

import (
	"encoding"
	"errors"
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Model is the contract shared by every classifier in this package.
// Fit consumes a design matrix with one sample per row; Predict returns
// one label per row. Marshal/Unmarshal carry the full trained state.
type Model interface {
	Fit(x mat.Matrix, y []int) error
	Predict(x mat.Matrix) ([]int, error)
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

var ErrNotFitted = errors.New("model not fitted")

var (
	_ Model = (*LogisticRegression)(nil)
	_ Model = (*LinearSVC)(nil)
	_ Model = (*DecisionTree)(nil)
	_ Model = (*RandomForest)(nil)
)

func checkTrainingSet(x mat.Matrix, y []int) (n, d int, err error) {
	if x == nil {
		return 0, 0, errors.New("nil design matrix")
	}
	n, d = x.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.New("empty design matrix")
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("%d rows but %d labels", n, len(y))
	}
	return n, d, nil
}

// classSet returns the distinct labels in ascending order.
func classSet(y []int) []int {
	seen := make(map[int]struct{}, len(y))
	var classes []int
	for _, label := range y {
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			classes = append(classes, label)
		}
	}
	sort.Ints(classes)
	return classes
}

func classIndex(classes []int, label int) int {
	i := sort.SearchInts(classes, label)
	if i < len(classes) && classes[i] == label {
		return i
	}
	return -1
}

// binaryProblems lists the positive label of each one-vs-rest problem.
// Two classes collapse to a single problem against the higher label.
func binaryProblems(classes []int) []int {
	if len(classes) == 2 {
		return classes[1:2]
	}
	return classes
}

// rowDot computes the dot product of row i of x with w, staying sparse
// when the matrix is sparse.
func rowDot(x mat.Matrix, i int, w []float64) float64 {
	var sum float64
	switch m := x.(type) {
	case *sparse.CSR:
		m.DoRowNonZero(i, func(_, j int, v float64) {
			sum += v * w[j]
		})
	case *mat.Dense:
		for j, v := range m.RawRowView(i) {
			sum += v * w[j]
		}
	default:
		_, d := x.Dims()
		for j := 0; j < d; j++ {
			sum += x.At(i, j) * w[j]
		}
	}
	return sum
}

// addRowScaled adds s times row i of x to w in place.
func addRowScaled(w []float64, x mat.Matrix, i int, s float64) {
	switch m := x.(type) {
	case *sparse.CSR:
		m.DoRowNonZero(i, func(_, j int, v float64) {
			w[j] += s * v
		})
	case *mat.Dense:
		for j, v := range m.RawRowView(i) {
			w[j] += s * v
		}
	default:
		_, d := x.Dims()
		for j := 0; j < d; j++ {
			w[j] += s * x.At(i, j)
		}
	}
}

// denseRows materializes x one row slice per sample. Tree growing probes
// single columns too often for repeated sparse lookups to pay off.
func denseRows(x mat.Matrix) [][]float64 {
	n, d := x.Dims()
	rows := make([][]float64, n)
	switch m := x.(type) {
	case *mat.Dense:
		for i := range rows {
			rows[i] = m.RawRowView(i)
		}
	case *sparse.CSR:
		for i := range rows {
			row := make([]float64, d)
			m.DoRowNonZero(i, func(_, j int, v float64) {
				row[j] = v
			})
			rows[i] = row
		}
	default:
		for i := range rows {
			row := make([]float64, d)
			for j := 0; j < d; j++ {
				row[j] = x.At(i, j)
			}
			rows[i] = row
		}
	}
	return rows
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// linearPredict applies one-vs-rest linear scoring shared by the logistic
// regression and linear SVC models. Ties resolve to the lower label.
func linearPredict(x mat.Matrix, classes []int, coef [][]float64, bias []float64) ([]int, error) {
	if len(coef) == 0 {
		return nil, ErrNotFitted
	}
	n, d := x.Dims()
	if d != len(coef[0]) {
		return nil, fmt.Errorf("%d features, model trained on %d", d, len(coef[0]))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		if len(classes) == 2 {
			if rowDot(x, i, coef[0])+bias[0] >= 0 {
				out[i] = classes[1]
			} else {
				out[i] = classes[0]
			}
			continue
		}
		scores := make([]float64, len(coef))
		for p := range coef {
			scores[p] = rowDot(x, i, coef[p]) + bias[p]
		}
		out[i] = classes[argmax(scores)]
	}
	return out, nil
}
