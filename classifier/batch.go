package classifier

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Batch is an ordered collection of feature vectors, one per sample. A
// batch is homogeneous: every vector is sparse or every vector is dense.
type Batch []mat.Vector

// Stack assembles a batch into one design matrix with a row per sample.
// Sparse batches become a CSR matrix, dense batches a dense matrix; the
// first vector decides which representation applies.
func Stack(batch Batch) (mat.Matrix, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	switch batch[0].(type) {
	case *sparse.Vector:
		return stackSparse(batch)
	case *mat.VecDense:
		return stackDense(batch)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedVector, batch[0])
	}
}

func stackSparse(batch Batch) (*sparse.CSR, error) {
	width := batch[0].Len()
	ia := make([]int, 1, len(batch)+1)
	var ja []int
	var data []float64
	for i, v := range batch {
		sv, ok := v.(*sparse.Vector)
		if !ok {
			return nil, fmt.Errorf("%w: sample %d is %T in a sparse batch", ErrUnsupportedVector, i, v)
		}
		if sv.Len() != width {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, sv.Len(), width)
		}
		sv.DoNonZero(func(j, _ int, val float64) {
			ja = append(ja, j)
			data = append(data, val)
		})
		ia = append(ia, len(ja))
	}
	return sparse.NewCSR(len(batch), width, ia, ja, data), nil
}

func stackDense(batch Batch) (*mat.Dense, error) {
	width := batch[0].Len()
	out := mat.NewDense(len(batch), width, nil)
	for i, v := range batch {
		dv, ok := v.(*mat.VecDense)
		if !ok {
			return nil, fmt.Errorf("%w: sample %d is %T in a dense batch", ErrUnsupportedVector, i, v)
		}
		if dv.Len() != width {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, dv.Len(), width)
		}
		for j := 0; j < width; j++ {
			out.Set(i, j, dv.AtVec(j))
		}
	}
	return out, nil
}
