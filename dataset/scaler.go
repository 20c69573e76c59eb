package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"textclf/classifier"
)

// MinMaxScaler rescales features to [0, 1] with per-column bounds learned
// from a reference batch. Columns with a single observed value map to 0.
// Transform always produces dense vectors.
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

func (s *MinMaxScaler) Fit(batch classifier.Batch) error {
	if len(batch) == 0 {
		return classifier.ErrEmptyBatch
	}
	width := batch[0].Len()
	s.Min = make([]float64, width)
	s.Max = make([]float64, width)
	for j := 0; j < width; j++ {
		s.Min[j] = math.Inf(1)
		s.Max[j] = math.Inf(-1)
	}
	for i, v := range batch {
		if v.Len() != width {
			return fmt.Errorf("sample %d has %d features, want %d", i, v.Len(), width)
		}
		for j := 0; j < width; j++ {
			value := v.AtVec(j)
			if value < s.Min[j] {
				s.Min[j] = value
			}
			if value > s.Max[j] {
				s.Max[j] = value
			}
		}
	}
	return nil
}

func (s *MinMaxScaler) Transform(batch classifier.Batch) (classifier.Batch, error) {
	if s.Min == nil {
		return nil, errors.New("scaler not fitted")
	}
	out := make(classifier.Batch, len(batch))
	for i, v := range batch {
		if v.Len() != len(s.Min) {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, v.Len(), len(s.Min))
		}
		values := make([]float64, len(s.Min))
		for j := range values {
			span := s.Max[j] - s.Min[j]
			if span == 0 {
				continue
			}
			values[j] = (v.AtVec(j) - s.Min[j]) / span
		}
		out[i] = mat.NewVecDense(len(values), values)
	}
	return out, nil
}

// FitTransform fits the scaler on batch and returns the scaled batch.
func (s *MinMaxScaler) FitTransform(batch classifier.Batch) (classifier.Batch, error) {
	if err := s.Fit(batch); err != nil {
		return nil, err
	}
	return s.Transform(batch)
}
