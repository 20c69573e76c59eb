package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearSVC is a linear support vector classifier trained with the Pegasos
// subgradient method on the hinge loss. Samples are visited in order, so
// training is deterministic for a given input.
type LinearSVC struct {
	C       float64 // inverse regularization strength
	MaxIter int     // passes over the training set

	Classes []int
	Coef    [][]float64
	Bias    []float64
}

func NewLinearSVC() *LinearSVC {
	return &LinearSVC{C: 1.0, MaxIter: 1000}
}

func (m *LinearSVC) Fit(x mat.Matrix, y []int) error {
	n, d, err := checkTrainingSet(x, y)
	if err != nil {
		return fmt.Errorf("linearsvc: %w", err)
	}
	classes := classSet(y)
	if len(classes) < 2 {
		return fmt.Errorf("linearsvc: need at least 2 classes, got %d", len(classes))
	}

	problems := binaryProblems(classes)
	coef := make([][]float64, len(problems))
	bias := make([]float64, len(problems))
	lambda := 1.0 / (m.C * float64(n))

	for p, positive := range problems {
		target := make([]float64, n)
		for i, label := range y {
			if label == positive {
				target[i] = 1
			} else {
				target[i] = -1
			}
		}
		w := make([]float64, d)
		var b float64
		step := 0
		for iter := 0; iter < m.MaxIter; iter++ {
			for i := 0; i < n; i++ {
				step++
				eta := 1.0 / (lambda * float64(step))
				violated := target[i]*(rowDot(x, i, w)+b) < 1
				scale := 1 - eta*lambda
				if scale < 0 {
					scale = 0
				}
				for j := range w {
					w[j] *= scale
				}
				if violated {
					addRowScaled(w, x, i, eta*target[i])
					b += eta * target[i]
				}
			}
		}
		coef[p] = w
		bias[p] = b
	}

	m.Classes = classes
	m.Coef = coef
	m.Bias = bias
	return nil
}

func (m *LinearSVC) Predict(x mat.Matrix) ([]int, error) {
	out, err := linearPredict(x, m.Classes, m.Coef, m.Bias)
	if err != nil {
		return nil, fmt.Errorf("linearsvc: %w", err)
	}
	return out, nil
}

type linearSVCState struct {
	C       float64
	MaxIter int
	Classes []int
	Coef    [][]float64
	Bias    []float64
}

func (m *LinearSVC) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	st := linearSVCState{
		C:       m.C,
		MaxIter: m.MaxIter,
		Classes: m.Classes,
		Coef:    m.Coef,
		Bias:    m.Bias,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("linearsvc: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *LinearSVC) UnmarshalBinary(data []byte) error {
	var st linearSVCState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("linearsvc: decode: %w", err)
	}
	m.C = st.C
	m.MaxIter = st.MaxIter
	m.Classes = st.Classes
	m.Coef = st.Coef
	m.Bias = st.Bias
	return nil
}
