package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an L2-regularized logistic classifier trained by
// full-batch gradient descent. Multiclass problems use one-vs-rest scoring.
// Hyperparameters may be adjusted before Fit; afterwards the trained state
// lives in Classes, Coef and Bias.
type LogisticRegression struct {
	C         float64 // inverse regularization strength
	LearnRate float64
	MaxIter   int

	Classes []int
	Coef    [][]float64 // one weight vector per one-vs-rest problem
	Bias    []float64
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1.0, LearnRate: 0.1, MaxIter: 100}
}

func (m *LogisticRegression) Fit(x mat.Matrix, y []int) error {
	n, d, err := checkTrainingSet(x, y)
	if err != nil {
		return fmt.Errorf("logreg: %w", err)
	}
	classes := classSet(y)
	if len(classes) < 2 {
		return fmt.Errorf("logreg: need at least 2 classes, got %d", len(classes))
	}

	problems := binaryProblems(classes)
	coef := make([][]float64, len(problems))
	bias := make([]float64, len(problems))
	lambda := 1.0 / (m.C * float64(n))
	inv := 1.0 / float64(n)

	for p, positive := range problems {
		target := make([]float64, n)
		for i, label := range y {
			if label == positive {
				target[i] = 1
			}
		}
		w := make([]float64, d)
		var b float64
		grad := make([]float64, d)
		for iter := 0; iter < m.MaxIter; iter++ {
			for j := range grad {
				grad[j] = 0
			}
			var gb float64
			for i := 0; i < n; i++ {
				diff := sigmoid(rowDot(x, i, w)+b) - target[i]
				addRowScaled(grad, x, i, diff)
				gb += diff
			}
			for j := range w {
				w[j] -= m.LearnRate * (grad[j]*inv + lambda*w[j])
			}
			b -= m.LearnRate * gb * inv
		}
		coef[p] = w
		bias[p] = b
	}

	m.Classes = classes
	m.Coef = coef
	m.Bias = bias
	return nil
}

func (m *LogisticRegression) Predict(x mat.Matrix) ([]int, error) {
	out, err := linearPredict(x, m.Classes, m.Coef, m.Bias)
	if err != nil {
		return nil, fmt.Errorf("logreg: %w", err)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

type logRegState struct {
	C         float64
	LearnRate float64
	MaxIter   int
	Classes   []int
	Coef      [][]float64
	Bias      []float64
}

func (m *LogisticRegression) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	st := logRegState{
		C:         m.C,
		LearnRate: m.LearnRate,
		MaxIter:   m.MaxIter,
		Classes:   m.Classes,
		Coef:      m.Coef,
		Bias:      m.Bias,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("logreg: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *LogisticRegression) UnmarshalBinary(data []byte) error {
	var st logRegState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("logreg: decode: %w", err)
	}
	m.C = st.C
	m.LearnRate = st.LearnRate
	m.MaxIter = st.MaxIter
	m.Classes = st.Classes
	m.Coef = st.Coef
	m.Bias = st.Bias
	return nil
}
