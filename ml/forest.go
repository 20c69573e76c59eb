package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// RandomForest bags Gini decision trees over bootstrap samples. Each tree
// draws from its own seeded source, so a given seed always yields the same
// forest. Majority voting resolves ties toward the lower label.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MaxFeatures     int // 0 means sqrt of the feature count
	Bootstrap       bool
	Seed            int64

	Classes []int
	Trees   []*DecisionTree
}

func NewRandomForest() *RandomForest {
	return &RandomForest{NEstimators: 10, MinSamplesSplit: 2, Bootstrap: true, Seed: 1}
}

func (m *RandomForest) Fit(x mat.Matrix, y []int) error {
	n, d, err := checkTrainingSet(x, y)
	if err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	if m.NEstimators <= 0 {
		return fmt.Errorf("forest: need at least 1 estimator, got %d", m.NEstimators)
	}
	classes := classSet(y)
	rows := denseRows(x)

	maxFeatures := m.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(d)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	trees := make([]*DecisionTree, m.NEstimators)
	var wg sync.WaitGroup
	for ti := range trees {
		wg.Add(1)
		go func(ti int) {
			defer wg.Done()
			seed := m.Seed + int64(ti)
			rnd := rand.New(rand.NewSource(seed))
			idx := make([]int, n)
			for j := range idx {
				if m.Bootstrap {
					idx[j] = rnd.Intn(n)
				} else {
					idx[j] = j
				}
			}
			tree := &DecisionTree{
				MaxDepth:        m.MaxDepth,
				MinSamplesSplit: m.MinSamplesSplit,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
			}
			tree.fitIndices(rows, y, idx, d, classes, rnd)
			trees[ti] = tree
		}(ti)
	}
	wg.Wait()

	m.Classes = classes
	m.Trees = trees
	return nil
}

func (m *RandomForest) Predict(x mat.Matrix) ([]int, error) {
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("forest: %w", ErrNotFitted)
	}
	n, _ := x.Dims()
	votes := make([][]int, n)
	for i := range votes {
		votes[i] = make([]int, len(m.Classes))
	}
	for _, tree := range m.Trees {
		labels, err := tree.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("forest: %w", err)
		}
		for i, label := range labels {
			votes[i][classIndex(m.Classes, label)]++
		}
	}

	out := make([]int, n)
	for i, counts := range votes {
		best := 0
		for c := 1; c < len(counts); c++ {
			if counts[c] > counts[best] {
				best = c
			}
		}
		out[i] = m.Classes[best]
	}
	return out, nil
}

type forestState struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Bootstrap       bool
	Seed            int64
	Classes         []int
	Trees           []*DecisionTree
}

func (m *RandomForest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	st := forestState{
		NEstimators:     m.NEstimators,
		MaxDepth:        m.MaxDepth,
		MinSamplesSplit: m.MinSamplesSplit,
		MaxFeatures:     m.MaxFeatures,
		Bootstrap:       m.Bootstrap,
		Seed:            m.Seed,
		Classes:         m.Classes,
		Trees:           m.Trees,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("forest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *RandomForest) UnmarshalBinary(data []byte) error {
	var st forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("forest: decode: %w", err)
	}
	m.NEstimators = st.NEstimators
	m.MaxDepth = st.MaxDepth
	m.MinSamplesSplit = st.MinSamplesSplit
	m.MaxFeatures = st.MaxFeatures
	m.Bootstrap = st.Bootstrap
	m.Seed = st.Seed
	m.Classes = st.Classes
	m.Trees = st.Trees
	return nil
}
