package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DecisionTree is a CART classifier splitting on Gini impurity. Nodes are
// stored in a flat slice with child indices, which keeps the trained state
// trivially serializable.
type DecisionTree struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MaxFeatures     int // 0 means all features
	Seed            int64

	Nodes   []TreeNode
	Classes []int
}

type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Class     int
	Leaf      bool
}

func NewDecisionTree() *DecisionTree {
	return &DecisionTree{MinSamplesSplit: 2, Seed: 1}
}

func (t *DecisionTree) Fit(x mat.Matrix, y []int) error {
	n, d, err := checkTrainingSet(x, y)
	if err != nil {
		return fmt.Errorf("dtree: %w", err)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rnd := rand.New(rand.NewSource(t.Seed))
	t.fitIndices(denseRows(x), y, idx, d, classSet(y), rnd)
	return nil
}

// fitIndices grows the tree over the given sample indices. The random
// forest calls it directly with bootstrap indices and shared rows.
func (t *DecisionTree) fitIndices(rows [][]float64, y []int, idx []int, d int, classes []int, rnd *rand.Rand) {
	t.Classes = classes
	t.Nodes = t.Nodes[:0]
	t.grow(rows, y, idx, 0, d, rnd)
}

// grow appends the subtree rooted at the given samples and returns its
// index in t.Nodes.
func (t *DecisionTree) grow(rows [][]float64, y []int, idx []int, depth, d int, rnd *rand.Rand) int {
	label, pure := t.majority(y, idx)
	minSplit := t.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	if pure || len(idx) < minSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return t.leaf(label)
	}

	feature, threshold, ok := t.bestSplit(rows, y, idx, d, rnd)
	if !ok {
		return t.leaf(label)
	}
	var left, right []int
	for _, i := range idx {
		if rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return t.leaf(label)
	}

	t.Nodes = append(t.Nodes, TreeNode{Feature: feature, Threshold: threshold, Class: label})
	at := len(t.Nodes) - 1
	l := t.grow(rows, y, left, depth+1, d, rnd)
	r := t.grow(rows, y, right, depth+1, d, rnd)
	t.Nodes[at].Left = l
	t.Nodes[at].Right = r
	return at
}

func (t *DecisionTree) leaf(label int) int {
	t.Nodes = append(t.Nodes, TreeNode{Feature: -1, Left: -1, Right: -1, Class: label, Leaf: true})
	return len(t.Nodes) - 1
}

// majority returns the most frequent label among idx, lower label winning
// ties, and whether the samples are single-class.
func (t *DecisionTree) majority(y []int, idx []int) (int, bool) {
	counts := make([]int, len(t.Classes))
	for _, i := range idx {
		counts[classIndex(t.Classes, y[i])]++
	}
	best, distinct := 0, 0
	for c, cnt := range counts {
		if cnt > 0 {
			distinct++
		}
		if cnt > counts[best] {
			best = c
		}
	}
	return t.Classes[best], distinct <= 1
}

type splitPoint struct {
	v     float64
	class int
}

func (t *DecisionTree) bestSplit(rows [][]float64, y []int, idx []int, d int, rnd *rand.Rand) (int, float64, bool) {
	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	limit := d
	if t.MaxFeatures > 0 && t.MaxFeatures < d {
		limit = t.MaxFeatures
		rnd.Shuffle(d, func(a, b int) { order[a], order[b] = order[b], order[a] })
	}

	k := len(t.Classes)
	total := make([]int, k)
	for _, i := range idx {
		total[classIndex(t.Classes, y[i])]++
	}

	bestGini := giniFromCounts(total, len(idx))
	bestFeature, bestThreshold := -1, 0.0
	found := false
	pts := make([]splitPoint, len(idx))
	left := make([]int, k)
	right := make([]int, k)

	for fi, f := range order {
		for j, i := range idx {
			pts[j] = splitPoint{v: rows[i][f], class: classIndex(t.Classes, y[i])}
		}
		sort.Slice(pts, func(a, b int) bool { return pts[a].v < pts[b].v })

		for c := range left {
			left[c] = 0
			right[c] = total[c]
		}
		for s := 1; s < len(pts); s++ {
			c := pts[s-1].class
			left[c]++
			right[c]--
			if pts[s].v == pts[s-1].v {
				continue
			}
			g := (giniFromCounts(left, s)*float64(s) +
				giniFromCounts(right, len(pts)-s)*float64(len(pts)-s)) / float64(len(pts))
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = (pts[s-1].v + pts[s].v) / 2
				found = true
			}
		}
		// past the cap, keep probing only while nothing improves
		if fi+1 >= limit && found {
			break
		}
	}
	return bestFeature, bestThreshold, found
}

func giniFromCounts(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func (t *DecisionTree) Predict(x mat.Matrix) ([]int, error) {
	if len(t.Nodes) == 0 {
		return nil, fmt.Errorf("dtree: %w", ErrNotFitted)
	}
	n, _ := x.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		label, err := t.predictRow(x, i)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

func (t *DecisionTree) predictRow(x mat.Matrix, i int) (int, error) {
	at := 0
	for {
		node := t.Nodes[at]
		if node.Leaf {
			return node.Class, nil
		}
		if x.At(i, node.Feature) <= node.Threshold {
			at = node.Left
		} else {
			at = node.Right
		}
		if at < 0 || at >= len(t.Nodes) {
			return 0, fmt.Errorf("dtree: invalid node index %d", at)
		}
	}
}

type treeState struct {
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Seed            int64
	Nodes           []TreeNode
	Classes         []int
}

func (t *DecisionTree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	st := treeState{
		MaxDepth:        t.MaxDepth,
		MinSamplesSplit: t.MinSamplesSplit,
		MaxFeatures:     t.MaxFeatures,
		Seed:            t.Seed,
		Nodes:           t.Nodes,
		Classes:         t.Classes,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("dtree: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *DecisionTree) UnmarshalBinary(data []byte) error {
	var st treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("dtree: decode: %w", err)
	}
	t.MaxDepth = st.MaxDepth
	t.MinSamplesSplit = st.MinSamplesSplit
	t.MaxFeatures = st.MaxFeatures
	t.Seed = st.Seed
	t.Nodes = st.Nodes
	t.Classes = st.Classes
	return nil
}
