package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// A Node represents a splitting decision of the form "x[FeatureIndex] < Threshold ?"
type Node struct {
	FeatureIndex int
	Threshold    float64
	LeftChild    int // Index into Nodes, or into Outputs when LeftIsLeaf
	LeftIsLeaf   bool
	RightChild   int
	RightIsLeaf  bool
}

// A DecisionTree maps a feature vector to the positive-class fraction of
// the leaf it falls into. A tree without nodes is a single leaf.
type DecisionTree struct {
	Nodes       []Node
	Outputs     []float64
	FeatureSize int
	Depth       int
}

// Validate checks that every child reference is in range and points
// forward, which guarantees traversal terminates. Thresholds must be
// finite and leaf outputs must lie in [0,1]; NaN fails both.
func (t *DecisionTree) Validate() error {
	if len(t.Outputs) == 0 {
		return fmt.Errorf("tree has no leaves")
	}
	if len(t.Nodes) == 0 && len(t.Outputs) != 1 {
		return fmt.Errorf("leaf-only tree has %d outputs", len(t.Outputs))
	}
	check := func(i, child int, leaf bool) error {
		if leaf {
			if child < 0 || child >= len(t.Outputs) {
				return fmt.Errorf("node %d: leaf %d out of range", i, child)
			}
			return nil
		}
		if child <= i || child >= len(t.Nodes) {
			return fmt.Errorf("node %d: child %d out of range", i, child)
		}
		return nil
	}
	for i, n := range t.Nodes {
		if n.FeatureIndex < 0 || n.FeatureIndex >= t.FeatureSize {
			return fmt.Errorf("node %d: feature %d out of range", i, n.FeatureIndex)
		}
		if math.IsNaN(n.Threshold) || math.IsInf(n.Threshold, 0) {
			return fmt.Errorf("node %d: non-finite threshold %v", i, n.Threshold)
		}
		if err := check(i, n.LeftChild, n.LeftIsLeaf); err != nil {
			return err
		}
		if err := check(i, n.RightChild, n.RightIsLeaf); err != nil {
			return err
		}
	}
	for i, p := range t.Outputs {
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("leaf %d: output %v outside [0,1]", i, p)
		}
	}
	return nil
}

// Bin drops a feature vector down the tree and returns the leaf index
func (t *DecisionTree) Bin(x []float64) int {
	if len(x) != t.FeatureSize {
		panic("feature vector had incorrect length")
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	cur := t.Nodes[0]
	for i := 0; i <= len(t.Nodes); i++ {
		if x[cur.FeatureIndex] < cur.Threshold {
			if cur.LeftIsLeaf {
				return cur.LeftChild
			}
			cur = t.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild
			}
			cur = t.Nodes[cur.RightChild]
		}
	}
	panic("tree traversal did not terminate")
}

// Evaluate returns the positive-class fraction of the leaf x falls into
func (t *DecisionTree) Evaluate(x []float64) float64 {
	return t.Outputs[t.Bin(x)]
}

// TreeParams bounds the growth of a single tree
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // Candidate features per split
}

// treeBuilder grows a CART tree with the Gini criterion. Nodes are laid
// out in pre-order so every child index is greater than its parent's.
type treeBuilder struct {
	X          [][]float64
	y          []int
	params     TreeParams
	rng        *rand.Rand
	tree       *DecisionTree
	importance []float64 // Weighted impurity decrease per feature
	nRoot      float64
}

// growTree fits a tree on the rows listed in idx (duplicates allowed for
// bootstrap samples) and returns it with its unnormalized importances.
func growTree(X [][]float64, y []int, idx []int, params TreeParams, rng *rand.Rand) (DecisionTree, []float64) {
	nf := len(X[0])
	b := &treeBuilder{
		X:          X,
		y:          y,
		params:     params,
		rng:        rng,
		tree:       &DecisionTree{FeatureSize: nf},
		importance: make([]float64, nf),
		nRoot:      float64(len(idx)),
	}
	if len(idx) == 0 {
		b.tree.Outputs = []float64{0}
		return *b.tree, b.importance
	}
	b.grow(idx, 0)
	return *b.tree, b.importance
}

func gini(pos, n float64) float64 {
	if n == 0 {
		return 0
	}
	p := pos / n
	return 1 - p*p - (1-p)*(1-p)
}

func (b *treeBuilder) leaf(pos, n float64, depth int) (int, bool) {
	if depth > b.tree.Depth {
		b.tree.Depth = depth
	}
	b.tree.Outputs = append(b.tree.Outputs, pos/n)
	return len(b.tree.Outputs) - 1, true
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // Weighted child impurity
}

func (b *treeBuilder) grow(idx []int, depth int) (int, bool) {
	n := float64(len(idx))
	var pos float64
	for _, i := range idx {
		pos += float64(b.y[i])
	}

	if depth >= b.params.MaxDepth || len(idx) < b.params.MinSamplesSplit || pos == 0 || pos == n {
		return b.leaf(pos, n, depth)
	}

	best, ok := b.bestSplit(idx, pos)
	if !ok {
		return b.leaf(pos, n, depth)
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][best.feature] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	parentImpurity := gini(pos, n)
	b.importance[best.feature] += n / b.nRoot * (parentImpurity - best.impurity)

	ni := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{FeatureIndex: best.feature, Threshold: best.threshold})
	lc, ll := b.grow(left, depth+1)
	rc, rl := b.grow(right, depth+1)
	b.tree.Nodes[ni].LeftChild, b.tree.Nodes[ni].LeftIsLeaf = lc, ll
	b.tree.Nodes[ni].RightChild, b.tree.Nodes[ni].RightIsLeaf = rc, rl
	return ni, false
}

// bestSplit searches MaxFeatures randomly drawn features for the
// midpoint threshold with the lowest weighted Gini impurity.
func (b *treeBuilder) bestSplit(idx []int, pos float64) (split, bool) {
	nf := len(b.X[0])
	mf := b.params.MaxFeatures
	if mf <= 0 || mf > nf {
		mf = nf
	}
	minLeaf := b.params.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	n := float64(len(idx))
	best := split{impurity: 2}
	found := false
	sorted := make([]int, len(idx))

	for _, f := range b.rng.Perm(nf)[:mf] {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var leftPos float64
		for k := 0; k < len(sorted)-1; k++ {
			leftPos += float64(b.y[sorted[k]])
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			if int(nl) < minLeaf || int(nr) < minLeaf {
				continue
			}
			imp := nl/n*gini(leftPos, nl) + nr/n*gini(pos-leftPos, nr)
			if imp < best.impurity {
				threshold := lo + (hi-lo)/2
				if threshold <= lo {
					threshold = hi
				}
				best = split{feature: f, threshold: threshold, impurity: imp}
				found = true
			}
		}
	}
	return best, found
}
