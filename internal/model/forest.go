package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ForestParams configures random forest training
type ForestParams struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 selects floor(sqrt(n_features)), at least 1
	Bootstrap       bool
	Seed            int64
}

// DefaultForestParams returns 100 trees of depth at most 10 that only
// split nodes with 5 or more samples, seeded with 42.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

// Forest is an ensemble of classification trees whose leaf outputs are
// averaged into a positive-class probability. Immutable after training.
type Forest struct {
	Trees        []DecisionTree
	FeatureNames []string
	Importances  []float64 // Mean decrease in impurity, sums to 1
	Params       ForestParams
	TrainingID   string
}

// NumFeatures returns the expected feature vector length
func (f *Forest) NumFeatures() int {
	return len(f.FeatureNames)
}

// FitForest trains a random forest on X and binary labels y
func FitForest(X [][]float64, y []int, names []string, p ForestParams) (*Forest, error) {
	if len(X) == 0 {
		return nil, errors.New("fit forest: no samples")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("fit forest: %d rows but %d labels", len(X), len(y))
	}
	nf := len(X[0])
	if nf == 0 || len(names) != nf {
		return nil, fmt.Errorf("fit forest: %d feature names for %d features", len(names), nf)
	}
	if p.NEstimators < 1 {
		return nil, errors.New("fit forest: need at least one estimator")
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("fit forest: label %d at row %d is not binary", label, i)
		}
	}

	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nf)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	tp := TreeParams{
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
		MaxFeatures:     maxFeatures,
	}

	forest := &Forest{
		Trees:        make([]DecisionTree, p.NEstimators),
		FeatureNames: append([]string(nil), names...),
		Importances:  make([]float64, nf),
		Params:       p,
	}

	master := rand.New(rand.NewSource(p.Seed))
	n := len(X)
	for t := range forest.Trees {
		rng := rand.New(rand.NewSource(master.Int63()))

		idx := make([]int, n)
		for i := range idx {
			if p.Bootstrap {
				idx[i] = rng.Intn(n)
			} else {
				idx[i] = i
			}
		}

		tree, imp := growTree(X, y, idx, tp, rng)
		forest.Trees[t] = tree
		if normalize(imp) {
			for j, v := range imp {
				forest.Importances[j] += v
			}
		}
	}

	for j := range forest.Importances {
		forest.Importances[j] /= float64(p.NEstimators)
	}
	normalize(forest.Importances)
	return forest, nil
}

// normalize scales v to sum to one, reporting false when it sums to zero
func normalize(v []float64) bool {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return false
	}
	for i := range v {
		v[i] /= sum
	}
	return true
}

// PredictProba returns the mean positive-class fraction over all trees
func (f *Forest) PredictProba(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Evaluate(x)
	}
	return sum / float64(len(f.Trees))
}

// Predict returns the majority class, 1 when the probability exceeds one half
func (f *Forest) Predict(x []float64) int {
	if f.PredictProba(x) > 0.5 {
		return 1
	}
	return 0
}

// PredictAll classifies every row of X
func (f *Forest) PredictAll(X [][]float64) []int {
	out := make([]int, len(X))
	for i, x := range X {
		out[i] = f.Predict(x)
	}
	return out
}
