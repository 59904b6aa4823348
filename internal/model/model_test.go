package model

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthOne(t *testing.T) {
	node := Node{
		FeatureIndex: 0,
		Threshold:    2.5,
		LeftChild:    0,
		LeftIsLeaf:   true,
		RightChild:   1,
		RightIsLeaf:  true,
	}
	tree := DecisionTree{
		Nodes:       []Node{node},
		Outputs:     []float64{0.25, 0.9},
		FeatureSize: 1,
		Depth:       1,
	}
	require.NoError(t, tree.Validate())
	assert.Equal(t, 0, tree.Bin([]float64{1}))
	assert.Equal(t, 0.25, tree.Evaluate([]float64{1}))
	assert.Equal(t, 1, tree.Bin([]float64{2.5}))
	assert.Equal(t, 0.9, tree.Evaluate([]float64{5}))
}

func TestLeafOnlyTree(t *testing.T) {
	tree := DecisionTree{Outputs: []float64{0.4}, FeatureSize: 1}
	require.NoError(t, tree.Validate())
	assert.Equal(t, 0.4, tree.Evaluate([]float64{123}))
}

func TestValidateRejectsBackwardChild(t *testing.T) {
	tree := DecisionTree{
		Nodes: []Node{
			{FeatureIndex: 0, Threshold: 1, LeftChild: 1, RightChild: 0, RightIsLeaf: true},
			{FeatureIndex: 0, Threshold: 2, LeftChild: 0, RightChild: 1, RightIsLeaf: true},
		},
		Outputs:     []float64{0, 1},
		FeatureSize: 1,
	}
	assert.Error(t, tree.Validate())

	tree.Nodes[1].LeftIsLeaf = true
	assert.NoError(t, tree.Validate())

	tree.Outputs[0] = 1.5
	assert.Error(t, tree.Validate())
}

func TestFitScaler(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 7}, {2, 7}, {3, 7}, {4, 7}}, []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 4, s.NSamples)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 7.0, s.Mean[1])
	assert.Equal(t, 1.0, s.Scale[1], "zero deviation is stored as 1")

	out := s.TransformRow([]float64{2.5, 8})
	assert.InDelta(t, 0, out[0], 1e-12)
	assert.InDelta(t, 1, out[1], 1e-12)

	_, err = FitScaler(nil, nil)
	assert.Error(t, err)
	_, err = FitScaler([][]float64{{1}}, []string{"a", "b"})
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(303, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 61)
	assert.Len(t, train, 242)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	train2, test2, err := TrainTestSplit(303, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, other, err := TrainTestSplit(303, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test, other)

	_, _, err = TrainTestSplit(1, 0.2, 42)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, 1.0, 42)
	assert.Error(t, err)
}

func separable() ([][]float64, []int) {
	var X [][]float64
	var y []int
	for v := 160; v < 200; v++ {
		X = append(X, []float64{float64(v)})
		y = append(y, 1)
	}
	for v := 90; v < 140; v++ {
		X = append(X, []float64{float64(v)})
		y = append(y, 0)
	}
	return X, y
}

func TestFitForestSeparable(t *testing.T) {
	X, y := separable()
	f, err := FitForest(X, y, []string{"thalach"}, DefaultForestParams())
	require.NoError(t, err)

	require.Len(t, f.Trees, 100)
	for i := range f.Trees {
		require.NoError(t, f.Trees[i].Validate())
		assert.LessOrEqual(t, f.Trees[i].Depth, 10)
	}
	assert.Equal(t, 1.0, f.PredictProba([]float64{170}))
	assert.Equal(t, 0.0, f.PredictProba([]float64{120}))
	assert.Equal(t, []int{1, 0}, f.PredictAll([][]float64{{185}, {100}}))
	assert.InDelta(t, 1.0, f.Importances[0], 1e-12)
}

func TestFitForestDeterministic(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 3}, {3, 8}, {4, 1}, {5, 9}, {6, 2}, {7, 7}, {8, 4}, {9, 6}, {10, 0}}
	y := []int{0, 1, 0, 1, 1, 0, 1, 0, 1, 1}
	p := DefaultForestParams()
	p.NEstimators = 20

	a, err := FitForest(X, y, []string{"a", "b"}, p)
	require.NoError(t, err)
	b, err := FitForest(X, y, []string{"a", "b"}, p)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var sum float64
	for _, v := range a.Importances {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestFitForestRejectsBadInput(t *testing.T) {
	_, err := FitForest(nil, nil, nil, DefaultForestParams())
	assert.Error(t, err)
	_, err = FitForest([][]float64{{1}}, []int{2}, []string{"a"}, DefaultForestParams())
	assert.Error(t, err)
	_, err = FitForest([][]float64{{1}}, []int{1, 0}, []string{"a"}, DefaultForestParams())
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	rep := Classify([]int{0, 0, 1, 1}, []int{0, 1, 1, 1})

	assert.Equal(t, 0.75, rep.Accuracy)
	require.Len(t, rep.Classes, 2)

	c0 := rep.Classes[0]
	assert.Equal(t, "0", c0.Label)
	assert.Equal(t, 1.0, c0.Precision)
	assert.Equal(t, 0.5, c0.Recall)
	assert.InDelta(t, 2.0/3.0, c0.F1, 1e-12)
	assert.Equal(t, 2, c0.Support)

	c1 := rep.Classes[1]
	assert.InDelta(t, 2.0/3.0, c1.Precision, 1e-12)
	assert.Equal(t, 1.0, c1.Recall)
	assert.InDelta(t, 0.8, c1.F1, 1e-12)

	assert.InDelta(t, 5.0/6.0, rep.MacroAvg.Precision, 1e-12)
	assert.InDelta(t, 0.75, rep.MacroAvg.Recall, 1e-12)
	assert.InDelta(t, rep.MacroAvg.F1, rep.WeightedAvg.F1, 1e-12)
	assert.Equal(t, 4, rep.WeightedAvg.Support)
}

func TestClassifyZeroDivision(t *testing.T) {
	rep := Classify([]int{1, 1}, []int{0, 0})
	assert.Equal(t, 0.0, rep.Accuracy)
	assert.Equal(t, 0.0, rep.Classes[0].Precision)
	assert.Equal(t, 0.0, rep.Classes[1].Recall)
	assert.Equal(t, 0.0, rep.Classes[1].F1)
}
