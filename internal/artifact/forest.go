package artifact

import (
	"errors"
	"fmt"
	"math"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
	"google.golang.org/protobuf/encoding/protowire"
)

// Forest payload fields
const (
	forestTrees       protowire.Number = 1
	forestImportances protowire.Number = 2
	forestParams      protowire.Number = 3
)

// Tree message fields
const (
	treeNodes       protowire.Number = 1
	treeOutputs     protowire.Number = 2
	treeFeatureSize protowire.Number = 3
	treeDepth       protowire.Number = 4
)

// Node message fields
const (
	nodeFeature   protowire.Number = 1
	nodeThreshold protowire.Number = 2
	nodeLeft      protowire.Number = 3
	nodeLeftLeaf  protowire.Number = 4
	nodeRight     protowire.Number = 5
	nodeRightLeaf protowire.Number = 6
)

// Params message fields
const (
	paramEstimators  protowire.Number = 1
	paramMaxDepth    protowire.Number = 2
	paramMinSplit    protowire.Number = 3
	paramMinLeaf     protowire.Number = 4
	paramMaxFeatures protowire.Number = 5
	paramBootstrap   protowire.Number = 6
	paramSeed        protowire.Number = 7
)

// EncodeForest serializes a trained forest
func EncodeForest(f *model.Forest) []byte {
	var p []byte
	for i := range f.Trees {
		p = appendMessage(p, forestTrees, encodeTree(&f.Trees[i]))
	}
	p = appendDoubles(p, forestImportances, f.Importances)
	p = appendMessage(p, forestParams, encodeParams(f.Params))

	return encodeEnvelope(Envelope{
		Kind:          KindForest,
		FormatVersion: FormatVersion,
		FeatureNames:  f.FeatureNames,
		Payload:       p,
		TrainingID:    f.TrainingID,
	})
}

func encodeTree(t *model.DecisionTree) []byte {
	var b []byte
	for _, n := range t.Nodes {
		var nb []byte
		nb = appendUint(nb, nodeFeature, uint64(n.FeatureIndex))
		nb = protowire.AppendTag(nb, nodeThreshold, protowire.Fixed64Type)
		nb = protowire.AppendFixed64(nb, math.Float64bits(n.Threshold))
		nb = appendUint(nb, nodeLeft, uint64(n.LeftChild))
		nb = appendBool(nb, nodeLeftLeaf, n.LeftIsLeaf)
		nb = appendUint(nb, nodeRight, uint64(n.RightChild))
		nb = appendBool(nb, nodeRightLeaf, n.RightIsLeaf)
		b = appendMessage(b, treeNodes, nb)
	}
	b = appendDoubles(b, treeOutputs, t.Outputs)
	b = appendUint(b, treeFeatureSize, uint64(t.FeatureSize))
	b = appendUint(b, treeDepth, uint64(t.Depth))
	return b
}

func encodeParams(p model.ForestParams) []byte {
	var b []byte
	b = appendUint(b, paramEstimators, uint64(p.NEstimators))
	b = appendUint(b, paramMaxDepth, uint64(p.MaxDepth))
	b = appendUint(b, paramMinSplit, uint64(p.MinSamplesSplit))
	b = appendUint(b, paramMinLeaf, uint64(p.MinSamplesLeaf))
	b = appendUint(b, paramMaxFeatures, uint64(p.MaxFeatures))
	b = appendBool(b, paramBootstrap, p.Bootstrap)
	b = appendUint(b, paramSeed, protowire.EncodeZigZag(p.Seed))
	return b
}

// DecodeForest parses and validates a forest artifact
func DecodeForest(b []byte) (*model.Forest, error) {
	env, err := decodeEnvelope(b, KindForest)
	if err != nil {
		return nil, err
	}

	f := &model.Forest{FeatureNames: env.FeatureNames, TrainingID: env.TrainingID}
	err = walk(env.Payload, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case forestTrees:
			t, err := decodeTree(v)
			if err != nil {
				return fmt.Errorf("tree %d: %w", len(f.Trees), err)
			}
			f.Trees = append(f.Trees, t)
		case forestImportances:
			imp, err := consumeDoubles(v)
			if err != nil {
				return err
			}
			f.Importances = imp
		case forestParams:
			p, err := decodeParams(v)
			if err != nil {
				return err
			}
			f.Params = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	nf := len(env.FeatureNames)
	if nf == 0 || len(f.Importances) != nf {
		return nil, fmt.Errorf("%w: %d names, %d importances", ErrShapeMismatch, nf, len(f.Importances))
	}
	for j, v := range f.Importances {
		if !(v >= 0 && v <= 1) {
			return nil, fmt.Errorf("importance %d: %v outside [0,1]", j, v)
		}
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	for i := range f.Trees {
		if f.Trees[i].FeatureSize != nf {
			return nil, fmt.Errorf("%w: tree %d expects %d features, forest has %d", ErrShapeMismatch, i, f.Trees[i].FeatureSize, nf)
		}
		if err := f.Trees[i].Validate(); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return f, nil
}

func decodeTree(b []byte) (model.DecisionTree, error) {
	var t model.DecisionTree
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch {
		case num == treeNodes && typ == protowire.BytesType:
			var n model.Node
			n, err = decodeNode(v)
			t.Nodes = append(t.Nodes, n)
		case num == treeOutputs && typ == protowire.BytesType:
			t.Outputs, err = consumeDoubles(v)
		case num == treeFeatureSize && typ == protowire.VarintType:
			t.FeatureSize, err = toInt(x)
		case num == treeDepth && typ == protowire.VarintType:
			t.Depth, err = toInt(x)
		}
		return err
	})
	return t, err
}

func decodeNode(b []byte) (model.Node, error) {
	var n model.Node
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch {
		case num == nodeThreshold && typ == protowire.Fixed64Type:
			n.Threshold = math.Float64frombits(x)
		case typ != protowire.VarintType:
		case num == nodeFeature:
			n.FeatureIndex, err = toInt(x)
		case num == nodeLeft:
			n.LeftChild, err = toInt(x)
		case num == nodeLeftLeaf:
			n.LeftIsLeaf = protowire.DecodeBool(x)
		case num == nodeRight:
			n.RightChild, err = toInt(x)
		case num == nodeRightLeaf:
			n.RightIsLeaf = protowire.DecodeBool(x)
		}
		return err
	})
	return n, err
}

func decodeParams(b []byte) (model.ForestParams, error) {
	var p model.ForestParams
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if typ != protowire.VarintType {
			return nil
		}
		var err error
		switch num {
		case paramEstimators:
			p.NEstimators, err = toInt(x)
		case paramMaxDepth:
			p.MaxDepth, err = toInt(x)
		case paramMinSplit:
			p.MinSamplesSplit, err = toInt(x)
		case paramMinLeaf:
			p.MinSamplesLeaf, err = toInt(x)
		case paramMaxFeatures:
			p.MaxFeatures, err = toInt(x)
		case paramBootstrap:
			p.Bootstrap = protowire.DecodeBool(x)
		case paramSeed:
			p.Seed = protowire.DecodeZigZag(x)
		}
		return err
	})
	return p, err
}
