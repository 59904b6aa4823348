package artifact

import (
	"fmt"
	"math"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
	"google.golang.org/protobuf/encoding/protowire"
)

// Scaler payload fields
const (
	scalerMean     protowire.Number = 1
	scalerScale    protowire.Number = 2
	scalerNSamples protowire.Number = 3
)

// EncodeScaler serializes a fitted scaler
func EncodeScaler(s *model.Scaler) []byte {
	var p []byte
	p = appendDoubles(p, scalerMean, s.Mean)
	p = appendDoubles(p, scalerScale, s.Scale)
	p = appendUint(p, scalerNSamples, uint64(s.NSamples))

	return encodeEnvelope(Envelope{
		Kind:          KindScaler,
		FormatVersion: FormatVersion,
		FeatureNames:  s.FeatureNames,
		Payload:       p,
		TrainingID:    s.TrainingID,
	})
}

// DecodeScaler parses and validates a scaler artifact
func DecodeScaler(b []byte) (*model.Scaler, error) {
	env, err := decodeEnvelope(b, KindScaler)
	if err != nil {
		return nil, err
	}

	s := &model.Scaler{FeatureNames: env.FeatureNames, TrainingID: env.TrainingID}
	err = walk(env.Payload, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch {
		case num == scalerMean && typ == protowire.BytesType:
			s.Mean, err = consumeDoubles(v)
		case num == scalerScale && typ == protowire.BytesType:
			s.Scale, err = consumeDoubles(v)
		case num == scalerNSamples && typ == protowire.VarintType:
			s.NSamples, err = toInt(x)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	nf := len(env.FeatureNames)
	if nf == 0 || len(s.Mean) != nf || len(s.Scale) != nf {
		return nil, fmt.Errorf("%w: %d names, %d means, %d scales", ErrShapeMismatch, nf, len(s.Mean), len(s.Scale))
	}
	for j := range s.Scale {
		if s.Scale[j] <= 0 || math.IsNaN(s.Scale[j]) || math.IsInf(s.Scale[j], 0) || math.IsNaN(s.Mean[j]) || math.IsInf(s.Mean[j], 0) {
			return nil, fmt.Errorf("scaler feature %d: invalid mean %v or scale %v", j, s.Mean[j], s.Scale[j])
		}
	}
	return s, nil
}
