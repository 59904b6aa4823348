// Package artifact persists trained models in a self-describing binary
// envelope using the protobuf wire format. Every file carries its kind,
// a format version and the feature names it was fitted on, so readers
// can reject foreign, newer or mis-shaped files before use.
package artifact

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion is the newest envelope version this package reads and writes
const FormatVersion = 1

// Artifact kinds
const (
	KindScaler = "epilepsy.scaler"
	KindForest = "epilepsy.forest"
)

// Envelope field numbers
const (
	fieldKind         protowire.Number = 1
	fieldVersion      protowire.Number = 2
	fieldFeatureNames protowire.Number = 3
	fieldPayload      protowire.Number = 4
	fieldTrainingID   protowire.Number = 5
)

// Envelope is the decoded outer message of an artifact file
type Envelope struct {
	Kind          string
	FormatVersion uint64
	FeatureNames  []string
	Payload       []byte
	TrainingID    string // Shared by the scaler and forest of one run
}

func encodeEnvelope(e Envelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.BytesType)
	b = protowire.AppendString(b, e.Kind)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, e.FormatVersion)
	for _, name := range e.FeatureNames {
		b = protowire.AppendTag(b, fieldFeatureNames, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Payload)
	if e.TrainingID != "" {
		b = protowire.AppendTag(b, fieldTrainingID, protowire.BytesType)
		b = protowire.AppendString(b, e.TrainingID)
	}
	return b
}

// decodeEnvelope parses the outer message and checks kind and version
func decodeEnvelope(b []byte, wantKind string) (Envelope, error) {
	var e Envelope
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldKind && typ == protowire.BytesType:
			e.Kind = string(v)
		case num == fieldVersion && typ == protowire.VarintType:
			e.FormatVersion = x
		case num == fieldFeatureNames && typ == protowire.BytesType:
			e.FeatureNames = append(e.FeatureNames, string(v))
		case num == fieldPayload && typ == protowire.BytesType:
			e.Payload = v
		case num == fieldTrainingID && typ == protowire.BytesType:
			e.TrainingID = string(v)
		}
		return nil
	})
	if err != nil {
		return e, err
	}
	if e.Kind != wantKind {
		return e, fmt.Errorf("%w: %q, expected %q", ErrUnknownKind, e.Kind, wantKind)
	}
	if e.FormatVersion == 0 || e.FormatVersion > FormatVersion {
		return e, fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.FormatVersion)
	}
	if e.Payload == nil {
		return e, errors.New("artifact has no payload")
	}
	return e, nil
}

// walk visits every field of a message. Bytes fields arrive in v,
// varint and fixed64 fields in x. Unknown groups are skipped.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			x, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 && v == nil {
				v = []byte{}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := visit(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

func appendDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func consumeDoubles(v []byte) ([]float64, error) {
	if len(v)%8 != 0 {
		return nil, errors.New("packed doubles: truncated")
	}
	out := make([]float64, 0, len(v)/8)
	for len(v) > 0 {
		x, n := protowire.ConsumeFixed64(v)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float64frombits(x))
		v = v[n:]
	}
	return out, nil
}

func appendUint(b []byte, num protowire.Number, x uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, x)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// toInt converts a decoded varint, rejecting values that do not fit
func toInt(x uint64) (int, error) {
	if x > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of range", x)
	}
	return int(x), nil
}
