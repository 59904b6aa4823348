package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit variance.
// It is immutable once fitted.
type Scaler struct {
	Mean         []float64
	Scale        []float64 // Population standard deviation, 1 where it is zero
	NSamples     int
	FeatureNames []string
	TrainingID   string // Pairs the scaler with the forest of the same run
}

// FitScaler estimates per-feature mean and scale from X
func FitScaler(X [][]float64, names []string) (*Scaler, error) {
	if len(X) == 0 {
		return nil, errors.New("fit scaler: no samples")
	}
	nf := len(X[0])
	if nf == 0 {
		return nil, errors.New("fit scaler: no features")
	}
	if len(names) != nf {
		return nil, fmt.Errorf("fit scaler: %d feature names for %d features", len(names), nf)
	}

	s := &Scaler{
		Mean:         make([]float64, nf),
		Scale:        make([]float64, nf),
		NSamples:     len(X),
		FeatureNames: append([]string(nil), names...),
	}
	col := make([]float64, len(X))
	for j := 0; j < nf; j++ {
		for i, row := range X {
			if len(row) != nf {
				return nil, fmt.Errorf("fit scaler: row %d has %d features, want %d", i, len(row), nf)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// NumFeatures returns the expected feature vector length
func (s *Scaler) NumFeatures() int {
	return len(s.Mean)
}

// TransformRow returns a standardized copy of x
func (s *Scaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// Transform returns a standardized copy of X
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}
