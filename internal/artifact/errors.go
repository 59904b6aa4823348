package artifact

import (
	"errors"
	"fmt"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
)

var (
	// ErrShapeMismatch marks an artifact whose dimensions disagree with
	// its own header or with what the consumer expects
	ErrShapeMismatch = errors.New("artifact shape mismatch")
	// ErrUnknownKind marks a file holding a different artifact type
	ErrUnknownKind = errors.New("unknown artifact kind")
	// ErrUnsupportedVersion marks a format newer than this build reads
	ErrUnsupportedVersion = errors.New("unsupported artifact format version")
	// ErrMismatchedPair marks a scaler and forest from different training runs
	ErrMismatchedPair = errors.New("scaler and model come from different training runs")
)

// MissingError reports an artifact file that does not exist
type MissingError struct {
	Path string
	Err  error
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("artifact missing: %s: %v", e.Path, e.Err)
}

func (e *MissingError) Unwrap() error {
	return e.Err
}

// CorruptError reports an artifact that exists but cannot be used
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("artifact corrupt: %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// CheckFeatureCount fails with a CorruptError wrapping ErrShapeMismatch
// when an artifact's feature count differs from want
func CheckFeatureCount(path string, got, want int) error {
	if got != want {
		return &CorruptError{Path: path, Err: fmt.Errorf("%w: %d features, expected %d", ErrShapeMismatch, got, want)}
	}
	return nil
}

// CheckPair fails with a CorruptError wrapping ErrMismatchedPair when the
// scaler and forest were not written by the same training run
func CheckPair(modelPath string, s *model.Scaler, f *model.Forest) error {
	if s.TrainingID != f.TrainingID {
		return &CorruptError{Path: modelPath, Err: fmt.Errorf("%w: scaler %q, model %q", ErrMismatchedPair, s.TrainingID, f.TrainingID)}
	}
	return nil
}
