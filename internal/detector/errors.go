package detector

import "fmt"

// InvalidInputError rejects a heart rate that is not finite or falls
// outside the physiological range. The model is not consulted.
type InvalidInputError struct {
	HeartRate float64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid heart rate %v: must be finite and within [%g, %g] BPM", e.HeartRate, MinHeartRate, MaxHeartRate)
}
