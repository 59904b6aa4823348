package types

import "time"

// SourceKind identifies where a heart-rate reading came from
type SourceKind string

const (
	SourceSimulated SourceKind = "simulated"
	SourceHardware  SourceKind = "hardware"
)

// Reading is a single heart-rate observation stamped at arrival time
type Reading struct {
	HeartRate float64    `json:"heart_rate"` // Beats per minute
	Timestamp time.Time  `json:"timestamp"`  // Arrival time
	Source    SourceKind `json:"source"`
}

// Physiological bounds accepted by the detector (inclusive)
const (
	MinHeartRate = 0.0
	MaxHeartRate = 300.0
)
