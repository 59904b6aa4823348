package webmonitor

import (
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/sensor"
)

// Thresholds are the fixed detector cut-offs shown on the dashboard.
type Thresholds struct {
	Probability float64 `json:"probability"`
	HeartRate   float64 `json:"heart_rate"`
}

// StatusPayload is the body of /api/status.
type StatusPayload struct {
	monitor.Snapshot
	HeartRate   *float64   `json:"heart_rate"`
	Probability *float64   `json:"probability"`
	Thresholds  Thresholds `json:"thresholds"`
	Timestamp   float64    `json:"timestamp"`
}

// EpisodeView is an episode with a human readable age.
type EpisodeView struct {
	monitor.Episode
	Age string `json:"age"`
}

// Metric mirrors a dashboard metric tile: a value and its change.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Delta string `json:"delta"`
}

// RoomsPayload is the body of /api/rooms.
type RoomsPayload struct {
	sensor.RoomSnapshot
	Widgets []Metric `json:"widgets"`
}

// HealthPayload is the body of /health.
type HealthPayload struct {
	Status        string  `json:"status"`
	DetectorReady bool    `json:"detector_ready"`
	Source        string  `json:"source"`
	Simulation    bool    `json:"simulation"`
	Clients       int     `json:"clients"`
	Uptime        float64 `json:"uptime_seconds"`
}
