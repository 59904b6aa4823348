package webmonitor

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Environment is the simulated room climate shown on the dashboard.
type Environment struct {
	Temperature Metric   `json:"temperature"`
	Humidity    Metric   `json:"humidity"`
	CO2         Metric   `json:"co2"`
	AirQuality  Metric   `json:"air_quality"`
	VOC         Metric   `json:"voc"`
	Lighting    Lighting `json:"lighting"`
}

// Lighting is the fixed lighting panel state
type Lighting struct {
	MainLight  string `json:"main_light"`
	NightLight string `json:"night_light"`
	AutoAdjust bool   `json:"auto_adjust"`
}

// EnvironmentSimulator random-walks temperature, humidity and CO2
// around comfortable indoor values.
type EnvironmentSimulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	temperature float64
	humidity    float64
	co2         float64
}

// NewEnvironmentSimulator starts at 22°C, 45% humidity and 400 ppm
func NewEnvironmentSimulator(seed int64) *EnvironmentSimulator {
	return &EnvironmentSimulator{
		rng:         rand.New(rand.NewSource(seed)),
		temperature: 22,
		humidity:    45,
		co2:         400,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func airQuality(co2 float64) string {
	switch {
	case co2 < 800:
		return "Good"
	case co2 < 1200:
		return "Moderate"
	default:
		return "Poor"
	}
}

// Sample advances the walk by one step and returns the readings
func (e *EnvironmentSimulator) Sample() Environment {
	e.mu.Lock()
	defer e.mu.Unlock()

	dt := e.rng.NormFloat64() * 0.3
	dh := e.rng.NormFloat64() * 1.0
	dc := e.rng.NormFloat64() * 5.0
	prevT, prevH, prevC := e.temperature, e.humidity, e.co2
	e.temperature = clamp(e.temperature+dt, 18, 30)
	e.humidity = clamp(e.humidity+dh, 30, 60)
	e.co2 = clamp(e.co2+dc, 350, 1500)

	return Environment{
		Temperature: Metric{Label: "Current Temperature", Value: fmt.Sprintf("%.1f°C", e.temperature), Delta: fmt.Sprintf("%+.1f°C", e.temperature-prevT)},
		Humidity:    Metric{Label: "Humidity", Value: fmt.Sprintf("%.0f%%", e.humidity), Delta: fmt.Sprintf("%+.0f%%", e.humidity-prevH)},
		CO2:         Metric{Label: "CO2 Level", Value: fmt.Sprintf("%.0f ppm", e.co2), Delta: fmt.Sprintf("%+.0f ppm", e.co2-prevC)},
		AirQuality:  Metric{Label: "Air Quality", Value: airQuality(e.co2), Delta: "stable"},
		VOC:         Metric{Label: "VOC Level", Value: "Low", Delta: "stable"},
		Lighting:    Lighting{MainLight: "Off", NightLight: "Dim", AutoAdjust: true},
	}
}

// roomWidgets are the fixed door, window and movement tiles
func roomWidgets(anyMotion bool) []Metric {
	movement := Metric{Label: "Movement Level", Value: "Low", Delta: "-2%"}
	if anyMotion {
		movement = Metric{Label: "Movement Level", Value: "Moderate", Delta: "+5%"}
	}
	return []Metric{
		{Label: "Door Status", Value: "Closed", Delta: "Locked"},
		{Label: "Window Status", Value: "Closed", Delta: "Secured"},
		movement,
	}
}
