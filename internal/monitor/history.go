package monitor

import (
	"sync"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
	"github.com/montanaflynn/stats"
)

// DefaultHistorySize is how many readings the dashboard keeps
const DefaultHistorySize = 100

// History is a bounded ring buffer of the most recent readings
type History struct {
	mu    sync.Mutex
	buf   []types.Reading
	start int
	n     int
}

// NewHistory creates a ring buffer holding up to capacity readings
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]types.Reading, capacity)}
}

// Add appends r, evicting the oldest reading when full
func (h *History) Add(r types.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = r
		h.n++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of buffered readings
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Cap returns the buffer capacity
func (h *History) Cap() int {
	return len(h.buf)
}

// Snapshot returns the buffered readings, oldest first
func (h *History) Snapshot() []types.Reading {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]types.Reading, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Stats summarizes the buffered heart rates
type Stats struct {
	Count   int     `json:"count"`
	Current float64 `json:"current"`
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
}

// Stats computes quick statistics over the buffer
func (h *History) Stats() Stats {
	readings := h.Snapshot()
	if len(readings) == 0 {
		return Stats{}
	}
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.HeartRate
	}

	s := Stats{Count: len(values), Current: values[len(values)-1]}
	s.Mean, _ = stats.Mean(values)
	s.Min, _ = stats.Min(values)
	s.Max, _ = stats.Max(values)
	s.StdDev, _ = stats.StandardDeviationPopulation(values)
	return s
}
