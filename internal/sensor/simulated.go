package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
)

// Parameters of simulated heart rate
const (
	SimulatedMean   = 146.0
	SimulatedStdDev = 27.0
)

// SimulatedSource draws readings from N(146, 27) with a fixed seed so a
// run is reproducible. Samples are not clamped; out-of-range values are
// left for the detector to reject.
type SimulatedSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	mean   float64
	stddev float64
	now    func() time.Time
	closed bool
}

// NewSimulated creates a simulated source
func NewSimulated(seed int64) *SimulatedSource {
	return &SimulatedSource{
		rng:    rand.New(rand.NewSource(seed)),
		mean:   SimulatedMean,
		stddev: SimulatedStdDev,
		now:    time.Now,
	}
}

// Next returns the next sample without blocking
func (s *SimulatedSource) Next(ctx context.Context) (types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return types.Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Reading{}, ErrClosed
	}
	return types.Reading{
		HeartRate: s.mean + s.stddev*s.rng.NormFloat64(),
		Timestamp: s.now(),
		Source:    types.SourceSimulated,
	}, nil
}

// Kind reports the simulated source kind
func (s *SimulatedSource) Kind() types.SourceKind {
	return types.SourceSimulated
}

// Close stops the source
func (s *SimulatedSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
