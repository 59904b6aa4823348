package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/sensor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
)

// DefaultInterval is the tick cadence
const DefaultInterval = time.Second

// Evaluator scores a single heart rate
type Evaluator interface {
	Evaluate(heartRate float64) (detector.Decision, error)
}

// TickListener receives every tick. Listeners run on the loop goroutine
// and must not block.
type TickListener func(Tick)

// Loop reads one sample per tick, evaluates it once and reuses that
// decision for both the episode log and the displayed status.
type Loop struct {
	source      sensor.Source
	eval        Evaluator
	state       *State
	rooms       *sensor.RoomSimulator
	metrics     *metrics.Metrics
	interval    time.Duration
	readTimeout time.Duration
	simulation  bool
	now         func() time.Time

	mu        sync.Mutex
	listeners []TickListener
	seq       uint64
}

// LoopOption configures a Loop
type LoopOption func(*Loop)

// WithInterval sets the tick cadence
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithRooms attaches the room motion simulator
func WithRooms(r *sensor.RoomSimulator) LoopOption {
	return func(l *Loop) {
		l.rooms = r
	}
}

// WithLoopMetrics records loop counters
func WithLoopMetrics(m *metrics.Metrics) LoopOption {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithSimulation marks ticks as coming from the simulated source
func WithSimulation(simulated bool) LoopOption {
	return func(l *Loop) {
		l.simulation = simulated
	}
}

// NewLoop wires a source and evaluator to the dashboard state. A nil
// evaluator makes every tick unavailable.
func NewLoop(source sensor.Source, eval Evaluator, state *State, opts ...LoopOption) *Loop {
	l := &Loop{
		source:   source,
		eval:     eval,
		state:    state,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.readTimeout == 0 {
		l.readTimeout = 2 * l.interval
	}
	state.SetMode(source.Kind(), l.simulation, eval != nil)
	if l.metrics != nil {
		l.metrics.SetSimulation(l.simulation)
	}
	return l
}

// OnTick registers a listener for every subsequent tick
func (l *Loop) OnTick(fn TickListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Interval returns the tick cadence
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Run ticks until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	logger.Info("Loop", "Monitoring started (interval=%v, source=%s)", l.interval, l.source.Kind())
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if _, err := l.Step(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("Loop", "Monitoring stopped")
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			logger.Info("Loop", "Monitoring stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs exactly one tick. It only fails when ctx is done.
func (l *Loop) Step(ctx context.Context) (Tick, error) {
	if err := ctx.Err(); err != nil {
		return Tick{}, err
	}

	l.mu.Lock()
	l.seq++
	tick := Tick{Seq: l.seq, Time: l.now(), Simulation: l.simulation}
	listeners := append([]TickListener(nil), l.listeners...)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.Ticks.Add(1)
	}
	if l.rooms != nil {
		tick.Rooms = l.rooms.Step()
	} else {
		tick.Rooms = l.state.currentRooms()
	}

	readCtx, cancel := context.WithTimeout(ctx, l.readTimeout)
	reading, err := l.source.Next(readCtx)
	cancel()

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return Tick{}, ctx.Err()
		}
		tick.Status = StatusUnavailable
		tick.Error = err.Error()
		logger.Warn("Loop", "Reading unavailable: %v", err)
		if l.metrics != nil {
			l.metrics.SourceErrors.Add(1)
		}
	case l.eval == nil:
		tick.Status = StatusUnavailable
		tick.Error = "detector not initialized"
		if l.reject(&tick, detector.Validate(reading.HeartRate)) {
			break
		}
		l.accept(&tick, reading)
	default:
		dec, err := l.eval.Evaluate(reading.HeartRate)
		if l.reject(&tick, err) {
			break
		}
		l.accept(&tick, reading)
		l.record(&tick, dec)
	}

	if l.metrics != nil && tick.Status == StatusUnavailable {
		l.metrics.UnavailableTicks.Add(1)
	}

	l.state.apply(tick)
	for _, fn := range listeners {
		fn(tick)
	}
	return tick, nil
}

// reject marks the tick for a failed evaluation. Rejected readings never
// reach the history or the tick, so non-finite values cannot be published.
func (l *Loop) reject(tick *Tick, err error) bool {
	if err == nil {
		return false
	}
	var invalid *detector.InvalidInputError
	if errors.As(err, &invalid) {
		tick.Status = StatusInvalid
		if l.metrics != nil {
			l.metrics.InvalidInputs.Add(1)
		}
		logger.Debug("Loop", "Rejected reading: %v", err)
	} else {
		tick.Status = StatusUnavailable
		logger.Error("Loop", "Evaluation failed: %v", err)
	}
	tick.Error = err.Error()
	return true
}

func (l *Loop) accept(tick *Tick, reading types.Reading) {
	tick.Reading = &reading
	l.state.history.Add(reading)
	if l.metrics != nil {
		l.metrics.Readings.Add(1)
		l.metrics.LastHeartRate.Store(reading.HeartRate)
	}
}

func (l *Loop) record(tick *Tick, dec detector.Decision) {
	tick.Decision = &dec
	if l.metrics != nil {
		l.metrics.LastProbability.Store(dec.Probability)
	}
	if !dec.Episode {
		tick.Status = StatusNormal
		return
	}

	tick.Status = StatusEpisode
	ep := l.state.episodes.Record(tick.Time, dec, tick.Rooms.LastLocation)
	tick.Episode = &ep
	if l.metrics != nil {
		l.metrics.Episodes.Add(1)
	}
	logger.Warn("Loop", "Possible episode: %.0f BPM (p=%.2f) in %s", dec.HeartRate, dec.Probability, ep.Location)
}
