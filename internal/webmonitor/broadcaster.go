package webmonitor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
)

// SerializedEvent holds a tick serialized once for every subscriber.
type SerializedEvent struct {
	Seq      uint64
	JSONData []byte
}

// TickBroadcaster fans ticks out to SSE, websocket and WebRTC clients.
// Sends never block: a client whose buffer is full misses the tick.
type TickBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	last    *SerializedEvent
	metrics *metrics.Metrics
	sinks   []func([]byte)
}

// NewTickBroadcaster creates an empty broadcaster
func NewTickBroadcaster(m *metrics.Metrics) *TickBroadcaster {
	return &TickBroadcaster{
		clients: make(map[int]chan *SerializedEvent),
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving ticks.
// The most recent tick, if any, is delivered first.
func (tb *TickBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	id := tb.nextID
	tb.nextID++
	ch := make(chan *SerializedEvent, 8)
	if tb.last != nil {
		ch <- tb.last
	}
	tb.clients[id] = ch
	if tb.metrics != nil {
		tb.metrics.ClientConnected()
	}

	logger.Debug("TickBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(tb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (tb *TickBroadcaster) Unsubscribe(id int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if ch, ok := tb.clients[id]; ok {
		close(ch)
		delete(tb.clients, id)
		if tb.metrics != nil {
			tb.metrics.ClientDisconnected()
		}
		logger.Debug("TickBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(tb.clients))
	}
}

// AddSink registers a raw consumer of every serialized tick, such as
// the websocket hub or the WebRTC server. Sinks must not block.
func (tb *TickBroadcaster) AddSink(fn func([]byte)) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.sinks = append(tb.sinks, fn)
}

// ClientCount returns the number of channel subscribers
func (tb *TickBroadcaster) ClientCount() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.clients)
}

// Publish serializes t once and fans it out. It is a monitor.TickListener.
func (tb *TickBroadcaster) Publish(t monitor.Tick) {
	data, err := json.Marshal(t)
	if err != nil {
		logger.Error("TickBroadcaster", "Failed to serialize tick %d: %v", t.Seq, err)
		return
	}
	event := &SerializedEvent{Seq: t.Seq, JSONData: data}

	tb.mu.Lock()
	tb.last = event
	sinks := tb.sinks
	for id, ch := range tb.clients {
		select {
		case ch <- event:
		default:
			if tb.metrics != nil {
				tb.metrics.TicksDropped.Add(1)
			}
			logger.Debug("TickBroadcaster", "Client #%d too slow, dropped tick %d", id, t.Seq)
		}
	}
	tb.mu.Unlock()

	for _, sink := range sinks {
		sink(data)
	}
}

// FrameBroadcaster renders simulated camera frames and fans them out.
type FrameBroadcaster struct {
	mu        sync.Mutex
	clients   map[int]chan []byte
	nextID    int
	state     *monitor.State
	recorder  *RecorderState
	interval  time.Duration
	stop      chan struct{}
	stopped   bool
	skipCount int
}

// NewFrameBroadcaster creates a broadcaster that renders overlay frames
// from the current dashboard state.
func NewFrameBroadcaster(state *monitor.State, recorder *RecorderState, interval time.Duration) *FrameBroadcaster {
	return &FrameBroadcaster{
		clients:  make(map[int]chan []byte),
		state:    state,
		recorder: recorder,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2)
	fb.clients[id] = ch

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
		if len(fb.clients) == 0 && !fb.recorder.Active() {
			logger.Info("FrameBroadcaster", "No clients remaining - frame generation will be skipped")
		}
	}
}

// Start begins the frame generation and broadcast loop.
func (fb *FrameBroadcaster) Start() {
	go fb.run()
}

// Stop halts the broadcaster.
func (fb *FrameBroadcaster) Stop() {
	fb.mu.Lock()
	if !fb.stopped {
		close(fb.stop)
		fb.stopped = true
	}
	fb.mu.Unlock()
}

func (fb *FrameBroadcaster) run() {
	ticker := time.NewTicker(fb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-fb.stop:
			return
		case <-ticker.C:
		}

		fb.mu.Lock()
		clientCount := len(fb.clients)
		fb.mu.Unlock()

		// Frames are only rendered for viewers or an active recording
		if clientCount == 0 && !fb.recorder.Active() {
			fb.skipCount++
			if fb.skipCount%50 == 0 {
				logger.Debug("FrameBroadcaster", "No clients connected (idle for %d cycles)", fb.skipCount)
			}
			continue
		}
		fb.skipCount = 0

		frame, err := renderFrame(fb.state.Snapshot(), time.Now())
		if err != nil {
			logger.Warn("FrameBroadcaster", "Failed to render frame: %v", err)
			continue
		}
		fb.recorder.AddFrame(len(frame))
		fb.broadcast(frame)
	}
}

func (fb *FrameBroadcaster) broadcast(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame
		}
	}
}
