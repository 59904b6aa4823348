package webmonitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
	"github.com/dustin/go-humanize"
)

// PeerServer answers WebRTC offers and receives every serialized tick.
type PeerServer interface {
	HandleOffer(offerJSON []byte) ([]byte, error)
	Broadcast(data []byte)
	ClientCount() int
}

// Server serves the dashboard endpoints.
type Server struct {
	cfg      Config
	state    *monitor.State
	ticks    *TickBroadcaster
	frames   *FrameBroadcaster
	recorder *RecorderState
	hub      *Hub
	settings *SettingsStore
	env      *EnvironmentSimulator
	peers    PeerServer
	metrics  *metrics.Metrics
	fallback []byte
	now      func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithPeerServer enables /api/webrtc/offer and pushes ticks to peers
func WithPeerServer(p PeerServer) Option {
	return func(s *Server) {
		s.peers = p
	}
}

// WithMetrics counts clients and serves /metrics on the dashboard mux
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer returns a dashboard server over state. Call Start before
// serving and register Publish as a loop tick listener.
func NewServer(cfg Config, state *monitor.State, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.withDefaults(),
		state:    state,
		settings: NewSettingsStore(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.env = NewEnvironmentSimulator(s.cfg.EnvironmentSeed)
	s.recorder = NewRecorderState(s.cfg.RecordingOutputPath, s.metrics)
	s.ticks = NewTickBroadcaster(s.metrics)
	s.frames = NewFrameBroadcaster(state, s.recorder, s.cfg.MJPEGInterval)
	s.hub = newHub(s.metrics)
	s.ticks.AddSink(s.hub.broadcastText)
	if s.peers != nil {
		s.ticks.AddSink(s.peers.Broadcast)
	}

	if frame, err := renderFrame(state.Snapshot(), s.now()); err == nil {
		s.fallback = frame
	} else {
		logger.Warn("WebMonitor", "Failed to render fallback frame: %v", err)
	}
	return s
}

// Start launches the camera frame generator
func (s *Server) Start() {
	s.frames.Start()
}

// Stop halts background generators
func (s *Server) Stop() {
	s.frames.Stop()
}

// Publish fans a tick out to every live client. Use it as a
// monitor.TickListener.
func (s *Server) Publish(t monitor.Tick) {
	s.ticks.Publish(t)
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/assets/", http.StripPrefix("/assets/", newAssetHandler(s.cfg.AssetsDir)))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stream", s.handleStream)
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/readings", s.handleReadings)
	mux.HandleFunc("/api/episodes", s.handleEpisodes)
	mux.HandleFunc("/api/calendar", s.handleCalendar)
	mux.HandleFunc("/api/rooms", s.handleRooms)
	mux.HandleFunc("/api/environment", s.handleEnvironment)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/chart.png", s.handleChart)
	mux.HandleFunc("/api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("/api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("/api/recording/status", s.handleRecordingStatus)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	status := "ok"
	if !snap.DetectorReady {
		status = "degraded"
	}
	clients := s.ticks.ClientCount() + s.hub.Len()
	if s.peers != nil {
		clients += s.peers.ClientCount()
	}
	writeJSON(w, HealthPayload{
		Status:        status,
		DetectorReady: snap.DetectorReady,
		Source:        string(snap.Source),
		Simulation:    snap.Simulation,
		Clients:       clients,
		Uptime:        snap.Uptime,
	})
}

func (s *Server) statusPayload() StatusPayload {
	snap := s.state.Snapshot()
	p := StatusPayload{
		Snapshot: snap,
		Thresholds: Thresholds{
			Probability: detector.ProbabilityThreshold,
			HeartRate:   detector.HeartRateThreshold,
		},
		Timestamp: float64(s.now().Unix()),
	}
	if snap.Latest != nil {
		if snap.Latest.Reading != nil {
			hr := snap.Latest.Reading.HeartRate
			p.HeartRate = &hr
		}
		if snap.Latest.Decision != nil {
			prob := snap.Latest.Decision.Probability
			p.Probability = &prob
		}
	}
	return p
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.ticks.Subscribe()
	defer s.ticks.Unsubscribe(id)
	streamSSEFromChannel(r.Context(), w, eventCh, s.cfg.KeepAliveInterval)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.frames.Subscribe()
	defer s.frames.Unsubscribe(id)
	streamMJPEGFromChannel(r.Context(), w, frameCh, s.fallback)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	history := s.state.History()
	writeJSON(w, map[string]any{
		"readings": history.Snapshot(),
		"capacity": history.Cap(),
		"stats":    history.Stats(),
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", s.cfg.EpisodeLimit)
	if err == nil && limit < 1 {
		err = errors.New("limit must be positive")
	}
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}

	now := s.now()
	log := s.state.Episodes()
	recent := log.Recent(limit)
	views := make([]EpisodeView, len(recent))
	for i, ep := range recent {
		views[i] = EpisodeView{
			Episode: ep,
			Age:     humanize.RelTime(ep.Timestamp, now, "ago", "from now"),
		}
	}
	writeJSON(w, map[string]any{
		"episodes": views,
		"total":    log.Len(),
		"today":    log.CountOn(now),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	year, err := queryInt(r, "year", now.Year())
	if err == nil && (year < 1 || year > 9999) {
		err = errors.New("year out of range")
	}
	var month int
	if err == nil {
		month, err = queryInt(r, "month", int(now.Month()))
	}
	if err == nil && (month < 1 || month > 12) {
		err = errors.New("month must be between 1 and 12")
	}
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	writeJSON(w, s.state.Episodes().Calendar(year, time.Month(month), now.Location()))
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.state.Snapshot().Rooms
	writeJSON(w, RoomsPayload{
		RoomSnapshot: rooms,
		Widgets:      roomWidgets(rooms.AnyMotion),
	})
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.env.Sample())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var next Settings
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&next); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid settings data"}, http.StatusBadRequest)
			return
		}
		if err := s.settings.Update(next); err != nil {
			var serr *SettingsError
			if errors.As(err, &serr) {
				writeJSONWithStatus(w, map[string]any{"error": serr.Error(), "problems": serr.Problems}, http.StatusBadRequest)
				return
			}
			writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
			return
		}
		logger.Info("WebMonitor", "Settings updated")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"settings": s.settings.Get(),
		"thresholds": Thresholds{
			Probability: detector.ProbabilityThreshold,
			HeartRate:   detector.HeartRateThreshold,
		},
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := renderHeartRateChart(&buf, s.state.History().Snapshot(), s.cfg.ChartWidth, s.cfg.ChartHeight)
	if errors.Is(err, errTooFewReadings) {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		logger.Warn("WebMonitor", "Failed to render chart: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": "Failed to render chart"}, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename, err := s.recorder.Start("")
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"status":     "recording",
		"file":       filename,
		"started_at": float64(s.now().Unix()),
	})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename, err := s.recorder.Stop()
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"status":     "stopped",
		"file":       filename,
		"stats":      s.recorder.Status(),
		"stopped_at": float64(s.now().Unix()),
	})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.recorder.Status())
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.peers == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC disabled"}, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}
	if payload["sdp"] == nil || payload["type"] == nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.peers.HandleOffer(body)
	if err != nil {
		logger.Warn("WebMonitor", "WebRTC offer failed: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

// writeJSONWithStatus encodes before writing the header so an
// unencodable payload becomes a 500 instead of a truncated 200.
func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("WebMonitor", "Failed to encode response: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
