package webmonitor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/jpeg"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/sensor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

type fixedSource struct {
	mu     sync.Mutex
	values []float64
	i      int
}

func (s *fixedSource) Next(ctx context.Context) (types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.i%len(s.values)]
	ts := baseTime.Add(time.Duration(s.i) * time.Second)
	s.i++
	return types.Reading{HeartRate: v, Timestamp: ts, Source: types.SourceSimulated}, nil
}

func (s *fixedSource) Kind() types.SourceKind { return types.SourceSimulated }
func (s *fixedSource) Close() error           { return nil }

type thresholdEvaluator struct{}

func (thresholdEvaluator) Evaluate(hr float64) (detector.Decision, error) {
	if err := detector.Validate(hr); err != nil {
		return detector.Decision{}, err
	}
	return detector.Decision{HeartRate: hr, Probability: 0.2, Episode: hr > 150, ThresholdTriggered: hr > 150}, nil
}

type fakePeers struct {
	mu       sync.Mutex
	received [][]byte
	err      error
}

func (f *fakePeers) HandleOffer(offer []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(`{"type":"answer","sdp":"v=0"}`), nil
}

func (f *fakePeers) Broadcast(data []byte) {
	f.mu.Lock()
	f.received = append(f.received, data)
	f.mu.Unlock()
}

func (f *fakePeers) ClientCount() int { return 0 }

type fixture struct {
	server *Server
	loop   *monitor.Loop
	state  *monitor.State
	m      *metrics.Metrics
}

func newFixture(t *testing.T, values []float64, opts ...Option) *fixture {
	t.Helper()
	state := monitor.NewState(monitor.DefaultHistorySize, monitor.DefaultEpisodeLimit)
	m := metrics.New()
	opts = append(opts, WithMetrics(m))
	srv := NewServer(DefaultConfig(), state, opts...)
	srv.now = func() time.Time { return baseTime.Add(10 * time.Minute) }

	loop := monitor.NewLoop(&fixedSource{values: values}, thresholdEvaluator{}, state,
		monitor.WithRooms(sensor.NewRoomSimulator(7)), monitor.WithSimulation(true))
	loop.OnTick(srv.Publish)
	return &fixture{server: srv, loop: loop, state: state, m: m}
}

func (f *fixture) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.loop.Step(context.Background())
		require.NoError(t, err)
	}
}

func do(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestIndexAndNotFound(t *testing.T) {
	f := newFixture(t, []float64{100})
	h := f.server.Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Epilepsy Home Monitor")

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusBeforeFirstTickIsUnavailable(t *testing.T) {
	f := newFixture(t, []float64{100})
	rec := do(t, f.server.Handler(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "unavailable", body["status"])
	assert.Nil(t, body["heart_rate"])
	assert.Equal(t, true, body["simulation"])
	thresholds := body["thresholds"].(map[string]any)
	assert.Equal(t, 0.6, thresholds["probability"])
	assert.Equal(t, 150.0, thresholds["heart_rate"])
}

func TestStatusAndEpisodesAfterTicks(t *testing.T) {
	f := newFixture(t, []float64{120, 172.3, 130})
	f.step(t, 3)
	h := f.server.Handler()

	var status map[string]any
	decode(t, do(t, h, http.MethodGet, "/api/status", ""), &status)
	assert.Equal(t, "normal", status["status"])
	assert.Equal(t, 130.0, status["heart_rate"])
	assert.Equal(t, 0.2, status["probability"])
	assert.EqualValues(t, 1, status["total_episodes"])

	rec := do(t, h, http.MethodGet, "/api/episodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var eps struct {
		Episodes []EpisodeView `json:"episodes"`
		Total    int           `json:"total"`
	}
	decode(t, rec, &eps)
	require.Len(t, eps.Episodes, 1)
	assert.Equal(t, 1, eps.Total)
	assert.Equal(t, 172.3, eps.Episodes[0].HeartRate)
	assert.Contains(t, eps.Episodes[0].Age, "ago")
	assert.NotEmpty(t, eps.Episodes[0].Location)

	for _, bad := range []string{"abc", "0", "-3"} {
		rec = do(t, h, http.MethodGet, "/api/episodes?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestReadings(t *testing.T) {
	f := newFixture(t, []float64{90, 95})
	f.step(t, 4)

	var body struct {
		Readings []types.Reading `json:"readings"`
		Capacity int             `json:"capacity"`
	}
	decode(t, do(t, f.server.Handler(), http.MethodGet, "/api/readings", ""), &body)
	assert.Len(t, body.Readings, 4)
	assert.Equal(t, monitor.DefaultHistorySize, body.Capacity)
	assert.Equal(t, 90.0, body.Readings[0].HeartRate)
}

func TestCalendar(t *testing.T) {
	f := newFixture(t, []float64{160})
	f.step(t, 1)
	h := f.server.Handler()

	var cal monitor.Calendar
	decode(t, do(t, h, http.MethodGet, "/api/calendar", ""), &cal)
	assert.Equal(t, 2024, cal.Year)
	assert.Equal(t, 3, cal.Month)
	require.NotEmpty(t, cal.Weeks)
	// March 14th 2024 is the Thursday of the third row
	assert.Equal(t, 14, cal.Weeks[2][3].Day)
	assert.True(t, cal.Weeks[2][3].Flagged)

	decode(t, do(t, h, http.MethodGet, "/api/calendar?year=2021&month=2", ""), &cal)
	assert.Len(t, cal.Weeks, 4)

	for _, q := range []string{"month=13", "month=0", "year=abc", "year=0"} {
		rec := do(t, h, http.MethodGet, "/api/calendar?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRoomsAndEnvironment(t *testing.T) {
	f := newFixture(t, []float64{100})
	f.step(t, 2)
	h := f.server.Handler()

	var rooms RoomsPayload
	decode(t, do(t, h, http.MethodGet, "/api/rooms", ""), &rooms)
	assert.Len(t, rooms.Rooms, len(sensor.Rooms))
	assert.Contains(t, sensor.Rooms, rooms.LastLocation)
	require.Len(t, rooms.Widgets, 3)
	assert.Equal(t, "Door Status", rooms.Widgets[0].Label)

	var env Environment
	decode(t, do(t, h, http.MethodGet, "/api/environment", ""), &env)
	assert.Contains(t, env.Temperature.Value, "°C")
	assert.Contains(t, env.CO2.Value, "ppm")
	assert.Equal(t, "Good", env.AirQuality.Value)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, []float64{100})
	h := f.server.Handler()

	var got struct {
		Settings   Settings   `json:"settings"`
		Thresholds Thresholds `json:"thresholds"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/settings", ""), &got)
	assert.Equal(t, DefaultSettings(), got.Settings)
	assert.Equal(t, 150.0, got.Thresholds.HeartRate)

	next := DefaultSettings()
	next.Contacts.PrimaryName = "Sam"
	next.Contacts.ProviderEmail = "clinic@example.com"
	next.Camera.RecordingMinutes = 45
	body, err := json.Marshal(next)
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/api/settings", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &got)
	assert.Equal(t, "Sam", got.Settings.Contacts.PrimaryName)
	assert.Equal(t, 45, got.Settings.Camera.RecordingMinutes)

	bad := next
	bad.Camera.RecordingMinutes = 90
	bad.Camera.ActiveCameras = []string{"Garage"}
	body, err = json.Marshal(bad)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/api/settings", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var problem struct {
		Problems []string `json:"problems"`
	}
	decode(t, rec, &problem)
	assert.Len(t, problem.Problems, 2)

	// Rejected updates leave the stored settings untouched
	decode(t, do(t, h, http.MethodGet, "/api/settings", ""), &got)
	assert.Equal(t, 45, got.Settings.Camera.RecordingMinutes)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/settings", "{").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/api/settings", "").Code)
}

func TestChart(t *testing.T) {
	f := newFixture(t, []float64{120, 155, 140, 180})
	h := f.server.Handler()

	rec := do(t, h, http.MethodGet, "/api/chart.png", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.step(t, 4)
	rec = do(t, h, http.MethodGet, "/api/chart.png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestRecording(t *testing.T) {
	f := newFixture(t, []float64{100})
	h := f.server.Handler()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/recording/start", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/recording/stop", "").Code)

	rec := do(t, h, http.MethodPost, "/api/recording/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/recording/start", "").Code)

	f.server.recorder.AddFrame(1000)
	f.server.recorder.AddFrame(500)

	var st RecordingStatus
	decode(t, do(t, h, http.MethodGet, "/api/recording/status", ""), &st)
	assert.True(t, st.Recording)
	assert.Equal(t, 2, st.FrameCount)
	assert.Equal(t, 1500, st.BytesWritten)
	require.NotNil(t, st.Filename)
	assert.Contains(t, *st.Filename, "recording_")
	assert.Equal(t, uint64(1), f.m.RecordingActive.Load())

	rec = do(t, h, http.MethodPost, "/api/recording/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f.server.recorder.AddFrame(999)
	decode(t, do(t, h, http.MethodGet, "/api/recording/status", ""), &st)
	assert.False(t, st.Recording)
	assert.Equal(t, 2, st.FrameCount)
	assert.Equal(t, uint64(1500), f.m.RecordingBytes.Load())
}

func TestWebRTCOffer(t *testing.T) {
	f := newFixture(t, []float64{100})
	rec := do(t, f.server.Handler(), http.MethodPost, "/api/webrtc/offer", `{"type":"offer","sdp":"v=0"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	peers := &fakePeers{}
	f = newFixture(t, []float64{100}, WithPeerServer(peers))
	h := f.server.Handler()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/webrtc/offer", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/webrtc/offer", "nope").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/webrtc/offer", `{"type":"offer"}`).Code)

	rec = do(t, h, http.MethodPost, "/api/webrtc/offer", `{"type":"offer","sdp":"v=0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"answer","sdp":"v=0"}`, rec.Body.String())

	peers.err = errors.New("maximum clients reached")
	rec = do(t, h, http.MethodPost, "/api/webrtc/offer", `{"type":"offer","sdp":"v=0"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.step(t, 2)
	peers.mu.Lock()
	defer peers.mu.Unlock()
	require.Len(t, peers.received, 2)
	var tick monitor.Tick
	require.NoError(t, json.Unmarshal(peers.received[1], &tick))
	assert.Equal(t, uint64(2), tick.Seq)
}

func TestHealth(t *testing.T) {
	state := monitor.NewState(10, 10)
	srv := NewServer(DefaultConfig(), state)
	monitor.NewLoop(&fixedSource{values: []float64{80}}, nil, state)

	var body HealthPayload
	decode(t, do(t, srv.Handler(), http.MethodGet, "/health", ""), &body)
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.DetectorReady)
	assert.Equal(t, string(types.SourceSimulated), body.Source)

	f := newFixture(t, []float64{80})
	decode(t, do(t, f.server.Handler(), http.MethodGet, "/health", ""), &body)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Simulation)
}

func TestStatusStreamDeliversTicks(t *testing.T) {
	f := newFixture(t, []float64{110, 175})
	f.step(t, 1)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/status/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	next := func() monitor.Tick {
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var tick monitor.Tick
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &tick))
			return tick
		}
		t.Fatalf("stream ended: %v", scanner.Err())
		return monitor.Tick{}
	}

	// The latest tick is replayed on subscribe
	first := next()
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, monitor.StatusNormal, first.Status)

	f.step(t, 1)
	second := next()
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, monitor.StatusEpisode, second.Status)
	require.NotNil(t, second.Episode)
}

func TestWebsocketReceivesTicks(t *testing.T) {
	f := newFixture(t, []float64{99})
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.server.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.step(t, 1)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var tick monitor.Tick
	require.NoError(t, json.Unmarshal(data, &tick))
	assert.Equal(t, uint64(1), tick.Seq)
	require.NotNil(t, tick.Reading)
	assert.Equal(t, 99.0, tick.Reading.HeartRate)
}

func TestTickBroadcasterDropsForSlowClients(t *testing.T) {
	m := metrics.New()
	tb := NewTickBroadcaster(m)
	id, ch := tb.Subscribe()
	defer tb.Unsubscribe(id)

	for i := 1; i <= 20; i++ {
		tb.Publish(monitor.Tick{Seq: uint64(i), Status: monitor.StatusNormal})
	}
	assert.Len(t, ch, 8)
	assert.Equal(t, uint64(12), m.TicksDropped.Load())

	first := <-ch
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(1), m.ActiveClients.Load())
}

func TestRenderFrame(t *testing.T) {
	state := monitor.NewState(10, 10)
	frame, err := renderFrame(state.Snapshot(), baseTime)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, frameWidth, img.Bounds().Dx())
	assert.Equal(t, frameHeight, img.Bounds().Dy())
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Camera.RecordingQuality = "4K"
	s.Camera.DetectionSensitivity = 101
	s.Contacts.ProviderEmail = "not an email"
	err := s.Validate()
	var serr *SettingsError
	require.ErrorAs(t, err, &serr)
	assert.Len(t, serr.Problems, 3)
}

func TestInvalidReadingsKeepStatusEncodable(t *testing.T) {
	f := newFixture(t, []float64{90, math.NaN(), 1000})
	_, ch := f.server.ticks.Subscribe()
	f.step(t, 3)
	h := f.server.Handler()

	rec := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "invalid", body["status"])
	assert.Nil(t, body["heart_rate"])

	rec = do(t, h, http.MethodGet, "/api/readings", "")
	var readings struct {
		Readings []types.Reading `json:"readings"`
	}
	decode(t, rec, &readings)
	require.Len(t, readings.Readings, 1)
	assert.Equal(t, 90.0, readings.Readings[0].HeartRate)

	assert.Len(t, ch, 3, "every tick is published")
}

func TestWriteJSONUnencodablePayload(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, map[string]float64{"bpm": math.NaN()})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Type"), "application/json")
}
