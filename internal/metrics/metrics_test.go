package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesMonitorMetrics(t *testing.T) {
	m := New()
	m.Readings.Add(3)
	m.Episodes.Add(1)
	m.LastHeartRate.Store(152.5)
	m.SetSimulation(true)
	m.ObserveEvaluation(120 * time.Microsecond)
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "monitor_readings_total 3")
	assert.Contains(t, out, "monitor_episodes_total 1")
	assert.Contains(t, out, "monitor_heart_rate_bpm 152.5")
	assert.Contains(t, out, "monitor_simulation_mode 1")
	assert.Contains(t, out, "monitor_evaluation_latency_us 120")
	assert.Contains(t, out, "monitor_evaluation_duration_seconds_count 1")
	assert.Contains(t, out, "monitor_active_clients 1")
	assert.Contains(t, out, "monitor_clients_total 2")
}

func TestFloat(t *testing.T) {
	var f Float
	assert.Equal(t, 0.0, f.Load())
	f.Store(0.73)
	assert.Equal(t, 0.73, f.Load())
}
