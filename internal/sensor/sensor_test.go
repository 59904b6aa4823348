package sensor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedIsSeeded(t *testing.T) {
	ctx := context.Background()
	a, b := NewSimulated(7), NewSimulated(7)

	var sum float64
	const n = 2000
	for i := 0; i < n; i++ {
		ra, err := a.Next(ctx)
		require.NoError(t, err)
		rb, err := b.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, ra.HeartRate, rb.HeartRate)
		assert.Equal(t, types.SourceSimulated, ra.Source)
		sum += ra.HeartRate
	}
	assert.InDelta(t, SimulatedMean, sum/n, 3)

	require.NoError(t, a.Close())
	_, err := a.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSimulatedRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulated(1).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestHardwareReadsLines(t *testing.T) {
	cfg := HardwareConfig{
		Port: "/dev/ttyFAKE",
		Open: func(port string, baud int) (io.ReadCloser, error) {
			assert.Equal(t, 9600, baud)
			return nopCloser{strings.NewReader("72\n\nBPM: 151.5\nnoise\n")}, nil
		},
	}
	h, ok := OpenHardware(context.Background(), cfg)
	require.True(t, ok)
	defer h.Close()
	assert.Equal(t, types.SourceHardware, h.Kind())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r, err := h.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 72.0, r.HeartRate)
	assert.Equal(t, types.SourceHardware, r.Source)

	r, err = h.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 151.5, r.HeartRate)

	_, err = h.Next(ctx)
	assert.Error(t, err)

	_, err = h.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenHardwareFailureFallsBack(t *testing.T) {
	cfg := HardwareConfig{
		Port: "COM3",
		Open: func(string, int) (io.ReadCloser, error) { return nil, errors.New("no such port") },
	}
	_, ok := OpenHardware(context.Background(), cfg)
	assert.False(t, ok)

	src, simulated := Select(context.Background(), cfg, 42)
	assert.True(t, simulated)
	assert.Equal(t, types.SourceSimulated, src.Kind())
}

func TestOpenHardwareTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cfg := HardwareConfig{
		Port:        "COM3",
		OpenTimeout: 50 * time.Millisecond,
		Open: func(string, int) (io.ReadCloser, error) {
			<-release
			return nil, errors.New("gave up")
		},
	}

	start := time.Now()
	_, ok := OpenHardware(context.Background(), cfg)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenHardwareWithoutPort(t *testing.T) {
	_, ok := OpenHardware(context.Background(), DefaultHardwareConfig())
	assert.False(t, ok)
}

func TestParseBPM(t *testing.T) {
	cases := map[string]float64{"88": 88, "BPM: 91": 91, "hr=120.5": 120.5, "77 BPM": 77}
	for in, want := range cases {
		got, err := ParseBPM(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"---", "nan", "NaN", "inf", "BPM: -Inf", "+Inf BPM"} {
		_, err := ParseBPM(in)
		assert.Error(t, err, in)
	}
}

func TestRoomSimulator(t *testing.T) {
	r := NewRoomSimulator(3)
	snap := r.Snapshot()
	assert.Equal(t, "Bedroom", snap.LastLocation)
	assert.False(t, snap.AnyMotion)
	require.Len(t, snap.Rooms, 3)

	motions := 0
	const steps = 3000
	for i := 0; i < steps; i++ {
		prev := r.Snapshot().LastLocation
		snap = r.Step()
		first := ""
		for _, room := range snap.Rooms {
			if room.Motion {
				motions++
				if first == "" {
					first = room.Room
				}
			}
		}
		if first != "" {
			assert.Equal(t, first, snap.LastLocation)
		} else {
			assert.Equal(t, prev, snap.LastLocation)
		}
	}
	assert.InDelta(t, MotionProbability, float64(motions)/float64(steps*3), 0.03)
}
