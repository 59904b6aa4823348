package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
	"go.bug.st/serial"
)

// OpenFunc opens a byte stream to the device
type OpenFunc func(port string, baud int) (io.ReadCloser, error)

// HardwareConfig identifies the serial device
type HardwareConfig struct {
	Port        string
	BaudRate    int
	OpenTimeout time.Duration
	Open        OpenFunc // Defaults to a go.bug.st/serial port
}

// DefaultHardwareConfig returns the Arduino defaults with no port selected
func DefaultHardwareConfig() HardwareConfig {
	return HardwareConfig{BaudRate: 9600, OpenTimeout: 3 * time.Second}
}

func openSerial(port string, baud int) (io.ReadCloser, error) {
	return serial.Open(port, &serial.Mode{BaudRate: baud})
}

type sample struct {
	reading types.Reading
	err     error
}

// HardwareSource reads newline-delimited BPM values from a serial device.
// A single goroutine owns the port so partial reads never interleave.
type HardwareSource struct {
	port    string
	rc      io.ReadCloser
	samples chan sample
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// OpenHardware tries to open the configured device within cfg.OpenTimeout.
// Absence of a device is normal: any failure returns false and is logged once.
func OpenHardware(ctx context.Context, cfg HardwareConfig) (*HardwareSource, bool) {
	if cfg.Port == "" {
		logger.Info("Sensor", "No serial port configured, running in simulation mode")
		return nil, false
	}
	open := cfg.Open
	if open == nil {
		open = openSerial
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = 9600
	}

	type result struct {
		rc  io.ReadCloser
		err error
	}
	ch := make(chan result, 1)
	go func() {
		rc, err := open(cfg.Port, baud)
		ch <- result{rc, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.err != nil {
			logger.Warn("Sensor", "Serial port %s unavailable, running in simulation mode: %v", cfg.Port, res.err)
			return nil, false
		}
		logger.Info("Sensor", "Connected to %s at %d baud", cfg.Port, baud)
		return newHardwareSource(cfg.Port, res.rc), true
	case <-ctx.Done():
		// Close the port if the open completes after we gave up
		go func() {
			if res := <-ch; res.err == nil {
				res.rc.Close()
			}
		}()
		logger.Warn("Sensor", "Timed out opening %s after %v, running in simulation mode", cfg.Port, timeout)
		return nil, false
	}
}

func newHardwareSource(port string, rc io.ReadCloser) *HardwareSource {
	h := &HardwareSource{
		port:    port,
		rc:      rc,
		samples: make(chan sample, 16),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go h.readLoop()
	return h
}

func (h *HardwareSource) readLoop() {
	defer close(h.samples)

	scanner := bufio.NewScanner(h.rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s := sample{}
		if bpm, err := ParseBPM(line); err != nil {
			s.err = err
		} else {
			s.reading = types.Reading{HeartRate: bpm, Timestamp: h.now(), Source: types.SourceHardware}
		}

		select {
		case h.samples <- s:
		case <-h.done:
			return
		default:
			// Consumer is behind; drop the sample rather than block the port
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case h.samples <- sample{err: fmt.Errorf("serial read %s: %w", h.port, err)}:
		case <-h.done:
		}
	}
}

// ParseBPM accepts "72", "72.5" or labelled lines such as "BPM: 72"
func ParseBPM(line string) (float64, error) {
	if i := strings.LastIndexAny(line, ":="); i >= 0 {
		line = line[i+1:]
	}
	line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "BPM"))
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed heart-rate line %q", line)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite heart rate %q", line)
	}
	return v, nil
}

// Next waits for the next line from the device
func (h *HardwareSource) Next(ctx context.Context) (types.Reading, error) {
	select {
	case s, ok := <-h.samples:
		if !ok {
			return types.Reading{}, io.EOF
		}
		return s.reading, s.err
	case <-h.done:
		return types.Reading{}, ErrClosed
	case <-ctx.Done():
		return types.Reading{}, ctx.Err()
	}
}

// Kind reports the hardware source kind
func (h *HardwareSource) Kind() types.SourceKind {
	return types.SourceHardware
}

// Port returns the device name
func (h *HardwareSource) Port() string {
	return h.port
}

// Close releases the port and stops the reader
func (h *HardwareSource) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		err = h.rc.Close()
	})
	return err
}
