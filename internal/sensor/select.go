package sensor

import (
	"context"
)

// Select probes the serial device and falls back to simulation. The
// returned flag reports simulation mode.
func Select(ctx context.Context, hw HardwareConfig, seed int64) (Source, bool) {
	if h, ok := OpenHardware(ctx, hw); ok {
		return h, false
	}
	return NewSimulated(seed), true
}
