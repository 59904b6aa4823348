// Package sensor provides the heart-rate sources the monitoring loop
// reads from: a seeded simulation and an optional serial device.
package sensor

import (
	"context"
	"errors"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
)

// ErrClosed is returned by Next after Close
var ErrClosed = errors.New("sensor source closed")

// Source yields heart-rate readings one at a time
type Source interface {
	// Next blocks until a reading is available or ctx is done
	Next(ctx context.Context) (types.Reading, error)
	Kind() types.SourceKind
	Close() error
}
