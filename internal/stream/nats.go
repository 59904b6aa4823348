// Package stream publishes monitoring ticks to NATS so other services
// can follow readings and episodes without polling the dashboard.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
	"github.com/nats-io/nats.go"
)

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Connect dials NATS with unlimited reconnects
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS", "Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS", "Reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

// Publisher sends every tick on Subject and every episode on
// Subject + ".episodes".
type Publisher struct {
	conn    Conn
	subject string
	metrics *metrics.Metrics
}

// NewPublisher wraps an established connection
func NewPublisher(conn Conn, subject string, m *metrics.Metrics) *Publisher {
	return &Publisher{conn: conn, subject: subject, metrics: m}
}

// EpisodeSubject is where episodes are published
func (p *Publisher) EpisodeSubject() string {
	return p.subject + ".episodes"
}

// Publish is a monitor.TickListener. Failures are logged and counted
// and never reach the loop.
func (p *Publisher) Publish(t monitor.Tick) {
	if err := p.publish(t); err != nil {
		logger.Warn("NATS", "Publish failed for tick %d: %v", t.Seq, err)
		if p.metrics != nil {
			p.metrics.PublishErrors.Add(1)
		}
	}
}

func (p *Publisher) publish(t monitor.Tick) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if t.Episode == nil {
		return nil
	}
	data, err = json.Marshal(t.Episode)
	if err != nil {
		return fmt.Errorf("marshal episode: %w", err)
	}
	if err := p.conn.Publish(p.EpisodeSubject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", p.EpisodeSubject(), err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
