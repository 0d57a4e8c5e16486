// Package events publishes reconciled delay observations to NATS. The
// publisher is optional; the engine runs fine without a broker.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Metrics is the hook the publisher reports to. Satisfied by
// metrics.Collector; may be nil.
type Metrics interface {
	EventPublishedInc()
	EventPublishErrInc()
	NATSSetConnected(connected bool)
}

// Observation is the JSON payload emitted per reconciled departure.
type Observation struct {
	RouteID      string    `json:"routeId"`
	StopID       string    `json:"stopId"`
	TripID       string    `json:"tripId"`
	Status       string    `json:"status"`
	DelaySeconds int       `json:"delaySeconds"`
	Scheduled    time.Time `json:"scheduled"`
	Predicted    time.Time `json:"predicted"`
	ObservedAt   time.Time `json:"observedAt"`
}

// Publisher emits observations on subjects of the form
// <prefix>.<route>.<stop>.
type Publisher struct {
	nc      *nats.Conn
	prefix  string
	metrics Metrics
	logger  *slog.Logger
}

// NewPublisher connects to NATS with reconnect handlers wired to metrics.
func NewPublisher(url, prefix string, m Metrics, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("delaywatch"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &Publisher{nc: nc, prefix: prefix, metrics: m, logger: logger}, nil
}

// PublishDelay emits one observation.
func (p *Publisher) PublishDelay(obs Observation) error {
	subject := fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(obs.RouteID), subjectToken(obs.StopID))
	b, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(subject, b); err != nil {
		if p.metrics != nil {
			p.metrics.EventPublishErrInc()
		}
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if p.metrics != nil {
		p.metrics.EventPublishedInc()
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// subjectToken makes an identifier safe for use inside a NATS subject.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return r.Replace(s)
}
