// Package events publishes bootstrap lifecycle events to NATS for fleet
// dashboards. Publishing is strictly best-effort: a missing or unreachable
// broker never affects the boot, so every method tolerates a nil receiver
// and failures are logged at debug level only.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/courseboot/internal/config"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// Event is one lifecycle notification.
type Event struct {
	RunID     string    `json:"run_id"`
	Hostname  string    `json:"hostname"`
	Phase     string    `json:"phase"`
	EventType string    `json:"event_type"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends lifecycle events on a NATS connection.
type Publisher struct {
	conn     *nats.Conn
	prefix   string
	hostname string
	logger   *slog.Logger
}

const connectTimeout = 5 * time.Second

// NewPublisher connects to the configured broker. A nil events config
// disables publishing: the returned nil Publisher is safe to use.
func NewPublisher(cfg *config.EventsConfig, hostname string, logger *slog.Logger) (*Publisher, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to event broker: %w", err)
	}

	logger.Info("lifecycle event publisher connected", slog.String("url", cfg.URL))
	return &Publisher{
		conn:     conn,
		prefix:   cfg.SubjectPrefix,
		hostname: hostname,
		logger:   logger,
	}, nil
}

// Publish emits one event on <prefix>.<phase>. Errors are swallowed after
// a debug log; lifecycle events carry no state the boot depends on.
func (p *Publisher) Publish(runID, phase, eventType, detail string) {
	if p == nil {
		return
	}

	event := Event{
		RunID:     runID,
		Hostname:  p.hostname,
		Phase:     phase,
		EventType: eventType,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Debug("failed to marshal lifecycle event", logfields.Error(err))
		return
	}

	subject := p.prefix + "." + phase
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Debug("failed to publish lifecycle event",
			slog.String("subject", subject), logfields.Error(err))
	}
}

// Close flushes pending events and drops the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Flush()
	p.conn.Close()
}
