// Package events publishes workflow outcomes to NATS JetStream for
// downstream consumers (audit, email). Publishing is best-effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ikkim/inspection-backend/config"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"github.com/nats-io/nats.go"
)

const streamName = "INSPECTION_WORKFLOW"

// WorkflowEvent is the payload published for every dispatched workflow outcome.
type WorkflowEvent struct {
	EventType    string    `json:"event_type"`
	Outcome      string    `json:"outcome"`
	EntityType   string    `json:"entity_type"`
	EntityID     uint      `json:"entity_id"`
	ActorID      uint      `json:"actor_id"`
	RecipientIDs []uint    `json:"recipient_ids"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher wraps the NATS connection. A nil *Publisher is valid and drops events.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewPublisher connects to NATS. An empty URL disables publishing and returns (nil, nil).
func NewPublisher(cfg *config.NATSConfig) (*Publisher, error) {
	if cfg == nil || cfg.URL == "" {
		logger.Warn("NATS_URL not set, event publishing disabled", nil)
		return nil, nil
	}

	logger.Info("Connecting to NATS", map[string]interface{}{
		"url": cfg.URL,
	})

	conn, err := nats.Connect(cfg.URL,
		nats.Name("inspection-backend"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", map[string]interface{}{
				"error": fmt.Sprint(err),
			})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", map[string]interface{}{
				"url": nc.ConnectedUrl(),
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Discard:   nats.DiscardOld,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		logger.Warn("Could not create workflow event stream", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return &Publisher{conn: conn, js: js, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject an outcome is published on.
func Subject(prefix, outcome string) string {
	return prefix + "." + outcome
}

// Publish sends event once; callers treat failures as non-fatal.
func (p *Publisher) Publish(ctx context.Context, event *WorkflowEvent) error {
	if p == nil || p.js == nil {
		return nil
	}

	event.EventType = Subject(p.prefix, event.Outcome)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(event.EventType, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
