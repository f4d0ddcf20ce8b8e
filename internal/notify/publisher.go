// Package notify carries hire notices and chat messages between API
// instances over RabbitMQ, so a user connected to any instance receives them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/gigflow/internal/domain"
)

// Envelope types
const (
	TypeHired           = "hired"
	TypeMessageReceived = "message_received"
)

const contentTypeJSON = "application/json"

// Envelope is the wire format of one event on the exchange
type Envelope struct {
	Type    string          `json:"type"`
	JobID   string          `json:"job_id"`
	Payload json.RawMessage `json:"payload"`
}

// Broker publishes raw bodies to the events exchange
type Broker interface {
	Publish(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Publisher sends domain events to every API instance. It satisfies the
// notifier interfaces of the marketplace and chat services.
type Publisher struct {
	logger *slog.Logger
	broker Broker
}

// NewPublisher creates a new publisher
func NewPublisher(logger *slog.Logger, broker Broker) *Publisher {
	return &Publisher{logger: logger, broker: broker}
}

// NotifyHired publishes a hire notice
func (p *Publisher) NotifyHired(ctx context.Context, notice domain.HiredNotice) error {
	return p.publish(ctx, TypeHired, notice.JobID, notice)
}

// FanoutMessage publishes a persisted chat message
func (p *Publisher) FanoutMessage(ctx context.Context, msg domain.Message) error {
	return p.publish(ctx, TypeMessageReceived, msg.JobID, msg)
}

func (p *Publisher) publish(ctx context.Context, eventType, jobID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	body, err := json.Marshal(Envelope{Type: eventType, JobID: jobID, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", eventType, err)
	}

	if err := p.broker.Publish(ctx, eventType, body, contentTypeJSON); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.logger.Debug("Event published",
		slog.String("type", eventType),
		slog.String("job_id", jobID),
	)
	return nil
}
