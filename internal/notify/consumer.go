package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

var errMalformed = errors.New("malformed envelope")

// DeliverySource hands out the deliveries of this instance's queue
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// LocalDeliverer pushes events to the connections held by this instance
type LocalDeliverer interface {
	NotifyHired(ctx context.Context, notice domain.HiredNotice) error
	FanoutMessage(ctx context.Context, msg domain.Message) error
}

// ConsumerConfig holds consumer dependencies
type ConsumerConfig struct {
	Logger          *slog.Logger
	Source          DeliverySource
	Target          LocalDeliverer
	ConsumerTag     string
	Concurrency     int
	DeliveryTimeout time.Duration
}

// Consumer reads events from the queue and delivers them locally. Deliveries
// are sharded by job id, so events of one job keep their publish order while
// different jobs are handled in parallel.
type Consumer struct {
	logger          *slog.Logger
	source          DeliverySource
	target          LocalDeliverer
	consumerTag     string
	concurrency     int
	deliveryTimeout time.Duration
	shards          []chan amqp.Delivery
	wg              sync.WaitGroup
}

// NewConsumer creates a new consumer
func NewConsumer(cfg *ConsumerConfig) *Consumer {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	deliveryTimeout := cfg.DeliveryTimeout
	if deliveryTimeout <= 0 {
		deliveryTimeout = 5 * time.Second
	}

	return &Consumer{
		logger:          cfg.Logger,
		source:          cfg.Source,
		target:          cfg.Target,
		consumerTag:     cfg.ConsumerTag,
		concurrency:     concurrency,
		deliveryTimeout: deliveryTimeout,
	}
}

// Start begins consuming. It returns once the shard workers are running; use
// Wait to block until the consumer has drained.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.shards = make([]chan amqp.Delivery, c.concurrency)
	for i := range c.shards {
		c.shards[i] = make(chan amqp.Delivery, 16)
		c.wg.Add(1)
		go c.shardLoop(ctx, i, c.shards[i])
	}

	c.wg.Add(1)
	go c.dispatch(ctx, deliveries)

	c.logger.Info("Event consumer started",
		slog.String("consumer_tag", c.consumerTag),
		slog.Int("concurrency", c.concurrency),
	)
	return nil
}

// Wait blocks until the delivery channel is closed or the context passed to
// Start is done, and every dispatched delivery has been handled
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	defer func() {
		for _, shard := range c.shards {
			close(shard)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var envelope Envelope
			if err := json.Unmarshal(delivery.Body, &envelope); err != nil || envelope.JobID == "" {
				c.reject(delivery, "unparseable envelope")
				continue
			}

			shard := c.shards[shardFor(envelope.JobID, len(c.shards))]
			select {
			case shard <- delivery:
			case <-ctx.Done():
				if err := delivery.Nack(false, true); err != nil {
					c.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", err.Error()),
					)
				}
				return
			}
		}
	}
}

func shardFor(jobID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return int(h.Sum32() % uint32(shards))
}

func (c *Consumer) shardLoop(ctx context.Context, index int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()

	for delivery := range deliveries {
		err := c.handle(ctx, delivery)
		switch {
		case errors.Is(err, errMalformed):
			c.reject(delivery, err.Error())
			continue
		case err != nil:
			// best effort: the connections may simply be gone
			c.logger.Warn("Local delivery failed",
				slog.Int("shard", index),
				slog.String("error", err.Error()),
			)
		}

		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ACK message",
				slog.Int("shard", index),
				slog.String("error", ackErr.Error()),
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) error {
	var envelope Envelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.deliveryTimeout)
	defer cancel()

	switch envelope.Type {
	case TypeHired:
		var notice domain.HiredNotice
		if err := json.Unmarshal(envelope.Payload, &notice); err != nil {
			return fmt.Errorf("%w: hired payload: %v", errMalformed, err)
		}
		return c.target.NotifyHired(ctx, notice)

	case TypeMessageReceived:
		var msg domain.Message
		if err := json.Unmarshal(envelope.Payload, &msg); err != nil {
			return fmt.Errorf("%w: message payload: %v", errMalformed, err)
		}
		return c.target.FanoutMessage(ctx, msg)

	default:
		return fmt.Errorf("%w: unknown type %q", errMalformed, envelope.Type)
	}
}

func (c *Consumer) reject(delivery amqp.Delivery, reason string) {
	c.logger.Error("Rejecting event",
		slog.String("reason", reason),
		slog.String("body", string(delivery.Body)),
	)
	if err := delivery.Nack(false, false); err != nil {
		c.logger.Error("Failed to NACK malformed message",
			slog.String("error", err.Error()),
		)
	}
}
