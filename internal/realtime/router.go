package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/gigflow/internal/domain"
)

// Router pushes domain events to the connections they are addressed to.
// Delivery is best effort: a connection that cannot keep up is dropped.
type Router struct {
	logger   *slog.Logger
	registry *Registry
	rooms    *Rooms
}

// NewRouter creates a router over the given registry and rooms
func NewRouter(logger *slog.Logger, registry *Registry, rooms *Rooms) *Router {
	return &Router{
		logger:   logger,
		registry: registry,
		rooms:    rooms,
	}
}

// NotifyHired pushes a hired event to every connection of the hired bidder
func (r *Router) NotifyHired(ctx context.Context, notice domain.HiredNotice) error {
	clients := r.registry.Clients(notice.BidderID)
	if len(clients) == 0 {
		r.logger.Debug("Hired bidder not connected, notification dropped",
			slog.String("job_id", notice.JobID),
			slog.String("bidder_id", notice.BidderID),
		)
		return nil
	}

	frame, err := encodeEvent(EventHired, HiredPayload{
		JobID:           notice.JobID,
		JobTitle:        notice.JobTitle,
		BidID:           notice.BidID,
		CounterpartName: notice.CounterpartName,
		Price:           notice.Price,
	})
	if err != nil {
		return fmt.Errorf("failed to encode hired event: %w", err)
	}

	delivered := r.deliver(clients, frame)
	r.logger.Debug("Hired notification pushed",
		slog.String("job_id", notice.JobID),
		slog.String("bidder_id", notice.BidderID),
		slog.Int("connections", delivered),
	)
	return nil
}

// FanoutMessage pushes a message to every connection in the job room,
// including the sender's own devices
func (r *Router) FanoutMessage(ctx context.Context, msg domain.Message) error {
	clients := r.rooms.Members(msg.JobID)
	if len(clients) == 0 {
		return nil
	}

	frame, err := encodeEvent(EventMessageReceived, MessagePayload{Message: msg})
	if err != nil {
		return fmt.Errorf("failed to encode message event: %w", err)
	}

	r.deliver(clients, frame)
	return nil
}

func (r *Router) deliver(clients []*Client, frame []byte) int {
	delivered := 0
	for _, c := range clients {
		if c.Enqueue(frame) {
			delivered++
			continue
		}
		r.Drop(c)
		r.logger.Warn("Dropped unresponsive connection",
			slog.String("user_id", c.userID),
			slog.String("client_id", c.id),
		)
	}
	return delivered
}

// Drop closes c and forgets it everywhere
func (r *Router) Drop(c *Client) {
	c.Close()
	r.registry.Unregister(c)
	r.rooms.LeaveAll(c)
}
