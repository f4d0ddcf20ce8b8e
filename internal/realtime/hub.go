// Package realtime keeps the live websocket connections of users and pushes
// hire notifications and chat messages to them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/gigflow/internal/chat"
	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer   = 64
	defaultEventTimeout = 10 * time.Second
)

// ChatService is the part of the chat service the hub drives from inbound events
type ChatService interface {
	AuthorizeRoom(ctx context.Context, jobID, userID string) (*chat.Grant, error)
	Send(ctx context.Context, jobID, senderID, text string) (*domain.Message, error)
}

// HubConfig holds hub dependencies
type HubConfig struct {
	Logger         *slog.Logger
	Registry       *Registry
	Rooms          *Rooms
	Router         *Router
	Chat           ChatService
	Timings        Timings
	SendBuffer     int
	EventTimeout   time.Duration
	AllowedOrigins []string
}

// Hub accepts websocket connections and handles their inbound events
type Hub struct {
	logger       *slog.Logger
	registry     *Registry
	rooms        *Rooms
	router       *Router
	chat         ChatService
	timings      Timings
	sendBuffer   int
	eventTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewHub creates a new hub
func NewHub(cfg *HubConfig) *Hub {
	timings := cfg.Timings
	defaults := DefaultTimings()
	if timings.WriteWait <= 0 {
		timings.WriteWait = defaults.WriteWait
	}
	if timings.PongWait <= 0 {
		timings.PongWait = defaults.PongWait
	}
	if timings.PingInterval <= 0 || timings.PingInterval >= timings.PongWait {
		timings.PingInterval = timings.PongWait * 9 / 10
	}
	if timings.MaxMessageSize <= 0 {
		timings.MaxMessageSize = defaults.MaxMessageSize
	}

	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}

	eventTimeout := cfg.EventTimeout
	if eventTimeout <= 0 {
		eventTimeout = defaultEventTimeout
	}

	router := cfg.Router
	if router == nil {
		router = NewRouter(cfg.Logger, cfg.Registry, cfg.Rooms)
	}

	return &Hub{
		logger:       cfg.Logger,
		registry:     cfg.Registry,
		rooms:        cfg.Rooms,
		router:       router,
		chat:         cfg.Chat,
		timings:      timings,
		sendBuffer:   sendBuffer,
		eventTimeout: eventTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header, same-origin
// requests and listed origins. Everything else is refused.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimRight(o, "/"), origin) {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the request and serves the connection of an authenticated
// user until it closes. Connecting registers the user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	client := newClient(userID, conn, h.sendBuffer)
	h.registry.Register(client)

	h.logger.Info("Client connected",
		slog.String("user_id", userID),
		slog.String("client_id", client.id),
	)

	go client.writePump(h.timings)

	ctx := r.Context()
	err = client.readPump(h.timings, func(data []byte) {
		h.handle(ctx, client, data)
	})

	h.router.Drop(client)

	attrs := []any{
		slog.String("user_id", userID),
		slog.String("client_id", client.id),
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		attrs = append(attrs, slog.String("reason", err.Error()))
	}
	h.logger.Info("Client disconnected", attrs...)

	return nil
}

// Shutdown closes every live connection
func (h *Hub) Shutdown() {
	h.registry.Each(func(c *Client) {
		c.Close()
	})
}

func (h *Hub) handle(ctx context.Context, client *Client, data []byte) {
	var event inboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.reply(client, EventError, ErrorPayload{Message: "malformed event"})
		return
	}
	if event.JobID == "" {
		h.reply(client, EventError, ErrorPayload{Message: "jobId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.eventTimeout)
	defer cancel()

	switch event.Type {
	case EventJoinRoom:
		if _, err := h.chat.AuthorizeRoom(ctx, event.JobID, client.userID); err != nil {
			h.refuse(client, event, err)
			return
		}
		h.rooms.Join(event.JobID, client)
		h.reply(client, EventJoined, RoomPayload{JobID: event.JobID})

	case EventLeaveRoom:
		h.rooms.Leave(event.JobID, client)
		h.reply(client, EventLeft, RoomPayload{JobID: event.JobID})

	case EventSendMessage:
		// Delivery to the room, sender included, happens through the fan-out.
		if _, err := h.chat.Send(ctx, event.JobID, client.userID, event.Text); err != nil {
			h.refuse(client, event, err)
		}

	default:
		h.reply(client, EventError, ErrorPayload{Message: fmt.Sprintf("unknown event type %q", event.Type)})
	}
}

func (h *Hub) refuse(client *Client, event inboundEvent, err error) {
	message := err.Error()
	if errors.Is(err, domain.ErrInternal) || !domain.IsKnown(err) {
		h.logger.Error("Realtime event failed",
			slog.String("type", event.Type),
			slog.String("job_id", event.JobID),
			slog.String("user_id", client.userID),
			slog.String("error", err.Error()),
		)
		message = "internal error"
	}
	h.reply(client, EventError, ErrorPayload{Message: message})
}

func (h *Hub) reply(client *Client, eventType string, data any) {
	frame, err := encodeEvent(eventType, data)
	if err != nil {
		h.logger.Error("Failed to encode reply", slog.String("error", err.Error()))
		return
	}
	if !client.Enqueue(frame) {
		h.router.Drop(client)
	}
}
