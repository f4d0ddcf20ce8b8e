package realtime

import (
	"encoding/json"

	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/shopspring/decimal"
)

// Outbound event types
const (
	EventHired           = "hired"
	EventMessageReceived = "messageReceived"
	EventJoined          = "joined"
	EventLeft            = "left"
	EventError           = "error"
)

// Inbound event types
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
)

// Event is the frame pushed to a connection
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// HiredPayload tells a bidder they were hired
type HiredPayload struct {
	JobID           string          `json:"jobId"`
	JobTitle        string          `json:"jobTitle"`
	BidID           string          `json:"bidId"`
	CounterpartName string          `json:"counterpartName"`
	Price           decimal.Decimal `json:"price"`
}

// MessagePayload carries one chat message to the job room
type MessagePayload struct {
	Message domain.Message `json:"message"`
}

// RoomPayload acknowledges a join or leave
type RoomPayload struct {
	JobID string `json:"jobId"`
}

// ErrorPayload reports a refused inbound event to the sender only
type ErrorPayload struct {
	Message string `json:"message"`
}

// inboundEvent is what clients send: joinRoom{jobId}, leaveRoom{jobId},
// sendMessage{jobId,text}
type inboundEvent struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
	Text  string `json:"text"`
}

func encodeEvent(eventType string, data any) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Data: data})
}
