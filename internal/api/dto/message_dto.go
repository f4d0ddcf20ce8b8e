package dto

import (
	"time"

	"github.com/cuongbtq/gigflow/internal/domain"
)

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type MessageDTO struct {
	MessageID  string `json:"message_id"`
	JobID      string `json:"job_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewMessageDTO(msg *domain.Message) MessageDTO {
	return MessageDTO{
		MessageID:  msg.MessageID,
		JobID:      msg.JobID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt.Format(time.RFC3339Nano),
	}
}
