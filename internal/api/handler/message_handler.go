package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigflow/internal/api/dto"
	"github.com/cuongbtq/gigflow/internal/chat"
	"github.com/cuongbtq/gigflow/internal/realtime"
	"github.com/gin-gonic/gin"
)

// MessageHandler handles chat history, message sends and the websocket upgrade
type MessageHandler struct {
	logger *slog.Logger
	chat   *chat.Service
	hub    *realtime.Hub
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(deps *Dependencies) *MessageHandler {
	return &MessageHandler{
		logger: deps.Logger,
		chat:   deps.Chat,
		hub:    deps.Hub,
	}
}

// SendMessage handles POST /api/v1/jobs/:job_id/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body")
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), jobID, currentUser(c), req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMessageDTO(msg))
}

// ListMessages handles GET /api/v1/jobs/:job_id/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	jobID, ok := pathID(c, h.logger, "job_id")
	if !ok {
		return
	}

	messages, err := h.chat.History(c.Request.Context(), jobID, currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]dto.MessageDTO, len(messages))
	for i := range messages {
		response[i] = dto.NewMessageDTO(&messages[i])
	}

	c.JSON(http.StatusOK, dto.ListMessagesResponse{Messages: response})
}

// ServeWS handles GET /ws
func (h *MessageHandler) ServeWS(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request, currentUser(c)); err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Debug("Websocket upgrade failed", slog.String("error", err.Error()))
	}
}
