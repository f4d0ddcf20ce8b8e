package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/gigflow/internal/api/dto"
	"github.com/cuongbtq/gigflow/internal/chat"
	"github.com/cuongbtq/gigflow/internal/domain"
	"github.com/cuongbtq/gigflow/internal/marketplace"
	"github.com/cuongbtq/gigflow/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextUserIDKey is where the auth middleware stores the caller's user id
const ContextUserIDKey = "user_id"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Marketplace *marketplace.Service
	Chat        *chat.Service
	Hub         *realtime.Hub
}

func currentUser(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

// pathID reads a UUID path parameter, answering 400 when it is malformed
func pathID(c *gin.Context, logger *slog.Logger, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		logger.Debug("Invalid path id",
			slog.String("param", name),
			slog.String("value", id),
		)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: name + " must be a valid UUID",
			Code:  "invalid_argument",
		})
		return "", false
	}
	return id, true
}

// respondError maps a domain error to its HTTP status
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal"

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		message = "internal server error"
	}

	c.JSON(status, dto.ErrorResponse{Error: message, Code: code})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: message, Code: "invalid_argument"})
}
