// Package http provides HTTP handlers for the outbound message queue:
// triggering dispatch runs and inspecting the pending backlog.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/notifier/internal/httputil"
	"github.com/allisson/notifier/internal/message/http/dto"
	messageUseCase "github.com/allisson/notifier/internal/message/usecase"
	customValidation "github.com/allisson/notifier/internal/validation"
)

// MessageHandler handles HTTP requests for outbound message operations.
type MessageHandler struct {
	messageUseCase messageUseCase.UseCase
	logger         *slog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(uc messageUseCase.UseCase, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messageUseCase: uc,
		logger:         logger,
	}
}

// DispatchHandler drains one batch of pending messages. The request body is
// optional; an empty body dispatches with the server default batch size.
// POST /v1/messages/dispatch
// Returns 200 OK with the processed count, remaining backlog and per-message errors.
func (h *MessageHandler) DispatchHandler(c *gin.Context) {
	var req dto.DispatchRequest

	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.messageUseCase.DispatchBatch(c.Request.Context(), req.BatchSize)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDispatchResultToResponse(result))
}

// PendingCountHandler returns the number of messages waiting for dispatch.
// GET /v1/messages/pending-count
func (h *MessageHandler) PendingCountHandler(c *gin.Context) {
	count, err := h.messageUseCase.CountPending(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.PendingCountResponse{Pending: count})
}
