// Package http provides HTTP handlers for alert operations: running scans,
// listing and counting live alerts, and acknowledging them.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/notifier/internal/alert/http/dto"
	alertUseCase "github.com/allisson/notifier/internal/alert/usecase"
	"github.com/allisson/notifier/internal/httputil"
	customValidation "github.com/allisson/notifier/internal/validation"
)

// AlertHandler handles HTTP requests for alert operations.
type AlertHandler struct {
	alertUseCase alertUseCase.UseCase
	logger       *slog.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(uc alertUseCase.UseCase, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alertUseCase: uc,
		logger:       logger,
	}
}

// ScanHandler runs one alert scan pass.
// POST /v1/alerts/scan
// Returns 200 OK with per-rule creation counts and the rules that failed.
func (h *AlertHandler) ScanHandler(c *gin.Context) {
	result, err := h.alertUseCase.RunScan(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapScanResultToResponse(result))
}

// ListHandler returns a page of live alerts, newest first.
// GET /v1/alerts?offset=0&limit=50
func (h *AlertHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	alerts, err := h.alertUseCase.ListUndelivered(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAlertsToListResponse(alerts))
}

// CountHandler returns the number of live alerts.
// GET /v1/alerts/count
func (h *AlertHandler) CountHandler(c *gin.Context) {
	count, err := h.alertUseCase.CountUndelivered(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CountResponse{Undelivered: count})
}

// MarkDeliveredHandler acknowledges one alert.
// POST /v1/alerts/mark-delivered
// Returns 204 No Content, or 404 when the alert doesn't exist or was already
// acknowledged.
func (h *AlertHandler) MarkDeliveredHandler(c *gin.Context) {
	var req dto.MarkDeliveredRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	alertID, err := uuid.Parse(req.AlertID)
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid alert_id: %w", err),
			h.logger,
		)
		return
	}

	if err := h.alertUseCase.MarkDelivered(c.Request.Context(), alertID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllDeliveredHandler acknowledges every live alert.
// POST /v1/alerts/mark-all-delivered
// Returns 200 OK with the number of alerts updated.
func (h *AlertHandler) MarkAllDeliveredHandler(c *gin.Context) {
	updated, err := h.alertUseCase.MarkAllDelivered(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MarkAllDeliveredResponse{Updated: updated})
}
