package dto

import (
	"time"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	alertUseCase "github.com/allisson/notifier/internal/alert/usecase"
)

// AlertResponse represents an alert in API responses.
type AlertResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RefID     string    `json:"ref_id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}

// MapAlertToResponse converts a domain alert to an API response.
func MapAlertToResponse(alert *alertDomain.Alert) AlertResponse {
	return AlertResponse{
		ID:        alert.ID.String(),
		Type:      string(alert.Type),
		RefID:     alert.RefID.String(),
		Message:   alert.Message,
		Severity:  string(alert.Severity),
		Delivered: alert.Delivered,
		CreatedAt: alert.CreatedAt,
	}
}

// ListAlertsResponse represents a page of live alerts.
type ListAlertsResponse struct {
	Alerts []AlertResponse `json:"alerts"`
	Count  int             `json:"count"`
}

// MapAlertsToListResponse converts a slice of domain alerts to a list response.
func MapAlertsToListResponse(alerts []*alertDomain.Alert) ListAlertsResponse {
	responses := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		responses = append(responses, MapAlertToResponse(alert))
	}
	return ListAlertsResponse{
		Alerts: responses,
		Count:  len(responses),
	}
}

// ScanResponse reports the outcome of one alert scan pass.
type ScanResponse struct {
	CreatedByType map[string]int `json:"created_by_type"`
	Total         int            `json:"total"`
	FailedRules   []string       `json:"failed_rules"`
}

// MapScanResultToResponse converts a scan result to an API response.
func MapScanResultToResponse(result *alertUseCase.ScanResult) ScanResponse {
	createdByType := make(map[string]int, len(result.Created))
	for alertType, count := range result.Created {
		createdByType[string(alertType)] = count
	}

	failed := result.Failed
	if failed == nil {
		failed = []string{}
	}

	return ScanResponse{
		CreatedByType: createdByType,
		Total:         result.Total,
		FailedRules:   failed,
	}
}

// CountResponse reports the number of live alerts.
type CountResponse struct {
	Undelivered int64 `json:"undelivered"`
}

// MarkAllDeliveredResponse reports how many alerts a bulk acknowledgement updated.
type MarkAllDeliveredResponse struct {
	Updated int64 `json:"updated"`
}
