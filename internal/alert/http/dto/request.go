// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
)

// MarkDeliveredRequest contains the parameters for acknowledging one alert.
type MarkDeliveredRequest struct {
	AlertID string `json:"alert_id" binding:"required"`
}

// Validate checks if the mark delivered request is valid.
func (r *MarkDeliveredRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AlertID, validation.Required),
	)
}
