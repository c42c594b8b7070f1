// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
)

// maxBatchSize bounds how many messages one dispatch request may drain.
const maxBatchSize = 100

// DispatchRequest contains the optional parameters for a dispatch run.
type DispatchRequest struct {
	BatchSize int `json:"batch_size"`
}

// Validate checks if the dispatch request is valid. A zero batch size means
// the server default applies.
func (r *DispatchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BatchSize, validation.Min(0), validation.Max(maxBatchSize)),
	)
}
