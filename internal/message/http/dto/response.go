package dto

import (
	messageUseCase "github.com/allisson/notifier/internal/message/usecase"
)

// DispatchResponse reports the outcome of one dispatch run.
type DispatchResponse struct {
	Processed int      `json:"processed"`
	Remaining int64    `json:"remaining"`
	Errors    []string `json:"errors"`
}

// MapDispatchResultToResponse converts a dispatch result to an API response.
func MapDispatchResultToResponse(result *messageUseCase.DispatchResult) DispatchResponse {
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return DispatchResponse{
		Processed: result.Processed,
		Remaining: result.Remaining,
		Errors:    errs,
	}
}

// PendingCountResponse reports the number of messages waiting for dispatch.
type PendingCountResponse struct {
	Pending int64 `json:"pending"`
}
