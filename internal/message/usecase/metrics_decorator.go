package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	messageDomain "github.com/allisson/notifier/internal/message/domain"
	"github.com/allisson/notifier/internal/metrics"
)

// useCaseWithMetrics decorates the message UseCase with metrics instrumentation.
type useCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUseCaseWithMetrics wraps a message UseCase with metrics recording.
func NewUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &useCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Enqueue records metrics for message enqueue operations.
func (u *useCaseWithMetrics) Enqueue(
	ctx context.Context,
	channel messageDomain.Channel,
	toPhone string,
	template string,
	payload messageDomain.Payload,
	toClientID *uuid.UUID,
) (*messageDomain.OutboundMessage, error) {
	start := time.Now()
	message, err := u.next.Enqueue(ctx, channel, toPhone, template, payload, toClientID)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "messages", "enqueue", status)
	u.metrics.RecordDuration(ctx, "messages", "enqueue", time.Since(start), status)

	return message, err
}

// DispatchBatch records metrics for dispatch runs.
func (u *useCaseWithMetrics) DispatchBatch(ctx context.Context, batchSize int) (*DispatchResult, error) {
	start := time.Now()
	result, err := u.next.DispatchBatch(ctx, batchSize)

	status := "success"
	if err != nil || (result != nil && len(result.Errors) > 0) {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "messages", "dispatch", status)
	u.metrics.RecordDuration(ctx, "messages", "dispatch", time.Since(start), status)

	return result, err
}

// CountPending records metrics for pending-count operations.
func (u *useCaseWithMetrics) CountPending(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := u.next.CountPending(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "messages", "pending_count", status)
	u.metrics.RecordDuration(ctx, "messages", "pending_count", time.Since(start), status)

	return count, err
}
