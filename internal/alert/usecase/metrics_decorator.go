package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	"github.com/allisson/notifier/internal/metrics"
)

// useCaseWithMetrics decorates the alert UseCase with metrics instrumentation.
type useCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUseCaseWithMetrics wraps an alert UseCase with metrics recording.
func NewUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &useCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// RunScan records metrics for alert scan passes.
func (u *useCaseWithMetrics) RunScan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	result, err := u.next.RunScan(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "alerts", "scan", status)
	u.metrics.RecordDuration(ctx, "alerts", "scan", time.Since(start), status)

	return result, err
}

// ListUndelivered records metrics for alert listing operations.
func (u *useCaseWithMetrics) ListUndelivered(
	ctx context.Context,
	offset, limit int,
) ([]*alertDomain.Alert, error) {
	start := time.Now()
	alerts, err := u.next.ListUndelivered(ctx, offset, limit)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "alerts", "list", status)
	u.metrics.RecordDuration(ctx, "alerts", "list", time.Since(start), status)

	return alerts, err
}

// CountUndelivered records metrics for alert count operations.
func (u *useCaseWithMetrics) CountUndelivered(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := u.next.CountUndelivered(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "alerts", "count", status)
	u.metrics.RecordDuration(ctx, "alerts", "count", time.Since(start), status)

	return count, err
}

// MarkDelivered records metrics for single-alert acknowledgement.
func (u *useCaseWithMetrics) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := u.next.MarkDelivered(ctx, id)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "alerts", "mark_delivered", status)
	u.metrics.RecordDuration(ctx, "alerts", "mark_delivered", time.Since(start), status)

	return err
}

// MarkAllDelivered records metrics for bulk acknowledgement.
func (u *useCaseWithMetrics) MarkAllDelivered(ctx context.Context) (int64, error) {
	start := time.Now()
	updated, err := u.next.MarkAllDelivered(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "alerts", "mark_all_delivered", status)
	u.metrics.RecordDuration(ctx, "alerts", "mark_all_delivered", time.Since(start), status)

	return updated, err
}
