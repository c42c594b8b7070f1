// Package usecase implements the alert engine business logic: rule evaluation,
// idempotent alert creation, and alert acknowledgement.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	businessDomain "github.com/allisson/notifier/internal/business/domain"
	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// AlertRepository defines persistence operations for alerts.
// Implementations must support transaction-aware operations via context propagation.
type AlertRepository interface {
	// Create stores a new alert. Returns ErrConflict when a live alert for the
	// same (type, ref_id) pair already exists.
	Create(ctx context.Context, alert *alertDomain.Alert) error

	// FindLive retrieves the undelivered alert for a (type, ref_id) pair.
	// Returns ErrAlertNotFound if no live alert exists.
	FindLive(ctx context.Context, alertType alertDomain.AlertType, refID uuid.UUID) (*alertDomain.Alert, error)

	// ExistsAny reports whether any alert, delivered or not, exists for a pair.
	ExistsAny(ctx context.Context, alertType alertDomain.AlertType, refID uuid.UUID) (bool, error)

	// ListUndelivered returns live alerts, newest first, with pagination.
	ListUndelivered(ctx context.Context, offset, limit int) ([]*alertDomain.Alert, error)

	// CountUndelivered returns the number of live alerts.
	CountUndelivered(ctx context.Context) (int64, error)

	// MarkDelivered acknowledges one alert. Returns ErrAlertNotFound if the
	// alert doesn't exist or was already acknowledged.
	MarkDelivered(ctx context.Context, id uuid.UUID) error

	// MarkAllDelivered acknowledges every live alert and returns the count.
	MarkAllDelivered(ctx context.Context) (int64, error)
}

// MessageEnqueuer enqueues outbound messages as a side effect of alert rules.
type MessageEnqueuer interface {
	Enqueue(
		ctx context.Context,
		channel messageDomain.Channel,
		toPhone string,
		template string,
		payload messageDomain.Payload,
		toClientID *uuid.UUID,
	) (*messageDomain.OutboundMessage, error)
}

// ProductSource provides the product state scanned by the low_stock rule.
type ProductSource interface {
	ListLowStock(ctx context.Context, threshold int) ([]*businessDomain.Product, error)
}

// OrderSource provides the order state scanned by the undelivered,
// reserved_stale and new_order rules.
type OrderSource interface {
	ListOverdueDeliveries(ctx context.Context, now time.Time) ([]*businessDomain.Order, error)
	ListStaleReservations(ctx context.Context, cutoff time.Time) ([]*businessDomain.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]*businessDomain.Order, error)
}

// ClientSource provides the client state scanned by the overdue_payment rule.
type ClientSource interface {
	ListOverdueDebtors(ctx context.Context, cutoff time.Time) ([]*businessDomain.Client, error)
}

// UseCase defines the alert engine operations.
type UseCase interface {
	// RunScan evaluates every rule once and creates the missing alerts.
	RunScan(ctx context.Context) (*ScanResult, error)

	// ListUndelivered returns live alerts, newest first, with pagination.
	ListUndelivered(ctx context.Context, offset, limit int) ([]*alertDomain.Alert, error)

	// CountUndelivered returns the number of live alerts.
	CountUndelivered(ctx context.Context) (int64, error)

	// MarkDelivered acknowledges one alert.
	MarkDelivered(ctx context.Context, id uuid.UUID) error

	// MarkAllDelivered acknowledges every live alert and returns the count.
	MarkAllDelivered(ctx context.Context) (int64, error)
}
