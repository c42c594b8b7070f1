package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	apperrors "github.com/allisson/notifier/internal/errors"
	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// recentOrderWindow bounds how many orders one scan inspects for the
// new_order rule. Orders beyond the window already have alerts from
// earlier scans under any sane scan cadence.
const recentOrderWindow = 200

// Config holds the alert engine rule thresholds.
type Config struct {
	// LowStockThreshold is the stock level at or below which low_stock fires.
	LowStockThreshold int
	// OverdueGraceDays is how many days a debt may remain unpaid before
	// overdue_payment fires.
	OverdueGraceDays int
	// StaleReservationDays is how many days an order may sit reserved before
	// reserved_stale fires.
	StaleReservationDays int
	// AdminPhone receives admin notifications. When empty, the new_order rule
	// creates alerts but enqueues no messages.
	AdminPhone string
}

// ScanResult reports one scan pass: alerts created per rule, the total, and
// the rules whose source reads failed.
type ScanResult struct {
	Created map[alertDomain.AlertType]int
	Total   int
	Failed  []string
}

// candidate is one (type, ref_id) pair a rule found satisfying its predicate,
// together with the alert to create and an optional message to enqueue.
type candidate struct {
	refID    uuid.UUID
	message  string
	severity alertDomain.Severity
	enqueue  *enqueueSpec
}

// enqueueSpec describes the outbound message a rule wants sent when its
// candidate produces a new alert.
type enqueueSpec struct {
	channel    messageDomain.Channel
	toPhone    string
	template   string
	payload    messageDomain.Payload
	toClientID *uuid.UUID
}

// rule pairs an alert type with the function computing its current candidates.
type rule struct {
	alertType alertDomain.AlertType
	evaluate  func(ctx context.Context) ([]candidate, error)
}

// Engine evaluates the alert rules against current business state. A scan is
// a stateless single pass: every invocation re-reads the stores, so running
// it twice with unchanged state creates nothing on the second run.
type Engine struct {
	config    Config
	alertRepo AlertRepository
	enqueuer  MessageEnqueuer
	products  ProductSource
	orders    OrderSource
	clients   ClientSource
	logger    *slog.Logger
}

// NewEngine creates a new alert engine.
func NewEngine(
	config Config,
	alertRepo AlertRepository,
	enqueuer MessageEnqueuer,
	products ProductSource,
	orders OrderSource,
	clients ClientSource,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		config:    config,
		alertRepo: alertRepo,
		enqueuer:  enqueuer,
		products:  products,
		orders:    orders,
		clients:   clients,
		logger:    logger,
	}
}

// RunScan evaluates every rule once. A failure reading one rule's source data
// is logged and recorded in Failed without aborting the other rules; a failure
// persisting one candidate skips that candidate only. Returns an error only
// when the scan cannot run at all.
func (e *Engine) RunScan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{
		Created: make(map[alertDomain.AlertType]int),
	}

	for _, r := range e.rules() {
		result.Created[r.alertType] = 0

		candidates, err := r.evaluate(ctx)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("alert rule evaluation failed",
					slog.String("rule", string(r.alertType)),
					slog.Any("error", err),
				)
			}
			result.Failed = append(result.Failed, string(r.alertType))
			continue
		}

		for _, c := range candidates {
			created, err := e.ensureAlert(ctx, r.alertType, c)
			if err != nil {
				if e.logger != nil {
					e.logger.Error("failed to persist alert",
						slog.String("rule", string(r.alertType)),
						slog.String("ref_id", c.refID.String()),
						slog.Any("error", err),
					)
				}
				continue
			}
			if created {
				result.Created[r.alertType]++
				result.Total++
			}
		}
	}

	if e.logger != nil {
		e.logger.Info("alert scan completed",
			slog.Int("total_created", result.Total),
			slog.Int("failed_rules", len(result.Failed)),
		)
	}

	return result, nil
}

// ListUndelivered returns live alerts, newest first, with pagination.
func (e *Engine) ListUndelivered(ctx context.Context, offset, limit int) ([]*alertDomain.Alert, error) {
	return e.alertRepo.ListUndelivered(ctx, offset, limit)
}

// CountUndelivered returns the number of live alerts.
func (e *Engine) CountUndelivered(ctx context.Context) (int64, error) {
	return e.alertRepo.CountUndelivered(ctx)
}

// MarkDelivered acknowledges one alert.
func (e *Engine) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return e.alertRepo.MarkDelivered(ctx, id)
}

// MarkAllDelivered acknowledges every live alert and returns the count.
func (e *Engine) MarkAllDelivered(ctx context.Context) (int64, error) {
	return e.alertRepo.MarkAllDelivered(ctx)
}

// ensureAlert creates the alert for a candidate unless one already exists.
// For new_order the existence check covers delivered alerts too, since an
// acknowledged new-order alert must not re-trigger. Returns whether a new
// alert was created.
func (e *Engine) ensureAlert(
	ctx context.Context,
	alertType alertDomain.AlertType,
	c candidate,
) (bool, error) {
	if alertType == alertDomain.AlertTypeNewOrder {
		exists, err := e.alertRepo.ExistsAny(ctx, alertType, c.refID)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	} else {
		_, err := e.alertRepo.FindLive(ctx, alertType, c.refID)
		if err == nil {
			// Live alert already present, nothing to do.
			return false, nil
		}
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return false, err
		}
	}

	alert := alertDomain.NewAlert(alertType, c.refID, c.message, c.severity)
	if err := e.alertRepo.Create(ctx, alert); err != nil {
		// A concurrent scan may have inserted the same pair between the check
		// and the insert; the invariant still holds, so treat it as a no-op.
		if apperrors.Is(err, apperrors.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	if c.enqueue != nil {
		_, err := e.enqueuer.Enqueue(
			ctx,
			c.enqueue.channel,
			c.enqueue.toPhone,
			c.enqueue.template,
			c.enqueue.payload,
			c.enqueue.toClientID,
		)
		if err != nil && e.logger != nil {
			// The alert exists; losing the side-effect message is logged, not fatal.
			e.logger.Error("failed to enqueue message for alert",
				slog.String("alert_id", alert.ID.String()),
				slog.String("template", c.enqueue.template),
				slog.Any("error", err),
			)
		}
	}

	return true, nil
}

// rules returns the rule set in evaluation order.
func (e *Engine) rules() []rule {
	return []rule{
		{alertType: alertDomain.AlertTypeLowStock, evaluate: e.evaluateLowStock},
		{alertType: alertDomain.AlertTypeUndelivered, evaluate: e.evaluateUndelivered},
		{alertType: alertDomain.AlertTypeOverduePayment, evaluate: e.evaluateOverduePayment},
		{alertType: alertDomain.AlertTypeReservedStale, evaluate: e.evaluateReservedStale},
		{alertType: alertDomain.AlertTypeNewOrder, evaluate: e.evaluateNewOrder},
	}
}

// evaluateLowStock flags products at or below the configured stock threshold.
func (e *Engine) evaluateLowStock(ctx context.Context) ([]candidate, error) {
	products, err := e.products.ListLowStock(ctx, e.config.LowStockThreshold)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(products))
	for _, product := range products {
		candidates = append(candidates, candidate{
			refID: product.ID,
			message: fmt.Sprintf(
				"Product %q is low on stock: %d left (threshold %d)",
				product.Name, product.Stock, e.config.LowStockThreshold,
			),
			severity: alertDomain.SeverityWarning,
		})
	}
	return candidates, nil
}

// evaluateUndelivered flags non-terminal orders past their promised delivery date.
func (e *Engine) evaluateUndelivered(ctx context.Context) ([]candidate, error) {
	orders, err := e.orders.ListOverdueDeliveries(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(orders))
	for _, order := range orders {
		candidates = append(candidates, candidate{
			refID: order.ID,
			message: fmt.Sprintf(
				"Order for %s was due on %s and is still not delivered",
				order.ClientName, order.DeliveryDate.Format("2006-01-02"),
			),
			severity: alertDomain.SeverityCritical,
		})
	}
	return candidates, nil
}

// evaluateOverduePayment flags clients with debt unpaid past the grace period.
func (e *Engine) evaluateOverduePayment(ctx context.Context) ([]candidate, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -e.config.OverdueGraceDays)

	clients, err := e.clients.ListOverdueDebtors(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(clients))
	for _, client := range clients {
		candidates = append(candidates, candidate{
			refID: client.ID,
			message: fmt.Sprintf(
				"Client %s owes %.2f for more than %d days",
				client.Name, client.Debt, e.config.OverdueGraceDays,
			),
			severity: alertDomain.SeverityCritical,
		})
	}
	return candidates, nil
}

// evaluateReservedStale flags orders stuck in reserved status past the staleness window.
func (e *Engine) evaluateReservedStale(ctx context.Context) ([]candidate, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -e.config.StaleReservationDays)

	orders, err := e.orders.ListStaleReservations(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(orders))
	for _, order := range orders {
		candidates = append(candidates, candidate{
			refID: order.ID,
			message: fmt.Sprintf(
				"Order for %s has been reserved for more than %d days without progress",
				order.ClientName, e.config.StaleReservationDays,
			),
			severity: alertDomain.SeverityWarning,
		})
	}
	return candidates, nil
}

// evaluateNewOrder flags orders that have never been alerted on. "New" has no
// time signal once the order exists, so detection is by absence of a new_order
// alert for the order id. New alerts also notify the admin phone.
func (e *Engine) evaluateNewOrder(ctx context.Context) ([]candidate, error) {
	orders, err := e.orders.ListRecentOrders(ctx, recentOrderWindow)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(orders))
	for _, order := range orders {
		c := candidate{
			refID: order.ID,
			message: fmt.Sprintf(
				"New order from %s for %.2f", order.ClientName, order.Total,
			),
			severity: alertDomain.SeverityInfo,
		}

		if e.config.AdminPhone != "" {
			c.enqueue = &enqueueSpec{
				channel:  messageDomain.ChannelWhatsApp,
				toPhone:  e.config.AdminPhone,
				template: messageDomain.TemplateAdminNewOrder,
				payload: messageDomain.Payload{
					"order_id":    order.ID.String(),
					"client_name": order.ClientName,
					"total":       order.Total,
				},
			}
		}

		candidates = append(candidates, c)
	}
	return candidates, nil
}
