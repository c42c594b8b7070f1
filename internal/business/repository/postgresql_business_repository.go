// Package repository provides read-only access to the business tables the
// alert engine scans (products, orders, clients).
package repository

import (
	"context"
	"database/sql"
	"time"

	businessDomain "github.com/allisson/notifier/internal/business/domain"
	"github.com/allisson/notifier/internal/database"
	apperrors "github.com/allisson/notifier/internal/errors"
)

// PostgreSQLBusinessRepository implements the alert engine's business-state
// sources for PostgreSQL.
type PostgreSQLBusinessRepository struct {
	db *sql.DB
}

// NewPostgreSQLBusinessRepository creates a new PostgreSQL business-state repository.
func NewPostgreSQLBusinessRepository(db *sql.DB) *PostgreSQLBusinessRepository {
	return &PostgreSQLBusinessRepository{db: db}
}

// ListLowStock returns products whose stock is at or below the threshold.
func (p *PostgreSQLBusinessRepository) ListLowStock(
	ctx context.Context,
	threshold int,
) ([]*businessDomain.Product, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, stock, created_at
			  FROM products
			  WHERE stock <= $1
			  ORDER BY stock ASC`

	rows, err := querier.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list low stock products")
	}
	defer rows.Close() //nolint:errcheck

	var products []*businessDomain.Product
	for rows.Next() {
		var product businessDomain.Product
		err := rows.Scan(&product.ID, &product.Name, &product.Stock, &product.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan product")
		}
		products = append(products, &product)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate products")
	}
	return products, nil
}

// ListOverdueDeliveries returns non-terminal orders (draft/reserved) whose
// promised delivery date has passed.
func (p *PostgreSQLBusinessRepository) ListOverdueDeliveries(
	ctx context.Context,
	now time.Time,
) ([]*businessDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT o.id, o.client_id, c.name, o.status, o.total, o.delivery_date, o.reserved_at, o.created_at
			  FROM orders o
			  JOIN clients c ON c.id = o.client_id
			  WHERE o.status IN ($1, $2) AND o.delivery_date IS NOT NULL AND o.delivery_date < $3
			  ORDER BY o.delivery_date ASC`

	return p.queryOrders(
		ctx, querier, query,
		businessDomain.OrderStatusDraft, businessDomain.OrderStatusReserved, now,
	)
}

// ListStaleReservations returns orders held in reserved status since before
// the cutoff without progressing to delivered/closed.
func (p *PostgreSQLBusinessRepository) ListStaleReservations(
	ctx context.Context,
	cutoff time.Time,
) ([]*businessDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT o.id, o.client_id, c.name, o.status, o.total, o.delivery_date, o.reserved_at, o.created_at
			  FROM orders o
			  JOIN clients c ON c.id = o.client_id
			  WHERE o.status = $1 AND o.reserved_at IS NOT NULL AND o.reserved_at < $2
			  ORDER BY o.reserved_at ASC`

	return p.queryOrders(ctx, querier, query, businessDomain.OrderStatusReserved, cutoff)
}

// ListRecentOrders returns the most recently created orders, newest first.
// The alert engine detects "new" orders by the absence of a new_order alert,
// so the window only bounds how far back one scan looks.
func (p *PostgreSQLBusinessRepository) ListRecentOrders(
	ctx context.Context,
	limit int,
) ([]*businessDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT o.id, o.client_id, c.name, o.status, o.total, o.delivery_date, o.reserved_at, o.created_at
			  FROM orders o
			  JOIN clients c ON c.id = o.client_id
			  WHERE o.status != $1
			  ORDER BY o.created_at DESC
			  LIMIT $2`

	return p.queryOrders(ctx, querier, query, businessDomain.OrderStatusCancelled, limit)
}

// ListOverdueDebtors returns clients with outstanding debt unpaid since before the cutoff.
func (p *PostgreSQLBusinessRepository) ListOverdueDebtors(
	ctx context.Context,
	cutoff time.Time,
) ([]*businessDomain.Client, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, phone, debt, debt_since, created_at
			  FROM clients
			  WHERE debt > 0 AND debt_since IS NOT NULL AND debt_since < $1
			  ORDER BY debt_since ASC`

	rows, err := querier.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list overdue debtors")
	}
	defer rows.Close() //nolint:errcheck

	var clients []*businessDomain.Client
	for rows.Next() {
		var client businessDomain.Client
		err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.Phone,
			&client.Debt,
			&client.DebtSince,
			&client.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan client")
		}
		clients = append(clients, &client)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate clients")
	}
	return clients, nil
}

// queryOrders runs an order query and scans the result rows.
func (p *PostgreSQLBusinessRepository) queryOrders(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) ([]*businessDomain.Order, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list orders")
	}
	defer rows.Close() //nolint:errcheck

	var orders []*businessDomain.Order
	for rows.Next() {
		var order businessDomain.Order
		err := rows.Scan(
			&order.ID,
			&order.ClientID,
			&order.ClientName,
			&order.Status,
			&order.Total,
			&order.DeliveryDate,
			&order.ReservedAt,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan order")
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate orders")
	}
	return orders, nil
}
