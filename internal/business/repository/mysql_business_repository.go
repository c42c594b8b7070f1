package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	businessDomain "github.com/allisson/notifier/internal/business/domain"
	"github.com/allisson/notifier/internal/database"
	apperrors "github.com/allisson/notifier/internal/errors"
)

// MySQLBusinessRepository implements the alert engine's business-state
// sources for MySQL. UUIDs are stored as CHAR(36) strings.
type MySQLBusinessRepository struct {
	db *sql.DB
}

// NewMySQLBusinessRepository creates a new MySQL business-state repository.
func NewMySQLBusinessRepository(db *sql.DB) *MySQLBusinessRepository {
	return &MySQLBusinessRepository{db: db}
}

// ListLowStock returns products whose stock is at or below the threshold.
func (m *MySQLBusinessRepository) ListLowStock(
	ctx context.Context,
	threshold int,
) ([]*businessDomain.Product, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, stock, created_at
			  FROM products
			  WHERE stock <= ?
			  ORDER BY stock ASC`

	rows, err := querier.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list low stock products")
	}
	defer rows.Close() //nolint:errcheck

	var products []*businessDomain.Product
	for rows.Next() {
		var (
			product businessDomain.Product
			idStr   string
		)
		err := rows.Scan(&idStr, &product.Name, &product.Stock, &product.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan product")
		}
		if product.ID, err = uuid.Parse(idStr); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse product id")
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
func (m *MySQLBusinessRepository) ListOverdueDeliveries(
	ctx context.Context,
	now time.Time,
) ([]*businessDomain.Order, error) {
	query := `SELECT o.id, o.client_id, c.name, o.status, o.total, o.delivery_date, o.reserved_at, o.created_at
			  FROM orders o
			  JOIN clients c ON c.id = o.client_id
			  WHERE o.status IN (?, ?) AND o.delivery_date IS NOT NULL AND o.delivery_date < ?
			  ORDER BY o.delivery_date ASC`

	return m.queryOrders(
		ctx, query,
		businessDomain.OrderStatusDraft, businessDomain.OrderStatusReserved, now,
	)
}

// ListStaleReservations returns orders held in reserved status since before
// the cutoff without progressing to delivered/closed.
func (m *MySQLBusinessRepository) ListStaleReservations(
	ctx context.Context,
	cutoff time.Time,
) ([]*businessDomain.Order, error) {
	query := `SELECT o.id, o.client_id, c.name, o.status, o.total, o.delivery_date, o.reserved_at, o.created_at
			  FROM orders o
			  JOIN clients c ON c.id = o.client_id
			  WHERE o.status = ? AND o.reserved_at IS NOT NULL AND o.reserved_at < ?
			  ORDER BY o.reserved_at ASC`

	return m.queryOrders(ctx, query, businessDomain.OrderStatusReserved, cutoff)
}

// ListRecentOrders returns the most recently created orders, newest first.
func (m *MySQLBusinessRepository) ListRecentOrders(
	ctx context.Context,
	limit int,
) ([]*businessDomain.Order, error) {
	query := `SELECT o.id, o.client_id, c.name, o.status, o.total, o.delivery_date, o.reserved_at, o.created_at
			  FROM orders o
			  JOIN clients c ON c.id = o.client_id
			  WHERE o.status != ?
			  ORDER BY o.created_at DESC
			  LIMIT ?`

	return m.queryOrders(ctx, query, businessDomain.OrderStatusCancelled, limit)
}

// ListOverdueDebtors returns clients with outstanding debt unpaid since before the cutoff.
func (m *MySQLBusinessRepository) ListOverdueDebtors(
	ctx context.Context,
	cutoff time.Time,
) ([]*businessDomain.Client, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, phone, debt, debt_since, created_at
			  FROM clients
			  WHERE debt > 0 AND debt_since IS NOT NULL AND debt_since < ?
			  ORDER BY debt_since ASC`

	rows, err := querier.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list overdue debtors")
	}
	defer rows.Close() //nolint:errcheck

	var clients []*businessDomain.Client
	for rows.Next() {
		var (
			client businessDomain.Client
			idStr  string
		)
		err := rows.Scan(
			&idStr,
			&client.Name,
			&client.Phone,
			&client.Debt,
			&client.DebtSince,
			&client.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan client")
		}
		if client.ID, err = uuid.Parse(idStr); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse client id")
		}
		clients = append(clients, &client)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate clients")
	}
	return clients, nil
}

// queryOrders runs an order query and scans the result rows.
func (m *MySQLBusinessRepository) queryOrders(
	ctx context.Context,
	query string,
	args ...any,
) ([]*businessDomain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list orders")
	}
	defer rows.Close() //nolint:errcheck

	var orders []*businessDomain.Order
	for rows.Next() {
		var (
			order       businessDomain.Order
			idStr       string
			clientIDStr string
		)
		err := rows.Scan(
			&idStr,
			&clientIDStr,
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
		if order.ID, err = uuid.Parse(idStr); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse order id")
		}
		if order.ClientID, err = uuid.Parse(clientIDStr); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse order client id")
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate orders")
	}
	return orders, nil
}
