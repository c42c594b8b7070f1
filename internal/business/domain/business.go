// Package domain defines read-only views of the business records the alert
// engine scans. These records are owned by the wider application; this service
// never creates or mutates them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusReserved  OrderStatus = "reserved"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Product is a catalog item with tracked stock.
type Product struct {
	ID        uuid.UUID
	Name      string
	Stock     int
	CreatedAt time.Time
}

// Order is a client order with a promised delivery date.
type Order struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	ClientName   string
	Status       OrderStatus
	Total        float64
	DeliveryDate *time.Time
	ReservedAt   *time.Time
	CreatedAt    time.Time
}

// Client is a business customer with an outstanding debt balance.
type Client struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Debt      float64
	DebtSince *time.Time
	CreatedAt time.Time
}
