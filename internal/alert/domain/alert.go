// Package domain defines the core alert domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType identifies the business condition an alert flags.
type AlertType string

const (
	AlertTypeLowStock       AlertType = "low_stock"
	AlertTypeUndelivered    AlertType = "undelivered"
	AlertTypeOverduePayment AlertType = "overdue_payment"
	AlertTypeReservedStale  AlertType = "reserved_stale"
	AlertTypeNewOrder       AlertType = "new_order"
)

// AlertTypes lists every known alert type, in rule evaluation order.
var AlertTypes = []AlertType{
	AlertTypeLowStock,
	AlertTypeUndelivered,
	AlertTypeOverduePayment,
	AlertTypeReservedStale,
	AlertTypeNewOrder,
}

// IsValid reports whether the alert type is a known value.
func (t AlertType) IsValid() bool {
	switch t {
	case AlertTypeLowStock, AlertTypeUndelivered, AlertTypeOverduePayment,
		AlertTypeReservedStale, AlertTypeNewOrder:
		return true
	}
	return false
}

// Severity expresses how urgently an alert needs operator attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a durable record flagging a business condition that requires
// operator attention. At most one alert per (Type, RefID) pair may exist
// with Delivered=false at any time; once acknowledged, a new alert for
// the same condition may be created on a later scan.
type Alert struct {
	ID        uuid.UUID
	Type      AlertType
	RefID     uuid.UUID
	Message   string
	Severity  Severity
	Delivered bool
	CreatedAt time.Time
}

// NewAlert builds an undelivered alert with a generated ID.
func NewAlert(alertType AlertType, refID uuid.UUID, message string, severity Severity) *Alert {
	return &Alert{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      alertType,
		RefID:     refID,
		Message:   message,
		Severity:  severity,
		Delivered: false,
		CreatedAt: time.Now().UTC(),
	}
}
