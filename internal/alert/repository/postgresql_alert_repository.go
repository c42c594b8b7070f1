// Package repository provides data persistence implementations for alert entities.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	"github.com/allisson/notifier/internal/database"
	apperrors "github.com/allisson/notifier/internal/errors"
)

// PostgreSQLAlertRepository implements Alert persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLAlertRepository struct {
	db *sql.DB
}

// NewPostgreSQLAlertRepository creates a new PostgreSQL Alert repository.
func NewPostgreSQLAlertRepository(db *sql.DB) *PostgreSQLAlertRepository {
	return &PostgreSQLAlertRepository{db: db}
}

// Create inserts a new Alert into the PostgreSQL database. Returns ErrConflict
// when a live alert for the same (type, ref_id) pair already exists, backed by
// the partial unique index on undelivered alerts.
func (p *PostgreSQLAlertRepository) Create(ctx context.Context, alert *alertDomain.Alert) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO alerts (id, alert_type, ref_id, message, severity, delivered, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.Type,
		alert.RefID,
		alert.Message,
		alert.Severity,
		alert.Delivered,
		alert.CreatedAt,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "live alert already exists")
		}
		return apperrors.Wrap(err, "failed to create alert")
	}
	return nil
}

// FindLive retrieves the undelivered alert for a (type, ref_id) pair.
// Returns ErrAlertNotFound when no live alert exists for the pair.
func (p *PostgreSQLAlertRepository) FindLive(
	ctx context.Context,
	alertType alertDomain.AlertType,
	refID uuid.UUID,
) (*alertDomain.Alert, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, alert_type, ref_id, message, severity, delivered, created_at
			  FROM alerts
			  WHERE alert_type = $1 AND ref_id = $2 AND delivered = false`

	var alert alertDomain.Alert

	err := querier.QueryRowContext(ctx, query, alertType, refID).Scan(
		&alert.ID,
		&alert.Type,
		&alert.RefID,
		&alert.Message,
		&alert.Severity,
		&alert.Delivered,
		&alert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, alertDomain.ErrAlertNotFound
		}
		return nil, apperrors.Wrap(err, "failed to find live alert")
	}

	return &alert, nil
}

// ExistsAny reports whether any alert, delivered or not, exists for a
// (type, ref_id) pair. Used by the new_order rule, where acknowledgement
// must not re-trigger the alert.
func (p *PostgreSQLAlertRepository) ExistsAny(
	ctx context.Context,
	alertType alertDomain.AlertType,
	refID uuid.UUID,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT EXISTS (SELECT 1 FROM alerts WHERE alert_type = $1 AND ref_id = $2)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, alertType, refID).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check alert existence")
	}
	return exists, nil
}

// ListUndelivered returns live alerts, newest first, with offset/limit pagination.
func (p *PostgreSQLAlertRepository) ListUndelivered(
	ctx context.Context,
	offset, limit int,
) ([]*alertDomain.Alert, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, alert_type, ref_id, message, severity, delivered, created_at
			  FROM alerts
			  WHERE delivered = false
			  ORDER BY created_at DESC
			  OFFSET $1 LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list undelivered alerts")
	}
	defer rows.Close() //nolint:errcheck

	var alerts []*alertDomain.Alert
	for rows.Next() {
		var alert alertDomain.Alert
		err := rows.Scan(
			&alert.ID,
			&alert.Type,
			&alert.RefID,
			&alert.Message,
			&alert.Severity,
			&alert.Delivered,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan alert")
		}
		alerts = append(alerts, &alert)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate alerts")
	}
	return alerts, nil
}

// CountUndelivered returns the number of alerts with delivered = false.
func (p *PostgreSQLAlertRepository) CountUndelivered(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM alerts WHERE delivered = false`

	var count int64
	if err := querier.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count undelivered alerts")
	}
	return count, nil
}

// MarkDelivered acknowledges a single alert. Returns ErrAlertNotFound when
// the alert doesn't exist or was already acknowledged.
func (p *PostgreSQLAlertRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE alerts SET delivered = true WHERE id = $1 AND delivered = false`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark alert delivered")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return alertDomain.ErrAlertNotFound
	}
	return nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	var pqErr *pq.Error
	// 23505 = unique_violation
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// MarkAllDelivered acknowledges every live alert and returns how many were updated.
func (p *PostgreSQLAlertRepository) MarkAllDelivered(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE alerts SET delivered = true WHERE delivered = false`

	result, err := querier.ExecContext(ctx, query)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to mark all alerts delivered")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}
